// Package par2meta parses PAR2 File Description packets to recover real
// filenames and their 16 KiB MD5 hashes, enabling DirectRename to match
// obfuscated downloaded files against the metadata their uploader posted.
//
// Ported from the Rust par2_metadata module's byte-offset layout (the
// constants below are load-bearing, not stylistic).
package par2meta

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"io"
	"os"
)

var par2Magic = []byte("PAR2\x00PKT")
var fileDescType = []byte("PAR 2.0\x00FileDesc")

const (
	headerSize        = 8 + 8 + 16 + 16 + 16 // magic + length + hash + set_id + type
	typeOffset        = 8 + 8 + 16 + 16
	fileDescFixedBody = 16 + 16 + 16 + 8 // file_id + md5_full + md5_16k + file_length
	md5_16kOffset     = 16 + 16
)

// FileEntry is one parsed File Description packet.
type FileEntry struct {
	Filename string
	Hash16K  [16]byte
}

// ParseFile reads par2Path and returns every File Description entry found.
func ParseFile(par2Path string) ([]FileEntry, error) {
	data, err := os.ReadFile(par2Path)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data), nil
}

// ParseBytes is the core scanner, exposed directly for tests. An empty or
// garbage buffer yields a nil slice, not an error: PAR2 files with no
// File Description packets are valid input.
func ParseBytes(data []byte) []FileEntry {
	var entries []FileEntry
	pos := 0

	for pos+headerSize <= len(data) {
		magicPos := bytes.Index(data[pos:], par2Magic)
		if magicPos < 0 {
			break
		}
		pos += magicPos
		if pos+headerSize > len(data) {
			break
		}

		packetLen := int(binary.LittleEndian.Uint64(data[pos+8 : pos+16]))
		if packetLen < headerSize || pos+packetLen > len(data) {
			pos += 8
			continue
		}

		typeSig := data[pos+typeOffset : pos+typeOffset+16]
		if bytes.Equal(typeSig, fileDescType) {
			bodyStart := pos + headerSize
			bodyLen := packetLen - headerSize

			if bodyLen >= fileDescFixedBody {
				md5Start := bodyStart + md5_16kOffset
				var hash16k [16]byte
				copy(hash16k[:], data[md5Start:md5Start+16])

				nameStart := bodyStart + fileDescFixedBody
				nameEnd := pos + packetLen
				if nameStart < nameEnd {
					filename := extractFilename(data[nameStart:nameEnd])
					if filename != "" {
						entries = append(entries, FileEntry{Filename: filename, Hash16K: hash16k})
					}
				}
			}
		}

		pos += packetLen
	}

	return entries
}

func extractFilename(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Compute16KMD5 hashes the first 16 KiB of path, for matching a completed
// download against a FileEntry.Hash16K.
func Compute16KMD5(path string) ([16]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [16]byte{}, err
	}
	defer f.Close()

	buf := make([]byte, 16384)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return [16]byte{}, err
	}
	return md5.Sum(buf[:n]), nil
}
