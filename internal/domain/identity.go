package domain

import (
	"crypto/sha256"
	"encoding/binary"
)

// SegmentKey is the canonicalised (file_index, segment_number, message_id,
// bytes) tuple the NZB hash is computed over.
type SegmentKey struct {
	FileIndex     int
	SegmentNumber int
	MessageID     string
	Bytes         int64
}

// NzbFingerprint computes the deterministic content fingerprint used as
// Download.NzbHash and for duplicate detection: the SHA-256 of the
// canonicalised segment layout, independent of subject/poster/groups.
func NzbFingerprint(segments []SegmentKey) []byte {
	h := sha256.New()
	var buf [16]byte
	for _, s := range segments {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(s.FileIndex))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(s.SegmentNumber))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(s.Bytes))
		h.Write(buf[:])
		h.Write([]byte(s.MessageID))
	}
	return h.Sum(nil)
}
