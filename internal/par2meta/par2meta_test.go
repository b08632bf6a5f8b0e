package par2meta

import (
	"encoding/binary"
	"testing"
)

func buildFileDescPacket(filename string, hash16k [16]byte) []byte {
	nameBytes := []byte(filename)
	paddedLen := (len(nameBytes) + 3) &^ 3
	paddedName := make([]byte, paddedLen)
	copy(paddedName, nameBytes)

	bodyLen := fileDescFixedBody + paddedLen
	packetLen := uint64(headerSize + bodyLen)

	packet := make([]byte, 0, packetLen)
	packet = append(packet, par2Magic...)
	lenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenBuf, packetLen)
	packet = append(packet, lenBuf...)
	packet = append(packet, make([]byte, 16)...) // packet hash
	packet = append(packet, make([]byte, 16)...) // recovery set id
	packet = append(packet, fileDescType...)
	packet = append(packet, make([]byte, 16)...) // file_id
	packet = append(packet, make([]byte, 16)...) // md5_full
	packet = append(packet, hash16k[:]...)
	fileLenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(fileLenBuf, 1024)
	packet = append(packet, fileLenBuf...)
	packet = append(packet, paddedName...)
	return packet
}

func fill(b byte) [16]byte {
	var h [16]byte
	for i := range h {
		h[i] = b
	}
	return h
}

func TestParseSingleFileDescPacket(t *testing.T) {
	hash := fill(1)
	data := buildFileDescPacket("movie.mkv", hash)

	entries := ParseBytes(data)
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	if entries[0].Filename != "movie.mkv" || entries[0].Hash16K != hash {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestParseMultipleFileDescPackets(t *testing.T) {
	hash1, hash2 := fill(1), fill(2)
	data := append(buildFileDescPacket("file1.rar", hash1), buildFileDescPacket("file2.rar", hash2)...)

	entries := ParseBytes(data)
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].Filename != "file1.rar" || entries[1].Filename != "file2.rar" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestParseEmptyDataReturnsNoEntries(t *testing.T) {
	if entries := ParseBytes(nil); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestParseGarbageDataReturnsNoEntries(t *testing.T) {
	garbage := make([]byte, 1024)
	for i := range garbage {
		garbage[i] = 0xFF
	}
	if entries := ParseBytes(garbage); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestParseTruncatedPacketReturnsNoEntries(t *testing.T) {
	full := buildFileDescPacket("test.bin", fill(3))
	truncated := full[:headerSize]
	if entries := ParseBytes(truncated); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestExtractFilenameHandlesNullPadding(t *testing.T) {
	if got := extractFilename([]byte("hello.txt\x00\x00\x00")); got != "hello.txt" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractFilenameHandlesNoNull(t *testing.T) {
	if got := extractFilename([]byte("hello.txt")); got != "hello.txt" {
		t.Fatalf("got %q", got)
	}
}

func TestNonFileDescPacketsAreSkipped(t *testing.T) {
	const bodyLen = 16
	packetLen := uint64(headerSize + bodyLen)
	data := make([]byte, 0)
	data = append(data, par2Magic...)
	lenBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenBuf, packetLen)
	data = append(data, lenBuf...)
	data = append(data, make([]byte, 16)...)
	data = append(data, make([]byte, 16)...)
	data = append(data, []byte("PAR 2.0\x00Main\x00\x00\x00\x00")...)
	data = append(data, make([]byte, bodyLen)...)
	data = append(data, buildFileDescPacket("real.rar", fill(5))...)

	entries := ParseBytes(data)
	if len(entries) != 1 || entries[0].Filename != "real.rar" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
