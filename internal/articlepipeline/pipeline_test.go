package articlepipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func TestCheckGatesFastFail(t *testing.T) {
	p := &Pipeline{}
	// 10 attempted, 9 failed -> ratio 0.9 >= default 0.8 threshold
	err := p.checkGates(10, 9, 100)
	if !errors.Is(err, ErrFastFailTripped) {
		t.Fatalf("expected fast-fail trip, got %v", err)
	}
}

func TestCheckGatesHealthGate(t *testing.T) {
	p := &Pipeline{}
	// below fast-fail sample size's exact-match branch but failure/total crosses 0.5
	err := p.checkGates(60, 55, 100)
	if !errors.Is(err, ErrHealthGateTripped) {
		t.Fatalf("expected health gate trip, got %v", err)
	}
}

func TestCheckGatesPassesUnderThreshold(t *testing.T) {
	p := &Pipeline{}
	if err := p.checkGates(10, 1, 100); err != nil {
		t.Fatalf("expected no trip, got %v", err)
	}
}

func TestComputeOffsetsCumulativePerFile(t *testing.T) {
	all := []domain.Article{
		{ID: 1, FileIndex: 0, SizeBytes: 100},
		{ID: 2, FileIndex: 0, SizeBytes: 200},
		{ID: 3, FileIndex: 1, SizeBytes: 50},
	}
	offsets := computeOffsets(all)
	if offsets[1] != 0 || offsets[2] != 100 || offsets[3] != 0 {
		t.Fatalf("unexpected offsets: %+v", offsets)
	}
}

func TestFileWriterWriteAtAndClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	fw := NewFileWriter()
	if err := fw.PreAllocate(path, 10); err != nil {
		t.Fatalf("preallocate: %v", err)
	}
	if err := fw.WriteAt(path, []byte("hello"), 0); err != nil {
		t.Fatalf("writeat: %v", err)
	}
	if err := fw.WriteAt(path, []byte("world"), 5); err != nil {
		t.Fatalf("writeat: %v", err)
	}
	if err := fw.CloseFile(path, 10); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "helloworld" {
		t.Fatalf("got %q, want helloworld", data)
	}
}
