package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func TestSafeJoinDropsTraversalSegments(t *testing.T) {
	dest := "/data/extracted"
	path, ok := SafeJoin(dest, "../../etc/passwd")
	if !ok {
		t.Fatal("expected SafeJoin to recover a safe path")
	}
	if path != filepath.Join(dest, "etc/passwd") {
		t.Fatalf("unexpected path: %s", path)
	}
}

func TestSafeJoinRejectsAllUnsafeSegments(t *testing.T) {
	_, ok := SafeJoin("/data/extracted", "../..")
	if ok {
		t.Fatal("expected rejection when every segment is unsafe")
	}
}

func TestSafeJoinRejectsDriveLetterEscape(t *testing.T) {
	_, ok := SafeJoin("/data/extracted", `C:\Windows\System32\evil.dll`)
	if ok {
		t.Fatal("expected rejection of drive-letter component")
	}
}

func TestIsFirstRarVolume(t *testing.T) {
	cases := map[string]bool{
		"movie.rar":          true,
		"movie.part01.rar":   true,
		"movie.part001.rar":  true,
		"movie.part1.rar":    true,
		"movie.part02.rar":   false,
		"movie.part2.rar":    false,
		"notes.txt":          false,
	}
	for name, want := range cases {
		if got := IsFirstRarVolume(name); got != want {
			t.Errorf("IsFirstRarVolume(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDetectKindByMagicBytes(t *testing.T) {
	dir := t.TempDir()

	rarPath := filepath.Join(dir, "a.rar")
	os.WriteFile(rarPath, []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00, 0x00}, 0o644)
	if kind, err := DetectKind(rarPath); err != nil || kind != KindRar {
		t.Fatalf("expected KindRar, got %v err %v", kind, err)
	}

	zipPath := filepath.Join(dir, "a.zip")
	os.WriteFile(zipPath, []byte{0x50, 0x4B, 0x03, 0x04, 0, 0, 0, 0}, 0o644)
	if kind, err := DetectKind(zipPath); err != nil || kind != KindZip {
		t.Fatalf("expected KindZip, got %v err %v", kind, err)
	}

	garbagePath := filepath.Join(dir, "a.bin")
	os.WriteFile(garbagePath, []byte{1, 2, 3, 4}, 0o644)
	if kind, err := DetectKind(garbagePath); err != nil || kind != KindUnknown {
		t.Fatalf("expected KindUnknown, got %v err %v", kind, err)
	}
}

func TestBuildPasswordListDeduplicatesPreservingOrder(t *testing.T) {
	list := BuildPasswordList("p2", "p1", "p2", []string{"p3", "p1", ""}, false)
	want := []string{"p2", "p1", "p3"}
	if len(list) != len(want) {
		t.Fatalf("got %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Fatalf("got %v, want %v", list, want)
		}
	}
}

func TestBuildPasswordListAppendsEmptyWhenRequested(t *testing.T) {
	list := BuildPasswordList("", "", "", nil, true)
	if len(list) != 1 || list[0] != "" {
		t.Fatalf("expected single empty-password entry, got %v", list)
	}
}

func TestProbeSucceedsOnSecondPassword(t *testing.T) {
	calls := 0
	tryExtract := func(ctx context.Context, archive, password, dest string) ([]string, error) {
		calls++
		if password == "p2" {
			return []string{"out/file.txt"}, nil
		}
		return nil, domain.ErrWrongPassword
	}

	paths, used, err := Probe(context.Background(), tryExtract, "archive.rar", "out", []string{"p1", "p2", "p3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != "p2" || calls != 2 {
		t.Fatalf("used=%q calls=%d, want p2/2", used, calls)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 extracted path, got %v", paths)
	}
}

func TestProbeExhaustsAllPasswords(t *testing.T) {
	tryExtract := func(ctx context.Context, archive, password, dest string) ([]string, error) {
		return nil, domain.ErrWrongPassword
	}
	_, _, err := Probe(context.Background(), tryExtract, "archive.rar", "out", []string{"p1", "p2"})
	var allFailed *ErrAllPasswordsFailed
	if err == nil {
		t.Fatal("expected error")
	}
	if e, ok := err.(*ErrAllPasswordsFailed); !ok || e.Count != 2 {
		t.Fatalf("expected ErrAllPasswordsFailed{2}, got %v", err)
	}
	_ = allFailed
}

func TestProbeStopsOnHardError(t *testing.T) {
	hardErr := domain.ErrExtractionFailed
	calls := 0
	tryExtract := func(ctx context.Context, archive, password, dest string) ([]string, error) {
		calls++
		return nil, hardErr
	}
	_, _, err := Probe(context.Background(), tryExtract, "archive.rar", "out", []string{"p1", "p2"})
	if err != hardErr {
		t.Fatalf("expected hard error to propagate, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected probe to stop after first hard error, got %d calls", calls)
	}
}

func TestProbeReturnsNoPasswordsAvailable(t *testing.T) {
	tryExtract := func(ctx context.Context, archive, password, dest string) ([]string, error) {
		t.Fatal("should not be called with an empty password list")
		return nil, nil
	}
	_, _, err := Probe(context.Background(), tryExtract, "archive.rar", "out", nil)
	if err != domain.ErrNoPasswordsAvail {
		t.Fatalf("expected ErrNoPasswordsAvail, got %v", err)
	}
}
