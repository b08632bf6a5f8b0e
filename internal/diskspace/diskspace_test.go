package diskspace

import "testing"

func TestCheckDisabledAlwaysPasses(t *testing.T) {
	dir := t.TempDir()
	if err := Check(dir, 1<<60, Config{Enabled: false}); err != nil {
		t.Fatalf("expected disabled check to pass, got %v", err)
	}
}

func TestCheckRejectsImpossiblyLargeRequest(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Enabled: true, SizeMultiplier: 1.0}
	if err := Check(dir, 1<<62, cfg); err == nil {
		t.Fatal("expected insufficient space error for an absurd request")
	}
}

func TestCheckPassesForTinyRequest(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Enabled: true, SizeMultiplier: 1.0}
	if err := Check(dir, 1, cfg); err != nil {
		t.Fatalf("expected tiny request to pass, got %v", err)
	}
}

func TestAvailableReturnsPositiveValue(t *testing.T) {
	dir := t.TempDir()
	avail, err := Available(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if avail <= 0 {
		t.Fatalf("expected positive available space, got %d", avail)
	}
}
