package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jvz-devx/usenet-dl-sub002/internal/category"
	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
)

func TestMoveFileRenameFastPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dest.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := moveFile(src, dest); err != nil {
		t.Fatalf("moveFile: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("expected source to be removed after move")
	}
}

func TestCleanupTargetsMatchesConfiguredExtensions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"movie.mkv", "movie.nfo", "movie.par2", "sample"} {
		if name == "sample" {
			if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
				t.Fatalf("mkdir: %v", err)
			}
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	o := &Orchestrator{Config: Config{
		CleanupExtensions: []string{"nfo", "par2"},
		DeleteSamples:     true,
		SampleFolderNames: []string{"sample"},
	}}

	targets, err := o.cleanupTargets(dir)
	if err != nil {
		t.Fatalf("cleanupTargets: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 cleanup targets, got %v", targets)
	}
}

func TestCleanupTargetsSkipsSampleWhenDeleteSamplesDisabled(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "Sample"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	o := &Orchestrator{Config: Config{SampleFolderNames: []string{"sample"}, DeleteSamples: false}}
	targets, err := o.cleanupTargets(dir)
	if err != nil {
		t.Fatalf("cleanupTargets: %v", err)
	}
	if len(targets) != 0 {
		t.Fatalf("expected no targets, got %v", targets)
	}
}

func TestResolveCollisionRenamesWhenDestExists(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(dest, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, skip, err := resolveCollision(dest, domain.FileCollisionRename)
	if err != nil {
		t.Fatalf("resolveCollision: %v", err)
	}
	if skip {
		t.Fatal("expected rename policy not to skip")
	}
	if got == dest {
		t.Fatal("expected a renamed path distinct from the collided dest")
	}
	want := filepath.Join(dir, "movie (1).mkv")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveCollisionSkipsWhenPolicyIsSkip(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(dest, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, skip, err := resolveCollision(dest, domain.FileCollisionSkip)
	if err != nil {
		t.Fatalf("resolveCollision: %v", err)
	}
	if !skip {
		t.Fatal("expected skip policy to report skip=true")
	}
}

func TestResolveCollisionPassesThroughWhenDestFree(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "movie.mkv")
	got, skip, err := resolveCollision(dest, domain.FileCollisionRename)
	if err != nil {
		t.Fatalf("resolveCollision: %v", err)
	}
	if skip || got != dest {
		t.Fatalf("expected passthrough for a free dest, got %q skip=%v", got, skip)
	}
}

func TestCategoryRouterIntegration(t *testing.T) {
	r := &category.Router{DefaultDestination: "/data/complete"}
	dest, _, _ := r.Resolve("", 0)
	if dest != "/data/complete" {
		t.Fatalf("got %q", dest)
	}
}
