package duplicate

import (
	"context"
	"testing"
	"time"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCheckDisabledAlwaysPasses(t *testing.T) {
	st := openTestStore(t)
	method, found, err := Check(context.Background(), st, Config{Enabled: false}, []byte("hash"), "name", "job")
	if err != nil || found || method != "" {
		t.Fatalf("expected no match, got %v %v %v", method, found, err)
	}
}

func TestCheckDetectsByNzbHash(t *testing.T) {
	st := openTestStore(t)
	hash := []byte("abc123")
	_, err := st.InsertDownload(context.Background(), &domain.Download{
		Name: "existing", NzbHash: hash, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	cfg := Config{Enabled: true, Action: ActionBlock, Methods: []Method{MethodNzbHash}}
	method, found, err := Check(context.Background(), st, cfg, hash, "new", "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || method != MethodNzbHash {
		t.Fatalf("expected NzbHash match, got %v %v", method, found)
	}
}

func TestCheckDetectsByNameDistinctFromJobName(t *testing.T) {
	st := openTestStore(t)
	_, err := st.InsertDownload(context.Background(), &domain.Download{
		Name: "Some.Release.2024", JobName: "some release 2024", NzbHash: []byte("abc123"), CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	cfg := Config{Enabled: true, Action: ActionBlock, Methods: []Method{MethodName}}
	method, found, err := Check(context.Background(), st, cfg, []byte("different"), "Some.Release.2024", "different job name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found || method != MethodName {
		t.Fatalf("expected Name match, got %v %v", method, found)
	}

	method, found, err = Check(context.Background(), st, cfg, []byte("different"), "different name", "some release 2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected no Name match on a name that only matches job_name, got %v %v", method, found)
	}
}

func TestCheckNoMatchWhenHashDiffers(t *testing.T) {
	st := openTestStore(t)
	_, err := st.InsertDownload(context.Background(), &domain.Download{
		Name: "existing", NzbHash: []byte("abc123"), CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	cfg := Config{Enabled: true, Action: ActionBlock, Methods: []Method{MethodNzbHash}}
	_, found, err := Check(context.Background(), st, cfg, []byte("different"), "new", "new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected no match for a different hash")
	}
}
