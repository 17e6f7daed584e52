package metastore

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Gammanik/dfs/internal/dfserr"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndGet(t *testing.T) {
	store := openTestStore(t)

	rec := &Record{Op: OpPut, File: "a.txt", Size: 10, ClusterSize: 3, Chunks: 6, Status: StatusOK}
	if err := store.Append(rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || rec.Time.IsZero() {
		t.Fatalf("ID and Time must be filled: %+v", rec)
	}

	got, err := store.Get(rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.File != "a.txt" || got.Size != 10 || got.Chunks != 6 || got.Op != OpPut {
		t.Errorf("unexpected record %+v", got)
	}

	if _, err := store.Get("missing"); !errors.Is(err, dfserr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHistoryAndRecent(t *testing.T) {
	store := openTestStore(t)

	store.Append(&Record{Op: OpPut, File: "a.txt", Status: StatusOK})
	store.Append(&Record{Op: OpPut, File: "b.txt", Status: StatusPartial, Failed: []string{"chunk 1 -> 127.0.0.1:10002"}})
	store.Append(&Record{Op: OpGet, File: "a.txt", Status: StatusIncomplete})

	history, err := store.History("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Op != OpPut || history[1].Op != OpGet {
		t.Errorf("history = %+v", history)
	}

	if h, _ := store.History("none"); len(h) != 0 {
		t.Errorf("unexpected history for unknown file: %+v", h)
	}

	recent, err := store.Recent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].File != "a.txt" || recent[0].Op != OpGet || recent[1].File != "b.txt" {
		t.Errorf("recent = %+v", recent)
	}
	if len(recent[1].Failed) != 1 {
		t.Errorf("failed targets lost: %+v", recent[1])
	}
}
