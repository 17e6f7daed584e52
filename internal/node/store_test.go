package node

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gammanik/dfs/internal/dfserr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "node"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestStorePutAndChunks(t *testing.T) {
	store := newTestStore(t)

	for _, c := range []struct {
		index int
		data  string
	}{{2, "hij"}, {0, "abcd"}, {10, "z"}} {
		if err := store.Put("a.txt", c.index, strings.NewReader(c.data), int64(len(c.data))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Put("a.txt.bak", 0, strings.NewReader("x"), 1); err != nil {
		t.Fatal(err)
	}

	chunks, err := store.Chunks("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	var got []int
	for _, c := range chunks {
		got = append(got, c.Index)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 10 {
		t.Errorf("chunk indices = %v, want [0 2 10]", got)
	}

	f, size, err := store.Open(chunks[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if size != 4 || string(data) != "abcd" {
		t.Errorf("chunk 0 = %q (size %d)", data, size)
	}
}

func TestStorePutOverwrites(t *testing.T) {
	store := newTestStore(t)

	store.Put("a.txt", 0, strings.NewReader("old contents"), 12)
	if err := store.Put("a.txt", 0, strings.NewReader("new"), 3); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), "a.txt.0"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("chunk = %q, want %q", data, "new")
	}
}

func TestStorePutShortReader(t *testing.T) {
	store := newTestStore(t)

	err := store.Put("a.txt", 0, strings.NewReader("abc"), 10)
	if !errors.Is(err, dfserr.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 0 {
		t.Errorf("partial chunk left on disk: %v", entries)
	}
}

func TestStoreRejectsBadNames(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", ".", "..", "../x", "a/b", "a b"} {
		err := store.Put(name, 0, bytes.NewReader(nil), 0)
		if !errors.Is(err, dfserr.ErrProtocol) {
			t.Errorf("Put(%q): expected protocol error, got %v", name, err)
		}
	}
}

func TestStoreListSkipsTempFiles(t *testing.T) {
	store := newTestStore(t)

	store.Put("a.txt", 0, strings.NewReader("a"), 1)
	os.WriteFile(filepath.Join(store.Dir(), ".a.txt.1.123.tmp"), []byte("partial"), 0644)
	os.Mkdir(filepath.Join(store.Dir(), "sub"), 0755)

	names, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "a.txt.0" {
		t.Errorf("List() = %v", names)
	}

	st, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.Chunks != 1 || st.TotalSize != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestStoreDotNameRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.Put(".env", 0, strings.NewReader("KEY=1"), 5); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(store.Dir(), ".env.1.456.tmp"), []byte("partial"), 0644)

	names, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != ".env.0" {
		t.Errorf("List() = %v", names)
	}

	chunks, err := store.Chunks(".env")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Index != 0 {
		t.Fatalf("Chunks(.env) = %+v", chunks)
	}
	f, size, err := store.Open(chunks[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, _ := io.ReadAll(f)
	if size != 5 || string(got) != "KEY=1" {
		t.Errorf("chunk = %q (size %d)", got, size)
	}
}
