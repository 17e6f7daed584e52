package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/Gammanik/dfs/internal/coordinator"
	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/metastore"
	"github.com/Gammanik/dfs/internal/protocol"
)

type fakeFiles struct {
	files      map[string][]byte
	incomplete map[string]int // имя -> сколько чанков нашлось
}

func (f *fakeFiles) Put(ctx context.Context, name string, contents []byte) (coordinator.PutResult, error) {
	if err := protocol.ValidateName(name); err != nil {
		return coordinator.PutResult{}, err
	}
	f.files[name] = contents
	return coordinator.PutResult{File: name, Size: int64(len(contents)), Chunks: 2, Sent: 4}, nil
}

func (f *fakeFiles) Get(ctx context.Context, name string) ([]byte, coordinator.GetResult, error) {
	if n, ok := f.incomplete[name]; ok {
		return nil, coordinator.GetResult{File: name, Chunks: n, Missing: []int{1}},
			dfserr.New(dfserr.ErrIncompleteData, "get "+name, fmt.Errorf("missing"))
	}
	data, ok := f.files[name]
	if !ok {
		return nil, coordinator.GetResult{File: name},
			dfserr.New(dfserr.ErrIncompleteData, "get "+name, fmt.Errorf("missing"))
	}
	return data, coordinator.GetResult{File: name, Chunks: 2, Size: int64(len(data))}, nil
}

func (f *fakeFiles) List(ctx context.Context) ([]coordinator.FileStatus, []coordinator.NodeError) {
	var out []coordinator.FileStatus
	for name := range f.files {
		out = append(out, coordinator.FileStatus{Name: name, Nodes: 2, Indices: []int{0, 1}, Complete: true})
	}
	return out, nil
}

func (f *fakeFiles) ClusterSize() int { return 2 }

func newTestRouter(t *testing.T, journal metastore.Journal) (*mux.Router, *fakeFiles) {
	files := &fakeFiles{files: make(map[string][]byte), incomplete: make(map[string]int)}
	router := mux.NewRouter()
	(&FileHandler{Files: files, Journal: journal}).Routes(router)
	return router, files
}

func do(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return rec
}

func TestUploadDownload(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := do(router, "PUT", "/files/a.txt", []byte("0123456789"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body)
	}
	var up UploadResult
	json.NewDecoder(rec.Body).Decode(&up)
	if up.File != "a.txt" || up.Size != 10 || up.Sent != 4 {
		t.Errorf("upload result %+v", up)
	}

	rec = do(router, "GET", "/files/a.txt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status %d", rec.Code)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "a.txt") {
		t.Errorf("missing Content-Disposition")
	}
}

func TestDownloadErrors(t *testing.T) {
	router, files := newTestRouter(t, nil)
	files.incomplete["half.bin"] = 1

	if rec := do(router, "GET", "/files/missing.txt", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing file status %d", rec.Code)
	}
	if rec := do(router, "GET", "/files/half.bin", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("incomplete file status %d", rec.Code)
	}
}

func TestUploadInvalidName(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	if rec := do(router, "PUT", "/files/a%20b", []byte("x")); rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
}

func TestListFiles(t *testing.T) {
	router, files := newTestRouter(t, nil)
	files.files["a.txt"] = []byte("a")

	rec := do(router, "GET", "/files", nil)
	var infos []FileInfo
	if err := json.NewDecoder(rec.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || !infos[0].Complete || !infos[0].AllIndices {
		t.Errorf("infos = %+v", infos)
	}
}

func TestHistory(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	if rec := do(router, "GET", "/files/a.txt/history", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("status without journal %d", rec.Code)
	}

	journal, err := metastore.NewBoltStore(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()
	journal.Append(&metastore.Record{Op: metastore.OpPut, File: "a.txt", Status: metastore.StatusOK})

	router, _ = newTestRouter(t, journal)
	rec := do(router, "GET", "/files/a.txt/history", nil)
	var records []metastore.Record
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Op != metastore.OpPut {
		t.Errorf("records = %+v", records)
	}
}
