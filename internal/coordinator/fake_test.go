package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/Gammanik/dfs/internal/cluster"
	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/protocol"
	"github.com/Gammanik/dfs/internal/storage"
)

var _ storage.Client = (*fakeClient)(nil)

// fakeClient хранит каталоги узлов в памяти
type fakeClient struct {
	mu      sync.Mutex
	dirs    map[string]map[string][]byte
	down    map[string]bool
	puts    []string
	queried []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{dirs: make(map[string]map[string][]byte), down: make(map[string]bool)}
}

func testNodes(n int) []cluster.Node {
	nodes := make([]cluster.Node, n)
	for i := range nodes {
		nodes[i] = cluster.Node{Name: fmt.Sprintf("dfs%d", i+1), Host: fmt.Sprintf("node%d", i), Port: 10001 + i}
	}
	return nodes
}

func (f *fakeClient) store(addr, name string, index int, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[addr] == nil {
		f.dirs[addr] = make(map[string][]byte)
	}
	f.dirs[addr][protocol.EntryName(name, index)] = append([]byte(nil), data...)
}

func (f *fakeClient) PutChunk(ctx context.Context, addr, name string, index int, data []byte) error {
	f.mu.Lock()
	down := f.down[addr]
	f.puts = append(f.puts, fmt.Sprintf("%s %s", addr, protocol.EntryName(name, index)))
	f.mu.Unlock()

	if down {
		return dfserr.New(dfserr.ErrConnection, "connect "+addr, fmt.Errorf("connection refused"))
	}
	f.store(addr, name, index, data)
	return nil
}

func (f *fakeClient) GetChunks(ctx context.Context, addr, name string, fn storage.ChunkFunc) error {
	f.mu.Lock()
	f.queried = append(f.queried, addr)
	down := f.down[addr]
	type chunk struct {
		index int
		data  []byte
	}
	var chunks []chunk
	for entry, data := range f.dirs[addr] {
		base, index, ok := protocol.SplitEntry(entry)
		if ok && base == name {
			chunks = append(chunks, chunk{index, data})
		}
	}
	f.mu.Unlock()

	if down {
		return dfserr.New(dfserr.ErrConnection, "connect "+addr, fmt.Errorf("connection refused"))
	}
	if len(chunks) == 0 {
		return dfserr.New(dfserr.ErrNotFound, "get "+name, nil)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].index < chunks[j].index })
	for _, c := range chunks {
		r := bytes.NewReader(c.data)
		if err := fn(c.index, int64(len(c.data)), r); err != nil {
			return err
		}
		io.Copy(io.Discard, r)
	}
	return nil
}

func (f *fakeClient) List(ctx context.Context, addr string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[addr] {
		return nil, dfserr.New(dfserr.ErrConnection, "connect "+addr, fmt.Errorf("connection refused"))
	}
	var entries []string
	for entry := range f.dirs[addr] {
		entries = append(entries, entry)
	}
	sort.Strings(entries)
	return entries, nil
}
