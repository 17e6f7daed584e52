package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Gammanik/dfs/internal/chunker"
	"github.com/Gammanik/dfs/internal/cluster"
	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/metastore"
	"github.com/Gammanik/dfs/internal/placement"
	"github.com/Gammanik/dfs/internal/protocol"
)

// SendFailure описывает неудачную отправку одного чанка на один узел
type SendFailure struct {
	Chunk int
	Node  cluster.Node
	Err   error
}

func (f SendFailure) String() string {
	return fmt.Sprintf("chunk %d -> %s: %v", f.Chunk, f.Node, f.Err)
}

// PutResult итог записи файла
type PutResult struct {
	File     string
	Size     int64
	Chunks   int // число чанков, на которое разбит файл
	Sent     int // успешные отправки, до 2 на чанк
	Failures []SendFailure
}

// OK сообщает, что все отправки прошли без ошибок транспорта
func (r PutResult) OK() bool {
	return len(r.Failures) == 0
}

type sendJob struct {
	chunk int
	node  int
	data  []byte
}

// Put делит contents на чанки и отправляет каждый на основной узел и его преемника.
// Ошибки отдельных отправок не прерывают остальные и попадают в PutResult.
func (c *Coordinator) Put(ctx context.Context, name string, contents []byte) (PutResult, error) {
	res := PutResult{File: name, Size: int64(len(contents))}
	if err := protocol.ValidateName(name); err != nil {
		return res, err
	}

	n := len(c.nodes)
	targets, err := placement.Plan(name, n)
	if err != nil {
		return res, err
	}
	chunks := chunker.Split(contents, n)
	res.Chunks = n

	jobs := make([]sendJob, 0, 2*n)
	for _, t := range targets {
		jobs = append(jobs,
			sendJob{chunk: t.Chunk, node: t.Primary, data: chunks[t.Chunk]},
			sendJob{chunk: t.Chunk, node: t.Replica, data: chunks[t.Chunk]},
		)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, job := range jobs {
		g.Go(func() error {
			node := c.nodes[job.node]
			log.Debug().Str("file", name).Int("chunk", job.chunk).Int("size", len(job.data)).
				Str("node", node.Addr()).Msg("sending chunk")

			err := c.client.PutChunk(gctx, node.Addr(), name, job.chunk, job.data)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("file", name).Int("chunk", job.chunk).Str("node", node.Addr()).
					Msg("failed to send chunk")
				res.Failures = append(res.Failures, SendFailure{Chunk: job.chunk, Node: node, Err: err})
				return nil
			}
			res.Sent++
			return nil
		})
	}
	g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool {
		if res.Failures[i].Chunk != res.Failures[j].Chunk {
			return res.Failures[i].Chunk < res.Failures[j].Chunk
		}
		return res.Failures[i].Node.Addr() < res.Failures[j].Node.Addr()
	})

	rec := &metastore.Record{Op: metastore.OpPut, File: name, Size: res.Size, Chunks: res.Sent, Status: metastore.StatusOK}
	for _, f := range res.Failures {
		rec.Failed = append(rec.Failed, f.String())
	}
	switch {
	case res.Sent == 0:
		rec.Status = metastore.StatusFailed
	case !res.OK():
		rec.Status = metastore.StatusPartial
	}
	c.record(rec)

	return res, nil
}

// PutFile читает локальный файл и записывает его под базовым именем
func (c *Coordinator) PutFile(ctx context.Context, path string) (PutResult, error) {
	name := filepath.Base(path)
	contents, err := os.ReadFile(path)
	if err != nil {
		return PutResult{File: name}, dfserr.New(dfserr.ErrIO, "read "+path, err)
	}
	return c.Put(ctx, name, contents)
}
