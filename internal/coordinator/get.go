package coordinator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/Gammanik/dfs/internal/chunker"
	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/metastore"
	"github.com/Gammanik/dfs/internal/protocol"
)

// GetResult итог чтения файла
type GetResult struct {
	File       string
	Size       int64
	Chunks     int   // сколько разных индексов получено
	Queried    int   // сколько узлов опрошено
	Duplicates int   // сколько повторных копий пропущено
	Missing    []int // индексы, которых не оказалось ни на одном узле
	NodeErrors []NodeError
}

// Get опрашивает узлы по порядку и собирает файл.
// Первая полученная копия чанка побеждает. Опрос прекращается, как только собраны все индексы.
func (c *Coordinator) Get(ctx context.Context, name string) ([]byte, GetResult, error) {
	set, res, err := c.fetch(ctx, name)
	if err != nil {
		return nil, res, err
	}
	data, err := chunker.Reassemble(set)
	set.Reset()
	return data, res, err
}

// GetFile собирает файл и сохраняет его как dir/name.
// Файл появляется на диске только целиком.
func (c *Coordinator) GetFile(ctx context.Context, name, dir string) (GetResult, error) {
	set, res, err := c.fetch(ctx, name)
	if err != nil {
		return res, err
	}
	defer set.Reset()

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return res, dfserr.New(dfserr.ErrIO, "create output file", err)
	}
	tmpPath := tmp.Name()

	_, err = set.WriteTo(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmpPath, filepath.Join(dir, name))
	}
	if err != nil {
		os.Remove(tmpPath)
		var de *dfserr.Error
		if errors.As(err, &de) {
			return res, err
		}
		return res, dfserr.New(dfserr.ErrIO, "write output file", err)
	}
	return res, nil
}

func (c *Coordinator) fetch(ctx context.Context, name string) (*chunker.Set, GetResult, error) {
	res := GetResult{File: name}
	if err := protocol.ValidateName(name); err != nil {
		return nil, res, err
	}

	n := len(c.nodes)
	set := chunker.NewSet(n)

	for _, node := range c.nodes {
		if set.Complete() {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
		res.Queried++

		err := c.client.GetChunks(ctx, node.Addr(), name, func(index int, size int64, r io.Reader) error {
			if index >= n {
				log.Warn().Str("file", name).Int("chunk", index).Str("node", node.Addr()).
					Msg("chunk index out of range, skipping")
				return nil
			}
			if set.Has(index) {
				// тело дочитает клиент, первая копия остается
				log.Debug().Str("file", name).Int("chunk", index).Str("node", node.Addr()).
					Msg("skipping duplicate chunk")
				res.Duplicates++
				return nil
			}

			var buf bytes.Buffer
			if _, err := io.Copy(&buf, r); err != nil {
				return err
			}
			set.Add(index, buf.Bytes())
			return nil
		})

		switch {
		case err == nil:
		case errors.Is(err, dfserr.ErrNotFound):
			log.Debug().Str("file", name).Str("node", node.Addr()).Msg("no chunks on node")
		default:
			log.Warn().Err(err).Str("file", name).Str("node", node.Addr()).Msg("failed to fetch chunks, trying next node")
			res.NodeErrors = append(res.NodeErrors, NodeError{Node: node, Err: err})
		}
	}

	res.Chunks = set.Len()
	res.Size = set.Size()

	rec := &metastore.Record{Op: metastore.OpGet, File: name, Size: res.Size, Chunks: res.Chunks, Status: metastore.StatusOK}
	for _, ne := range res.NodeErrors {
		rec.Failed = append(rec.Failed, ne.Error())
	}

	if !set.Complete() {
		res.Missing = set.Missing()
		set.Reset()
		rec.Status = metastore.StatusIncomplete
		if res.Chunks == 0 {
			rec.Status = metastore.StatusFailed
		}
		c.record(rec)

		log.Error().Str("file", name).Ints("missing", res.Missing).Msg("file is incomplete")
		return nil, res, dfserr.New(dfserr.ErrIncompleteData, "get "+name,
			fmt.Errorf("missing chunks %v of %d", res.Missing, n))
	}

	c.record(rec)
	return set, res, nil
}
