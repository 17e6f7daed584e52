package coordinator

import (
	"context"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Gammanik/dfs/internal/protocol"
)

// FileStatus сводка по одному файлу, собранная из list всех узлов
type FileStatus struct {
	Name     string
	Nodes    int   // сколько разных узлов сообщили хотя бы один чанк
	Indices  []int // разные индексы чанков, по возрастанию
	Complete bool  // Nodes равно размеру кластера
}

// HasAllIndices проверяет строже: присутствуют все индексы 0..n-1
func (s FileStatus) HasAllIndices(n int) bool {
	if len(s.Indices) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if s.Indices[i] != i {
			return false
		}
	}
	return true
}

type fileTally struct {
	nodes   *hashset.Set
	indices *treeset.Set
}

// List опрашивает все узлы и сводит их каталоги по именам файлов.
// Файл считается полным, если каждый узел хранит хотя бы один его чанк.
func (c *Coordinator) List(ctx context.Context) ([]FileStatus, []NodeError) {
	replies := make([][]string, len(c.nodes))
	errs := make([]error, len(c.nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, node := range c.nodes {
		g.Go(func() error {
			replies[i], errs[i] = c.client.List(gctx, node.Addr())
			return nil
		})
	}
	g.Wait()

	files := treemap.NewWithStringComparator()
	var nodeErrors []NodeError
	for i, node := range c.nodes {
		if errs[i] != nil {
			log.Warn().Err(errs[i]).Str("node", node.Addr()).Msg("failed to list node")
			nodeErrors = append(nodeErrors, NodeError{Node: node, Err: errs[i]})
			continue
		}

		for _, entry := range replies[i] {
			name, index, ok := protocol.SplitEntry(entry)

			v, found := files.Get(name)
			if !found {
				v = &fileTally{nodes: hashset.New(), indices: treeset.NewWith(utils.IntComparator)}
				files.Put(name, v)
			}
			tally := v.(*fileTally)
			tally.nodes.Add(i)
			if ok {
				tally.indices.Add(index)
			}
		}
	}

	statuses := make([]FileStatus, 0, files.Size())
	it := files.Iterator()
	for it.Next() {
		tally := it.Value().(*fileTally)
		st := FileStatus{
			Name:     it.Key().(string),
			Nodes:    tally.nodes.Size(),
			Complete: tally.nodes.Size() == len(c.nodes),
		}
		for _, idx := range tally.indices.Values() {
			st.Indices = append(st.Indices, idx.(int))
		}
		statuses = append(statuses, st)
	}

	return statuses, nodeErrors
}
