// Package coordinator раскладывает файлы по узлам кластера и собирает их обратно.
package coordinator

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Gammanik/dfs/internal/cluster"
	"github.com/Gammanik/dfs/internal/metastore"
	"github.com/Gammanik/dfs/internal/storage"
)

// Coordinator хранит неизменный на время работы список узлов.
// Порядок узлов участвует в раскладке чанков.
type Coordinator struct {
	nodes   []cluster.Node
	client  storage.Client
	journal metastore.Journal
	workers int
}

// Option настраивает Coordinator
type Option func(*Coordinator)

// WithJournal включает запись операций в журнал
func WithJournal(j metastore.Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithWorkers задает число параллельных отправок и опросов узлов.
// 1 соответствует строго последовательному порядку.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New создает координатор для заданного кластера
func New(nodes []cluster.Node, client storage.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		nodes:   append([]cluster.Node(nil), nodes...),
		client:  client,
		workers: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClusterSize возвращает число узлов, оно же число чанков на файл
func (c *Coordinator) ClusterSize() int {
	return len(c.nodes)
}

// NodeError ошибка обращения к одному узлу
type NodeError struct {
	Node cluster.Node
	Err  error
}

func (e NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (c *Coordinator) record(rec *metastore.Record) {
	if c.journal == nil {
		return
	}
	rec.ClusterSize = len(c.nodes)
	if err := c.journal.Append(rec); err != nil {
		logJournalError(err, rec)
	}
}

func logJournalError(err error, rec *metastore.Record) {
	log.Warn().Err(err).Str("op", string(rec.Op)).Str("file", rec.File).Msg("failed to write journal")
}
