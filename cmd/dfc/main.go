// cmd/dfc/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gammanik/dfs/internal/cluster"
	"github.com/Gammanik/dfs/internal/coordinator"
	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/logging"
	"github.com/Gammanik/dfs/internal/metastore"
	"github.com/Gammanik/dfs/internal/protocol"
	"github.com/Gammanik/dfs/internal/storage"
)

const usageLine = "usage: dfc [flags] <list|get|put|history> [files...]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options разобранные флаги командной строки
type options struct {
	config   string
	out      string
	journal  string
	logLevel string
	workers  int
	maxNodes int
	ack      bool
	strict   bool
	timeout  time.Duration
}

// run выполняет одну команду и возвращает код выхода.
// Результаты по отдельным файлам печатаются в stdout и на код выхода не влияют.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defaultConfig := "dfc.conf"
	if env := os.Getenv("DFC_CONFIG"); env != "" {
		defaultConfig = env
	}

	var opts options
	fs := flag.NewFlagSet("dfc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.config, "config", defaultConfig, "Cluster membership file (env DFC_CONFIG)")
	fs.StringVar(&opts.out, "out", ".", "Directory for files fetched by get")
	fs.StringVar(&opts.journal, "journal", "", "Path to operation journal database, empty disables it")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level")
	fs.IntVar(&opts.workers, "workers", 1, "Parallel chunk transfers")
	fs.IntVar(&opts.maxNodes, "max-nodes", cluster.DefaultMaxNodes, "Maximum number of storage nodes read from config")
	fs.BoolVar(&opts.ack, "ack", false, "Expect OK/ERROR after each put")
	fs.BoolVar(&opts.strict, "strict", false, "list: also report which chunk indices were seen")
	fs.DurationVar(&opts.timeout, "timeout", protocol.DefaultResponseTimeout, "Timeout for a node response line")
	fs.Usage = func() {
		fmt.Fprintln(stderr, usageLine)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	logging.InitWriter(opts.logLevel, stderr)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 1
	}
	command, files := strings.ToLower(rest[0]), rest[1:]

	switch command {
	case "list", "get", "put", "history":
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		return 1
	}
	if (command == "get" || command == "put") && len(files) == 0 {
		fmt.Fprintln(stderr, usageLine)
		return 1
	}

	var journal metastore.Journal
	if opts.journal != "" {
		bs, err := metastore.NewBoltStore(opts.journal)
		if err != nil {
			log.Error().Err(err).Str("journal", opts.journal).Msg("failed to open journal")
			return 1
		}
		defer bs.Close()
		journal = bs
	}

	if command == "history" {
		if journal == nil {
			fmt.Fprintln(stderr, "history requires -journal")
			return 1
		}
		printHistory(stdout, journal, files)
		return 0
	}

	nodes, err := cluster.Load(opts.config, opts.maxNodes)
	if err != nil {
		log.Error().Err(err).Str("config", opts.config).Msg("failed to read cluster config")
		return 1
	}

	client := storage.New()
	client.Ack = opts.ack
	client.Timeouts.Response = opts.timeout

	coordOpts := []coordinator.Option{coordinator.WithWorkers(opts.workers)}
	if journal != nil {
		coordOpts = append(coordOpts, coordinator.WithJournal(journal))
	}
	c := coordinator.New(nodes, client, coordOpts...)
	log.Debug().Str("command", command).Int("nodes", c.ClusterSize()).Msg("executing command")

	switch command {
	case "list":
		runList(ctx, stdout, c, opts.strict)
	case "put":
		for _, f := range files {
			runPut(ctx, stdout, c, f)
		}
	case "get":
		for _, f := range files {
			runGet(ctx, stdout, c, f, opts.out)
		}
	}
	return 0
}

func runList(ctx context.Context, w io.Writer, c *coordinator.Coordinator, strict bool) {
	statuses, nodeErrs := c.List(ctx)
	for _, ne := range nodeErrs {
		log.Warn().Str("node", ne.Node.String()).Err(ne.Err).Msg("list failed")
	}
	n := c.ClusterSize()
	for _, s := range statuses {
		line := s.Name
		if !s.Complete {
			line += " (incomplete)"
		}
		if strict {
			line += fmt.Sprintf(" [indices %d/%d]", len(s.Indices), n)
			if !s.HasAllIndices(n) {
				line += " missing chunks"
			}
		}
		fmt.Fprintln(w, line)
	}
}

func runPut(ctx context.Context, w io.Writer, c *coordinator.Coordinator, path string) {
	res, err := c.PutFile(ctx, path)
	if err != nil {
		fmt.Fprintf(w, "%s: put failed: %v\n", path, err)
		return
	}
	if res.OK() {
		fmt.Fprintf(w, "%s: stored %d bytes in %d chunks\n", res.File, res.Size, res.Chunks)
		return
	}
	fmt.Fprintf(w, "%s: %d/%d chunk copies stored\n", res.File, res.Sent, 2*res.Chunks)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

// runGet скачивает файл по базовому имени, как его сохранил put
func runGet(ctx context.Context, w io.Writer, c *coordinator.Coordinator, arg, dir string) {
	name := filepath.Base(arg)
	res, err := c.GetFile(ctx, name, dir)
	switch {
	case err == nil:
		fmt.Fprintf(w, "%s: %d bytes\n", name, res.Size)
	case errors.Is(err, dfserr.ErrIncompleteData):
		fmt.Fprintf(w, "%s incomplete\n", name)
	default:
		fmt.Fprintf(w, "%s: get failed: %v\n", name, err)
	}
}

// recentLimit задает, сколько последних операций показывает history без аргументов
const recentLimit = 20

func printHistory(w io.Writer, j metastore.Journal, files []string) {
	if len(files) == 0 {
		recs, err := j.Recent(recentLimit)
		if err != nil {
			fmt.Fprintf(w, "history: %v\n", err)
			return
		}
		for _, r := range recs {
			printRecord(w, r)
		}
		return
	}
	for _, f := range files {
		recs, err := j.History(f)
		if err != nil {
			fmt.Fprintf(w, "%s: %v\n", f, err)
			continue
		}
		if len(recs) == 0 {
			fmt.Fprintf(w, "%s: no history\n", f)
			continue
		}
		for _, r := range recs {
			printRecord(w, r)
		}
	}
}

func printRecord(w io.Writer, r metastore.Record) {
	fmt.Fprintf(w, "%s %s %s %s size=%d chunks=%d nodes=%d\n",
		r.Time.Format(time.RFC3339), r.Op, r.File, r.Status, r.Size, r.Chunks, r.ClusterSize)
}
