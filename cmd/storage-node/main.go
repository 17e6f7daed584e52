// cmd/storage-node/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/rs/zerolog/log"

	"github.com/Gammanik/dfs/internal/logging"
	"github.com/Gammanik/dfs/internal/node"
	"github.com/Gammanik/dfs/internal/protocol"
)

// config параметры запуска узла
type config struct {
	port       int
	dataDir    string
	nodeID     string
	httpPort   int
	ack        bool
	timeout    time.Duration
	payloadTTL time.Duration
	profMode   string
	profDir    string
	logLevel   string
}

func main() {
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(1)
	}
	logging.Init(cfg.logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Storage node failed")
		os.Exit(1)
	}
}

// parseFlags разбирает флаги и позиционную форму "<directory> <port>"
func parseFlags(args []string, output io.Writer) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("storage-node", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&cfg.port, "port", 10001, "TCP port for the chunk protocol")
	fs.StringVar(&cfg.dataDir, "data", "", "Directory to store chunks")
	fs.StringVar(&cfg.nodeID, "id", "", "Node ID (default: from environment NODE_ID)")
	fs.IntVar(&cfg.httpPort, "http", 0, "HTTP port for /status and /chunks, 0 disables it")
	fs.BoolVar(&cfg.ack, "ack", false, "Reply OK/ERROR after each put")
	fs.DurationVar(&cfg.timeout, "timeout", protocol.DefaultResponseTimeout, "Timeout for reading a command line")
	fs.DurationVar(&cfg.payloadTTL, "payload-timeout", protocol.DefaultPayloadTimeout, "Timeout for transferring a chunk body")
	fs.StringVar(&cfg.profMode, "profile", "", "Enable profiling: cpu or mem")
	fs.StringVar(&cfg.profDir, "profile-dir", ".", "Directory for profile output, must differ from -data")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level")
	fs.Usage = func() {
		fmt.Fprintf(output, "usage: %s [flags] [<directory> <port>]\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	// Совместимость с запуском "storage-node <directory> <port>"
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 2:
		cfg.dataDir = rest[0]
		p, err := strconv.Atoi(rest[1])
		if err != nil {
			fmt.Fprintf(output, "invalid port: %s\n", rest[1])
			return cfg, err
		}
		cfg.port = p
	default:
		fs.Usage()
		return cfg, errors.New("unexpected arguments")
	}

	if cfg.dataDir == "" {
		fmt.Fprintln(output, "Storage directory is required. Use -data flag or positional <directory>.")
		return cfg, errors.New("no storage directory")
	}
	switch cfg.profMode {
	case "", "cpu", "mem":
	default:
		fmt.Fprintf(output, "unknown profile mode: %s\n", cfg.profMode)
		return cfg, errors.New("unknown profile mode")
	}
	if cfg.profMode != "" && sameDir(cfg.profDir, cfg.dataDir) {
		fmt.Fprintln(output, "-profile-dir must not be the storage directory")
		return cfg, errors.New("profile directory is the storage directory")
	}

	// Используем ID из аргумента или переменной окружения
	if cfg.nodeID == "" {
		cfg.nodeID = os.Getenv("NODE_ID")
		if cfg.nodeID == "" {
			cfg.nodeID = filepath.Base(filepath.Clean(cfg.dataDir))
		}
	}
	return cfg, nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// run обслуживает узел до отмены ctx. Отложенные вызовы, включая запись профиля, выполняются при любом исходе.
func run(ctx context.Context, cfg config) error {
	switch cfg.profMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.profDir), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(cfg.profDir), profile.NoShutdownHook).Stop()
	}

	// Создаем директорию для хранения данных
	store, err := node.NewStore(cfg.dataDir)
	if err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	handler := &node.Handler{
		Store:    store,
		Timeouts: protocol.Timeouts{Response: cfg.timeout, Payload: cfg.payloadTTL},
		Ack:      cfg.ack,
	}
	srv, err := node.NewServer(handler, int64(cfg.port%1024))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if cfg.httpPort > 0 {
		statusSrv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.httpPort),
			Handler:      node.NewStatusRouter(cfg.nodeID, store),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", statusSrv.Addr).Msg("status API starting")
			if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status API stopped")
			}
		}()
		defer statusSrv.Close()
	}

	log.Info().Str("id", cfg.nodeID).Int("port", cfg.port).Bool("ack", cfg.ack).Msg("Storage node starting")
	if err := srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.port)); err != nil {
		return err
	}
	log.Info().Str("id", cfg.nodeID).Msg("Storage node stopped")
	return nil
}
