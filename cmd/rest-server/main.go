package main

import (
	"flag"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Gammanik/dfs/internal/api"
	"github.com/Gammanik/dfs/internal/cluster"
	"github.com/Gammanik/dfs/internal/coordinator"
	"github.com/Gammanik/dfs/internal/logging"
	"github.com/Gammanik/dfs/internal/metastore"
	"github.com/Gammanik/dfs/internal/storage"
)

var (
	port       = flag.Int("port", 8080, "HTTP port to listen on")
	metaDBPath = flag.String("meta", "meta.db", "Path to operation journal database")
	configPath = flag.String("config", "dfc.conf", "Cluster membership file")
	maxNodes   = flag.Int("max-nodes", cluster.DefaultMaxNodes, "Maximum number of storage nodes read from config")
	workers    = flag.Int("workers", 4, "Parallel chunk transfers per request")
	maxUpload  = flag.Int64("max-upload", 1<<30, "Maximum upload size in bytes")
	ack        = flag.Bool("ack", false, "Expect OK/ERROR after each put")
	logLevel   = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()
	logging.Init(*logLevel)

	// Читаем список серверов хранения
	nodes, err := cluster.Load(*configPath, *maxNodes)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to read cluster config")
	}

	// Инициализируем журнал операций
	journal, err := metastore.NewBoltStore(*metaDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open journal")
	}
	defer journal.Close()

	client := storage.New()
	client.Ack = *ack

	// Создаем обработчик файлов
	fileHandler := &api.FileHandler{
		Files:         coordinator.New(nodes, client, coordinator.WithJournal(journal), coordinator.WithWorkers(*workers)),
		Journal:       journal,
		MaxUploadSize: *maxUpload,
	}

	// Регистрируем обработчики HTTP запросов
	router := mux.NewRouter()
	fileHandler.Routes(router)

	// Настраиваем и запускаем HTTP сервер
	server := &http.Server{
		Addr:         ":" + strconv.Itoa(*port),
		Handler:      router,
		ReadTimeout:  300 * time.Second,
		WriteTimeout: 300 * time.Second,
	}

	log.Info().Int("port", *port).Msg("REST server starting")
	log.Info().Int("nodes", len(nodes)).Msg("Connected to storage nodes")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("REST server stopped")
	}
}
