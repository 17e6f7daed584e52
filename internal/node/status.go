package node

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Gammanik/dfs/internal/protocol"
)

// Status описывает состояние узла для /status
type Status struct {
	NodeID    string `json:"nodeID"`
	Status    string `json:"status"`
	Chunks    int    `json:"chunks"`
	TotalSize int64  `json:"totalSize"`
	FreeSpace uint64 `json:"freeSpace"`
}

// ChunkEntry элемент ответа /chunks
type ChunkEntry struct {
	Entry string `json:"entry"`
	File  string `json:"file"`
	Index int    `json:"index"`
}

// NewStatusRouter создает HTTP-маршруты для администрирования узла
func NewStatusRouter(nodeID string, store *Store) *mux.Router {
	router := mux.NewRouter()

	// Обработчик статуса узла
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st, err := store.Stats()
		if err != nil {
			http.Error(w, "failed to read storage", http.StatusInternalServerError)
			log.Error().Err(err).Msg("failed to count chunks")
			return
		}

		status := Status{
			NodeID:    nodeID,
			Status:    "online",
			Chunks:    st.Chunks,
			TotalSize: st.TotalSize,
		}
		// Получаем информацию о свободном месте
		if usage, err := disk.Usage(store.Dir()); err == nil {
			status.FreeSpace = usage.Free
		} else {
			log.Warn().Err(err).Msg("failed to read disk usage")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	}).Methods("GET")

	// Обработчик списка чанков
	router.HandleFunc("/chunks", func(w http.ResponseWriter, r *http.Request) {
		names, err := store.List()
		if err != nil {
			http.Error(w, "failed to read storage", http.StatusInternalServerError)
			return
		}

		entries := make([]ChunkEntry, 0, len(names))
		for _, name := range names {
			file, index, ok := protocol.SplitEntry(name)
			if !ok {
				continue
			}
			entries = append(entries, ChunkEntry{Entry: name, File: file, Index: index})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	}).Methods("GET")

	return router
}
