package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/Gammanik/dfs/internal/coordinator"
	"github.com/Gammanik/dfs/internal/dfserr"
	"github.com/Gammanik/dfs/internal/metastore"
)

// Files операции координатора, нужные HTTP-шлюзу
type Files interface {
	Put(ctx context.Context, name string, contents []byte) (coordinator.PutResult, error)
	Get(ctx context.Context, name string) ([]byte, coordinator.GetResult, error)
	List(ctx context.Context) ([]coordinator.FileStatus, []coordinator.NodeError)
	ClusterSize() int
}

// FileHandler обрабатывает запросы для файлов
type FileHandler struct {
	Files         Files
	Journal       metastore.Journal // может быть nil
	MaxUploadSize int64
}

// FileInfo описание файла в ответе /files
type FileInfo struct {
	Name       string `json:"name"`
	Nodes      int    `json:"nodes"`
	Indices    []int  `json:"indices"`
	Complete   bool   `json:"complete"`
	AllIndices bool   `json:"allIndices"`
}

// UploadResult ответ на загрузку
type UploadResult struct {
	File     string   `json:"file"`
	Size     int64    `json:"size"`
	Chunks   int      `json:"chunks"`
	Sent     int      `json:"sent"`
	Failures []string `json:"failures,omitempty"`
}

// Routes регистрирует обработчики на router
func (h *FileHandler) Routes(router *mux.Router) {
	router.HandleFunc("/files", h.List).Methods("GET")
	router.HandleFunc("/files/{name}", h.Upload).Methods("PUT")
	router.HandleFunc("/files/{name}", h.Download).Methods("GET")
	router.HandleFunc("/files/{name}/history", h.History).Methods("GET")
}

// Upload обрабатывает загрузку файла
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	body := io.Reader(r.Body)
	if h.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	}
	contents, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "reading failed", http.StatusBadRequest)
		log.Error().Err(err).Str("file", name).Msg("failed to read upload")
		return
	}

	res, err := h.Files.Put(r.Context(), name, contents)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dfserr.ErrProtocol) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	out := UploadResult{File: res.File, Size: res.Size, Chunks: res.Chunks, Sent: res.Sent}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, f.String())
	}

	// Ни одна отправка не прошла
	status := http.StatusCreated
	if res.Sent == 0 {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, out)
}

// Download обрабатывает скачивание файла
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	data, res, err := h.Files.Get(r.Context(), name)
	switch {
	case err == nil:
	case errors.Is(err, dfserr.ErrProtocol):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, dfserr.ErrIncompleteData) && res.Chunks == 0:
		http.Error(w, "not found", http.StatusNotFound)
		return
	case errors.Is(err, dfserr.ErrIncompleteData):
		http.Error(w, "missing chunk", http.StatusBadGateway)
		log.Error().Ints("missing", res.Missing).Str("file", name).Msg("file is incomplete")
		return
	default:
		http.Error(w, "download failed", http.StatusInternalServerError)
		return
	}

	// Устанавливаем заголовки для скачивания
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Str("file", name).Msg("failed to write response")
	}
}

// List возвращает сводку по всем файлам кластера
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, nodeErrs := h.Files.List(r.Context())
	for _, ne := range nodeErrs {
		log.Warn().Err(ne.Err).Str("node", ne.Node.Addr()).Msg("node did not answer list")
	}

	n := h.Files.ClusterSize()
	files := make([]FileInfo, 0, len(statuses))
	for _, st := range statuses {
		files = append(files, FileInfo{
			Name:       st.Name,
			Nodes:      st.Nodes,
			Indices:    st.Indices,
			Complete:   st.Complete,
			AllIndices: st.HasAllIndices(n),
		})
	}
	writeJSON(w, http.StatusOK, files)
}

// History возвращает журнал операций по файлу
func (h *FileHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		http.Error(w, "journal disabled", http.StatusNotImplemented)
		return
	}

	records, err := h.Journal.History(mux.Vars(r)["name"])
	if err != nil {
		http.Error(w, "failed to read journal", http.StatusInternalServerError)
		log.Error().Err(err).Msg("failed to read journal")
		return
	}
	if records == nil {
		records = []metastore.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
