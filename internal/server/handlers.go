package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/regubot/internal/catalog"
	"github.com/hyperjump/regubot/internal/config"
	"github.com/hyperjump/regubot/internal/indexer"
	"github.com/hyperjump/regubot/internal/models"
	"github.com/hyperjump/regubot/internal/storage"
)

// uploadField is the multipart field carrying regulation files.
const uploadField = "files"

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	models.ResponseEnvelope
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	s.logger.Debug("ask request", zap.String("session", req.SessionID), zap.Int("question_length", len(req.Question)))
	env := s.assistant.Ask(r.Context(), req.SessionID, req.Question)
	s.respondJSON(w, http.StatusOK, askResponse{SessionID: req.SessionID, ResponseEnvelope: env})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.assistant.Documents(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "please upload at least one document")
		return
	}
	uploads := make([]models.Upload, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot open upload "+h.Filename)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "cannot read upload "+h.Filename)
			return
		}
		uploads = append(uploads, models.Upload{Name: h.Filename, Data: data})
	}

	s.logger.Debug("upload request", zap.Int("files", len(uploads)))
	res, err := s.indexer.Ingest(r.Context(), uploads)
	switch {
	case errors.Is(err, indexer.ErrNothingToIngest):
		s.respondJSON(w, http.StatusUnprocessableEntity, res)
	case err != nil:
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.respondJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := s.config.Server.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := s.assistant.History(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "messages": msgs})
}

func (s *Server) handleClearMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("clear history request", zap.String("session", id))
	if err := s.assistant.ClearHistory(r.Context(), id); err != nil {
		s.logger.Error("clear history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	msgs, err := s.assistant.History(r.Context(), id, s.config.Server.HistoryLimit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "messages": msgs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.assistant.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":  st.Documents,
		"recognized": st.Recognized,
		"chunks":     st.Chunks,
		"messages":   st.Messages,
	}

	configInfo := map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": st.Dimensions,
		"generation_provider":  s.config.Generation.Provider,
		"generation_model":     s.config.Generation.Model,
		"chunk_size":           s.config.Chunking.Size,
		"chunk_overlap":        s.config.Chunking.Overlap,
		"top_k":                s.config.Retrieval.TopK,
		"hybrid":               s.config.Retrieval.HybridOrDefault(),
		"index_path":           s.config.Storage.IndexPath,
		"state_path":           s.config.Storage.StatePath,
		"history_path":         s.config.Storage.HistoryPath,
		"mirror":               s.config.Mirror.Provider,
	}
	usage, err := storage.MeasureArtifacts(
		s.config.Storage.IndexPath,
		s.config.Storage.StatePath,
		s.config.Storage.HistoryPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = usage.Total()
		resp["artifact_bytes"] = usage
	} else {
		s.logger.Warn("failed to measure artifacts", zap.Error(err))
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

type catalogEntry struct {
	Name     string `json:"name"`
	Articles string `json:"articles,omitempty"`
	Excluded bool   `json:"excluded"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.assistant.Catalog()
	entries := cat.Entries()
	out := make([]catalogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalogEntry{
			Name:     e.Name,
			Articles: catalog.FormatArticles(e.Articles),
			Excluded: cat.IsExcluded(e.Name),
		})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"regulations": out,
		"exclusions":  cat.Exclusions(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
