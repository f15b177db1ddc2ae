package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/models"
)

type askRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

type contextRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.K < 0 {
		s.respondError(w, http.StatusBadRequest, "k must be positive")
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.Int("k", req.K))

	result, context := s.answers.Ask(r.Context(), req.Question, req.K)
	s.respondJSON(w, http.StatusOK, models.AskResponse{
		Answer:  result.Answer,
		State:   result.State,
		Context: context,
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeContextRequest(w, r)
	if !ok {
		return
	}
	matches, err := s.answers.Context(r.Context(), req.Query, req.K)
	if err != nil {
		s.logger.Error("context retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	s.respondJSON(w, http.StatusOK, models.ContextResponse{Context: texts})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeContextRequest(w, r)
	if !ok {
		return
	}
	matches, err := s.answers.Context(r.Context(), req.Query, req.K)
	if err != nil {
		s.logger.Error("query retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []models.RetrievalMatch{}
	}
	s.respondJSON(w, http.StatusOK, models.QueryResponse{Chunks: matches})
}

func (s *Server) decodeContextRequest(w http.ResponseWriter, r *http.Request) (contextRequest, bool) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	if req.K < 0 {
		s.respondError(w, http.StatusBadRequest, "k must be positive")
		return req, false
	}
	return req, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.Error("status: store stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"vectors":    stats.VectorCount,
		"dimensions": stats.Dimensions,
	}
	if s.manifest != nil {
		docs, chunks, err := s.manifest.Counts(ctx)
		if err != nil {
			s.logger.Warn("status: manifest counts failed", zap.Error(err))
		} else {
			resp["documents"] = docs
			resp["uploaded_chunks"] = chunks
		}
	}
	resp["config"] = map[string]interface{}{
		"backend":             s.config.Backend.Type,
		"embedding_provider":  s.config.Embedding.Provider,
		"embedding_model":     s.config.Embedding.Model,
		"top_k":               s.config.Retrieval.TopK,
		"relevance_threshold": s.config.Retrieval.RelevanceThreshold,
		"chunk_size":          s.config.Ingest.ChunkSize,
		"chunk_overlap":       s.config.Ingest.ChunkOverlap,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
