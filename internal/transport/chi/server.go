// Package chi is the HTTP transport: routing, identity extraction, request
// decoding, and domain error mapping.
package chi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	chatuc "github.com/strugglingman/rag-chatbot/internal/usecase/chat"
	healthuc "github.com/strugglingman/rag-chatbot/internal/usecase/health"
	ingestuc "github.com/strugglingman/rag-chatbot/internal/usecase/ingest"
)

// maxUploadBytes bounds the in-memory part of a multipart upload.
const maxUploadBytes = 50 << 20

// Server wires the HTTP API: chat, ingestion, health, metrics.
type Server struct {
	chat   *chatuc.Service
	ingest *ingestuc.Service
	health *healthuc.Service
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	chat *chatuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{chat: chat, ingest: ingest, health: health, logger: logger}
}

// Routes registers all handlers.
func (s *Server) Routes(r chi.Router) {
	r.Post("/chat", s.Chat)
	r.Post("/ingest", s.Ingest)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatFilter is one entry of the request's filters list. Each entry
// carries either an extension filter or a tag filter; the first of each
// kind wins.
type chatFilter struct {
	Exts []string `json:"exts"`
	Tags []string `json:"tags"`
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Filters  []chatFilter  `json:"filters"`
}

// Chat handles POST /chat: a streamed plain-text answer followed by the
// context frame.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	msgs := make([]chatuc.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chatuc.Message{Role: m.Role, Content: m.Content}
	}

	var exts, tags []string
	for _, f := range req.Filters {
		if exts == nil && len(f.Exts) > 0 {
			exts = f.Exts
		}
		if tags == nil && len(f.Tags) > 0 {
			tags = f.Tags
		}
	}

	out := newStreamWriter(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	err := s.chat.Chat(r.Context(), chatuc.Request{
		SessionID: id.SessionID,
		Scope:     tenant.New(id.DeptID, id.UserID),
		Messages:  msgs,
		Exts:      exts,
		Tags:      tags,
	}, out)
	if err != nil {
		// Chat only errors before writing, so the JSON error still lands.
		s.handleDomainError(r.Context(), w, err)
	}
}

// streamWriter flushes after every write so answer deltas reach the client
// as they are produced.
type streamWriter struct {
	w     http.ResponseWriter
	flush http.Flusher
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	sw := &streamWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f
	}
	return sw
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if sw.flush != nil {
		sw.flush.Flush()
	}
	return n, err
}

type ingestResponse struct {
	FileID string `json:"file_id"`
	Chunks int    `json:"chunks"`
}

// Ingest handles POST /ingest: a multipart upload with a "file" part plus
// optional "tags" (comma-separated) and "shared" fields.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	// The document reader works from a path, so spool the upload to disk,
	// keeping the extension the reader dispatches on.
	path, cleanup, err := spoolUpload(file, filepath.Ext(header.Filename))
	if err != nil {
		s.logger.Error("spool upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer cleanup()

	res, err := s.ingest.Ingest(r.Context(), ingestuc.Request{
		Path:     path,
		Filename: header.Filename,
		Tags:     splitTags(r.FormValue("tags")),
		Shared:   parseBool(r.FormValue("shared")),
		Scope:    tenant.New(id.DeptID, id.UserID),
	})
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{FileID: res.FileID, Chunks: res.Chunks})
}

func spoolUpload(file io.Reader, ext string) (path string, cleanup func(), err error) {
	tmp, err := os.CreateTemp("", "ingest-*"+ext)
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
