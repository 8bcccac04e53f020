package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain"
	"github.com/strugglingman/rag-chatbot/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusMappings pairs each domain sentinel with its HTTP status, checked
// in order.
var statusMappings = []struct {
	sentinel error
	status   int
}{
	{domain.ErrInputRejected, http.StatusBadRequest},
	{domain.ErrNoUserMessage, http.StatusBadRequest},
	{domain.ErrEmptyMessage, http.StatusBadRequest},
	{domain.ErrMissingIdentity, http.StatusBadRequest},
	{domain.ErrUnsupportedFile, http.StatusBadRequest},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrVectorStoreUnavailable, http.StatusBadGateway},
	{domain.ErrRerankUnavailable, http.StatusBadGateway},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway},
	{domain.ErrGenerationUnavailable, http.StatusBadGateway},
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	for _, m := range statusMappings {
		if errors.Is(err, m.sentinel) {
			writeError(w, m.status, safeDomainMessage(err, m.sentinel))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// safeDomainMessage returns a sentinel-level message for the client without
// exposing internals. Input rejections carry the detector reason.
func safeDomainMessage(err, sentinel error) string {
	var rejected *domain.InputRejectedError
	if errors.As(err, &rejected) {
		return "Input rejected: " + rejected.Reason
	}
	return sentinel.Error()
}
