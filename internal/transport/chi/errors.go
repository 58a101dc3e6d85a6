package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Order matters: the stage sentinels wrap ErrLLMProviderError and must match first.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeInvalidRequest),
	sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, codeUnsupportedFormat),
	sentinelHandler(domain.ErrEmptyFile, http.StatusBadRequest, codeEmptyFile),
	sentinelHandler(domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, codePayloadTooLarge),
	sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, codeSessionNotFound),
	sentinelHandler(domain.ErrLoadFailure, http.StatusInternalServerError, codeLoadFailure),
	sentinelHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, codeVectorDimMismatch),
	sentinelHandler(domain.ErrEmbeddingModelMismatch, http.StatusInternalServerError, codeEmbeddingModelMismatch),
	sentinelHandler(domain.ErrUnknownPrompt, http.StatusInternalServerError, codePromptError),
	sentinelHandler(domain.ErrInvalidPrompt, http.StatusInternalServerError, codePromptError),
	sentinelHandler(domain.ErrRewriteFailure, http.StatusBadGateway, codeRewriteFailure),
	sentinelHandler(domain.ErrGenerationFailure, http.StatusBadGateway, codeGenerationFailure),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage never leaks wrapped provider or filesystem details.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrUnsupportedFormat,
		domain.ErrEmptyFile,
		domain.ErrPayloadTooLarge,
		domain.ErrIndexNotFound,
		domain.ErrLoadFailure,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingModelMismatch,
		domain.ErrUnknownPrompt,
		domain.ErrInvalidPrompt,
		domain.ErrRewriteFailure,
		domain.ErrGenerationFailure,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.Or(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
