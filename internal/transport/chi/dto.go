package chi

import "github.com/kailas-cloud/docchat/internal/domain/session"

// Error codes returned in ErrorResponse.Code.
const (
	codeInvalidRequest         = "invalid_request"
	codeUnsupportedFormat      = "unsupported_format"
	codeEmptyFile              = "empty_file"
	codePayloadTooLarge        = "payload_too_large"
	codeLoadFailure            = "load_failure"
	codeSessionNotFound        = "session_not_found"
	codeVectorDimMismatch      = "vector_dim_mismatch"
	codeEmbeddingModelMismatch = "embedding_model_mismatch"
	codePromptError            = "prompt_error"
	codeEmbeddingProviderError = "embedding_provider_error"
	codeRewriteFailure         = "rewrite_failure"
	codeGenerationFailure      = "generation_failure"
	codeInternalError          = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadResponse acknowledges an ingested document.
type UploadResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	FilePath  string `json:"file_path"`
	Pages     int    `json:"pages"`
	Chunks    int    `json:"chunks"`
}

// queryForm is bound from the urlencoded or multipart body of /chat/query.
type queryForm struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// QueryResponse carries the answer or one of the sentinel texts.
type QueryResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
}

// HistoryResponse is a session transcript in chronological order.
type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []session.Turn `json:"turns"`
}

// HealthResponse reports aggregated component status.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}
