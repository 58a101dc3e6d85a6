package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed or incomplete request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnsupportedFormat signals an upload that is not a PDF.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyFile signals an upload with no content.
	ErrEmptyFile = errors.New("empty file")
	// ErrPayloadTooLarge signals an upload above the configured limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrLoadFailure signals a document that could not be parsed.
	ErrLoadFailure = errors.New("document load failure")

	// ErrIndexNotFound signals a session without a persisted vector index.
	ErrIndexNotFound = errors.New("vector index not found")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingModelMismatch signals an index built with a different embedding model.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")

	// ErrUnknownPrompt signals a lookup of an unregistered prompt template.
	ErrUnknownPrompt = errors.New("unknown prompt")
	// ErrInvalidPrompt signals a template that cannot be rendered.
	ErrInvalidPrompt = errors.New("invalid prompt")

	// ErrLLMProviderError signals a language model provider failure.
	ErrLLMProviderError = errors.New("llm provider error")
	// ErrRewriteFailure signals a failed question rewrite stage.
	ErrRewriteFailure = errors.New("question rewrite failed")
	// ErrGenerationFailure signals a failed answer generation stage.
	ErrGenerationFailure = errors.New("answer generation failed")
)
