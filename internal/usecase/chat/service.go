// Package chat answers questions about an ingested document with a two-stage
// chain: the query is rewritten into a standalone question using the
// transcript, the rewrite drives retrieval, and the answer is generated from
// the retrieved chunks, the original query and the transcript.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/moby/locker"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/answer"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/session"
	"github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/prompt"
	"github.com/kailas-cloud/docchat/internal/repository/vectorindex"
)

// LLM stage labels.
const (
	StageRewrite = "rewrite"
	StageAnswer  = "answer"
)

const contextSeparator = "\n\n"

// Options tune the chain.
type Options struct {
	TopK     int
	MinScore float64 // hits below are dropped; 0 keeps everything
	// RewriteFallback answers with the raw query when the rewrite call fails.
	RewriteFallback bool
	MaxHistoryTurns int // 0 = full transcript
	LogPreviewChars int
}

// Deps wires the chain.
type Deps struct {
	Indexes  IndexSource
	Sessions Transcripts
	Prompts  Prompts
	LLM      domain.ChatModel
	// Embedder must be the query-side embedder of Model.
	Embedder domain.Embedder
	Model    string
	Options  Options
	Logger   *zap.Logger
}

// Service runs conversational queries.
type Service struct {
	d        Deps
	opts     Options
	rewriter prompt.Template
	qa       prompt.Template
	locks    *locker.Locker // one query per session at a time
}

// New creates a chat service. Both chain templates are resolved up front.
func New(d Deps) (*Service, error) {
	rewriter, err := d.Prompts.Get(prompt.ContextualizeQuestion)
	if err != nil {
		return nil, fmt.Errorf("rewrite prompt: %w", err)
	}
	qa, err := d.Prompts.Get(prompt.ContextQA)
	if err != nil {
		return nil, fmt.Errorf("answer prompt: %w", err)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	opts := d.Options
	if opts.TopK <= 0 {
		opts.TopK = vectorindex.DefaultTopK
	}
	if opts.LogPreviewChars <= 0 {
		opts.LogPreviewChars = 150
	}
	return &Service{d: d, opts: opts, rewriter: rewriter, qa: qa, locks: locker.New()}, nil
}

// Respond answers query within the session and records both turns.
func (s *Service) Respond(ctx context.Context, sessionID, query string) (answer.Answer, error) {
	start := time.Now()
	id, err := session.ParseID(sessionID)
	if err != nil {
		return answer.Answer{}, err
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return answer.Answer{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}

	ix, err := s.index(ctx, id)
	if err != nil {
		return answer.Answer{}, err
	}

	s.locks.Lock(id)
	defer func() { _ = s.locks.Unlock(id) }()

	if err := s.ensureSession(ctx, id); err != nil {
		return answer.Answer{}, err
	}
	history, err := s.d.Sessions.History(ctx, id)
	if err != nil {
		return answer.Answer{}, fmt.Errorf("read history: %w", err)
	}
	history = session.Window(history, s.opts.MaxHistoryTurns)

	rewritten, err := s.rewrite(ctx, id, q, history)
	if err != nil {
		return answer.Answer{}, err
	}

	hits, err := s.retrieve(ctx, ix, rewritten)
	if err != nil {
		return answer.Answer{}, err
	}

	var ans answer.Answer
	if len(hits) == 0 {
		ans = answer.Empty(rewritten)
	} else {
		sources := make([]chunk.Chunk, len(hits))
		for i, h := range hits {
			sources[i] = h.Chunk
		}
		text, err := s.generate(ctx, q, formatContext(sources), history)
		if err != nil {
			return answer.Answer{}, err
		}
		ans = answer.Generated(text, rewritten, sources)
	}

	if err := s.d.Sessions.Append(ctx, id, session.UserTurn(q), session.AssistantTurn(ans.Text)); err != nil {
		return answer.Answer{}, fmt.Errorf("append history: %w", err)
	}

	metrics.AnswersTotal.WithLabelValues(string(ans.Outcome)).Inc()
	logger.Or(ctx, s.d.Logger).Info("query answered",
		zap.String("session_id", id),
		zap.String("input", logger.Truncate(q, s.opts.LogPreviewChars)),
		zap.String("rewritten", logger.Truncate(rewritten, s.opts.LogPreviewChars)),
		zap.String("outcome", string(ans.Outcome)),
		zap.Int("sources", len(ans.Sources)),
		zap.String("answer_preview", logger.Truncate(ans.Text, s.opts.LogPreviewChars)),
		zap.Duration("duration", time.Since(start)),
	)
	return ans, nil
}

// History returns the transcript of a known session.
func (s *Service) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	id, err := session.ParseID(sessionID)
	if err != nil {
		return nil, err
	}
	ok, err := s.d.Sessions.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		// A transcript store that forgot the session (restart, TTL) still
		// leaves the index on disk; only a missing index is an unknown session.
		if _, err := s.index(ctx, id); err != nil {
			return nil, err
		}
	}
	turns, err := s.d.Sessions.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return turns, nil
}

func (s *Service) index(ctx context.Context, id string) (*vectorindex.Index, error) {
	ix, err := s.d.Indexes.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if m := ix.Manifest(); m.Model != s.d.Model {
		return nil, fmt.Errorf("%w: index built with %q, configured %q",
			domain.ErrEmbeddingModelMismatch, m.Model, s.d.Model)
	}
	return ix, nil
}

func (s *Service) ensureSession(ctx context.Context, id string) error {
	ok, err := s.d.Sessions.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if ok {
		return nil
	}
	logger.Or(ctx, s.d.Logger).Info("re-registering session with empty history", zap.String("session_id", id))
	if err := s.d.Sessions.Create(ctx, id); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

func (s *Service) rewrite(ctx context.Context, id, q string, history []session.Turn) (string, error) {
	msgs, err := s.rewriter.Render(map[string]string{"input": q}, history)
	if err != nil {
		return "", err
	}
	out, err := s.d.LLM.Complete(ctx, StageRewrite, msgs)
	if err != nil {
		if s.opts.RewriteFallback && ctx.Err() == nil {
			logger.Or(ctx, s.d.Logger).Warn("rewrite failed, using raw query",
				zap.String("session_id", id), zap.Error(err))
			return q, nil
		}
		return "", fmt.Errorf("%w: %w", domain.ErrRewriteFailure, err)
	}
	if out = strings.TrimSpace(out); out == "" {
		return q, nil
	}
	return out, nil
}

func (s *Service) retrieve(ctx context.Context, ix *vectorindex.Index, q string) ([]vectorindex.Hit, error) {
	res, err := s.d.Embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.Search(res.Embedding, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if s.opts.MinScore == 0 {
		return hits, nil
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= s.opts.MinScore {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

func (s *Service) generate(ctx context.Context, q, docs string, history []session.Turn) (string, error) {
	msgs, err := s.qa.Render(map[string]string{"context": docs, "input": q}, history)
	if err != nil {
		return "", err
	}
	out, err := s.d.LLM.Complete(ctx, StageAnswer, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
	}
	return strings.TrimSpace(out), nil
}

func formatContext(sources []chunk.Chunk) string {
	return strings.Join(chunk.Texts(sources), contextSeparator)
}
