package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/answer"
	"github.com/kailas-cloud/docchat/internal/domain/chunk"
	"github.com/kailas-cloud/docchat/internal/domain/session"
	"github.com/kailas-cloud/docchat/internal/embedding/hashing"
	"github.com/kailas-cloud/docchat/internal/prompt"
	"github.com/kailas-cloud/docchat/internal/repository/history"
	"github.com/kailas-cloud/docchat/internal/repository/vectorindex"
)

const (
	sessA = "session_20260101_120000_aaaaaaaa"
	sessB = "session_20260101_120000_bbbbbbbb"
)

// --- Mocks ---

type llmCall struct {
	stage    string
	messages []domain.ChatMessage
}

// scriptedLLM echoes the last user message on rewrite and answers with a
// fixed prefix unless overridden.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   []llmCall
	rewrite func(msgs []domain.ChatMessage) (string, error)
	answer  func(msgs []domain.ChatMessage) (string, error)
}

func (m *scriptedLLM) Complete(_ context.Context, stage string, msgs []domain.ChatMessage) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, llmCall{stage: stage, messages: msgs})
	m.mu.Unlock()

	switch stage {
	case StageRewrite:
		if m.rewrite != nil {
			return m.rewrite(msgs)
		}
		return msgs[len(msgs)-1].Content, nil
	default:
		if m.answer != nil {
			return m.answer(msgs)
		}
		return "answer to " + msgs[len(msgs)-1].Content, nil
	}
}

func (m *scriptedLLM) stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.stage
	}
	return out
}

func (m *scriptedLLM) last(stage string) llmCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].stage == stage {
			return m.calls[i]
		}
	}
	return llmCall{}
}

type mapIndexes map[string]*vectorindex.Index

func (m mapIndexes) Get(_ context.Context, id string) (*vectorindex.Index, error) {
	ix, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, id)
	}
	return ix, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, domain.ErrEmbeddingProviderError
}

type emptyPrompts struct{}

func (emptyPrompts) Get(name string) (prompt.Template, error) {
	return prompt.Template{}, fmt.Errorf("%w: %q", domain.ErrUnknownPrompt, name)
}

// --- Helpers ---

var emb = hashing.New(256)

func buildIndex(t *testing.T, texts ...string) *vectorindex.Index {
	t.Helper()
	chunks := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk.Chunk{Text: text, Page: i + 1, Source: "doc.pdf", Position: i}
	}
	res, err := emb.BatchEmbed(context.Background(), texts)
	require.NoError(t, err)
	ix, err := vectorindex.Build(emb.Model(), chunks, res.Embeddings)
	require.NoError(t, err)
	return ix
}

type fixture struct {
	svc      *Service
	llm      *scriptedLLM
	sessions *history.Memory
}

func newFixture(t *testing.T, indexes IndexSource, mutate ...func(*Deps)) fixture {
	t.Helper()
	prompts, err := prompt.Default()
	require.NoError(t, err)

	llm := &scriptedLLM{}
	sessions := history.NewMemory()
	d := Deps{
		Indexes:  indexes,
		Sessions: sessions,
		Prompts:  prompts,
		LLM:      llm,
		Embedder: emb,
		Model:    emb.Model(),
	}
	for _, m := range mutate {
		m(&d)
	}
	svc, err := New(d)
	require.NoError(t, err)
	return fixture{svc: svc, llm: llm, sessions: sessions}
}

func capitalsIndexes(t *testing.T) mapIndexes {
	return mapIndexes{
		sessA: buildIndex(t, "The capital of France is Paris.", "The capital of Germany is Berlin."),
		sessB: buildIndex(t, "Bananas are rich in potassium."),
	}
}

// --- Tests ---

func TestNew_UnknownPrompt(t *testing.T) {
	_, err := New(Deps{Prompts: emptyPrompts{}})
	assert.ErrorIs(t, err, domain.ErrUnknownPrompt)
}

func TestRespond_RewriteThenAnswer(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))

	ans, err := f.svc.Respond(context.Background(), sessA, "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, answer.Answered, ans.Outcome)
	assert.Equal(t, "answer to What is the capital of France?", ans.Text)
	assert.Equal(t, []string{StageRewrite, StageAnswer}, f.llm.stages())

	qa := f.llm.last(StageAnswer)
	assert.Contains(t, qa.messages[0].Content, "The capital of France is Paris.")
	assert.Contains(t, qa.messages[0].Content, "The capital of France is Paris.\n\nThe capital of Germany is Berlin.")
}

func TestRespond_AnswerUsesOriginalQuery(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	f.llm.rewrite = func([]domain.ChatMessage) (string, error) {
		return "What is the capital city of Germany?", nil
	}

	ans, err := f.svc.Respond(context.Background(), sessA, "and germany?")
	require.NoError(t, err)

	assert.Equal(t, "What is the capital city of Germany?", ans.Rewritten)
	qa := f.llm.last(StageAnswer)
	assert.Equal(t, "and germany?", qa.messages[len(qa.messages)-1].Content)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "The capital of Germany is Berlin.", ans.Sources[0].Text)
}

func TestRespond_AppendsTurnsAndFeedsHistory(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	ctx := context.Background()

	_, err := f.svc.Respond(ctx, sessA, "What is the capital of France?")
	require.NoError(t, err)
	_, err = f.svc.Respond(ctx, sessA, "And its population?")
	require.NoError(t, err)

	turns, err := f.sessions.History(ctx, sessA)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, session.UserTurn("What is the capital of France?"), turns[0])
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
	assert.Equal(t, session.UserTurn("And its population?"), turns[2])

	// system + 2 history turns + user
	rw := f.llm.last(StageRewrite)
	require.Len(t, rw.messages, 4)
	assert.Equal(t, "What is the capital of France?", rw.messages[1].Content)
	assert.Equal(t, domain.RoleAssistant, rw.messages[2].Role)
}

func TestRespond_HistoryWindow(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t), func(d *Deps) { d.Options.MaxHistoryTurns = 2 })
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3"} {
		_, err := f.svc.Respond(ctx, sessA, q)
		require.NoError(t, err)
	}
	rw := f.llm.last(StageRewrite)
	// system + 2 windowed turns + user
	require.Len(t, rw.messages, 4)
	assert.Equal(t, "q2", rw.messages[1].Content)
}

func TestRespond_SessionsAreIsolated(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	ctx := context.Background()

	ans, err := f.svc.Respond(ctx, sessB, "What is the capital of France?")
	require.NoError(t, err)
	for _, src := range ans.Sources {
		assert.NotContains(t, src.Text, "capital")
	}

	turns, err := f.sessions.History(ctx, sessA)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRespond_EmptyIndexSkipsAnswerStage(t *testing.T) {
	empty, err := vectorindex.Build(emb.Model(), nil, nil)
	require.NoError(t, err)
	f := newFixture(t, mapIndexes{sessA: empty})

	ans, err := f.svc.Respond(context.Background(), sessA, "anything?")
	require.NoError(t, err)

	assert.Equal(t, answer.NoContext, ans.Outcome)
	assert.Equal(t, "No relevant information found.", ans.Text)
	assert.Equal(t, []string{StageRewrite}, f.llm.stages())
}

func TestRespond_MinScoreFiltersEverything(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t), func(d *Deps) { d.Options.MinScore = 0.99 })

	ans, err := f.svc.Respond(context.Background(), sessA, "quantum chromodynamics")
	require.NoError(t, err)
	assert.Equal(t, answer.NoContext, ans.Outcome)
	assert.Equal(t, []string{StageRewrite}, f.llm.stages())
}

func TestRespond_BlankAnswerIsSentinel(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	f.llm.answer = func([]domain.ChatMessage) (string, error) { return "  \n", nil }

	ans, err := f.svc.Respond(context.Background(), sessA, "capital?")
	require.NoError(t, err)
	assert.Equal(t, answer.NoAnswer, ans.Outcome)
	assert.Equal(t, "no answer generated.", ans.Text)
}

func TestRespond_EmptyRewriteFallsBackToQuery(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	f.llm.rewrite = func([]domain.ChatMessage) (string, error) { return "", nil }

	ans, err := f.svc.Respond(context.Background(), sessA, "capital of Germany")
	require.NoError(t, err)
	assert.Equal(t, "capital of Germany", ans.Rewritten)
}

func TestRespond_RewriteFailure(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	f.llm.rewrite = func([]domain.ChatMessage) (string, error) { return "", domain.ErrLLMProviderError }

	_, err := f.svc.Respond(context.Background(), sessA, "capital?")
	assert.ErrorIs(t, err, domain.ErrRewriteFailure)
	assert.ErrorIs(t, err, domain.ErrLLMProviderError)
	assert.Equal(t, []string{StageRewrite}, f.llm.stages())

	turns, _ := f.sessions.History(context.Background(), sessA)
	assert.Empty(t, turns)
}

func TestRespond_RewriteFallbackOption(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t), func(d *Deps) { d.Options.RewriteFallback = true })
	f.llm.rewrite = func([]domain.ChatMessage) (string, error) { return "", domain.ErrLLMProviderError }

	ans, err := f.svc.Respond(context.Background(), sessA, "capital of France")
	require.NoError(t, err)
	assert.Equal(t, "capital of France", ans.Rewritten)
	assert.Equal(t, answer.Answered, ans.Outcome)
}

func TestRespond_GenerationFailure(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	f.llm.answer = func([]domain.ChatMessage) (string, error) { return "", errors.New("timeout") }

	_, err := f.svc.Respond(context.Background(), sessA, "capital?")
	assert.ErrorIs(t, err, domain.ErrGenerationFailure)

	turns, _ := f.sessions.History(context.Background(), sessA)
	assert.Empty(t, turns)
}

func TestRespond_EmbeddingFailure(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t), func(d *Deps) { d.Embedder = failingEmbedder{} })

	_, err := f.svc.Respond(context.Background(), sessA, "capital?")
	assert.ErrorIs(t, err, domain.ErrEmbeddingProviderError)
}

func TestRespond_Validation(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		session string
		query   string
		want    error
	}{
		{"empty query", sessA, "   ", domain.ErrInvalidRequest},
		{"missing session", "", "q", domain.ErrInvalidRequest},
		{"malformed session", "../../etc", "q", domain.ErrInvalidRequest},
		{"unknown session", "session_20260101_120000_cccccccc", "q", domain.ErrIndexNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Respond(ctx, tt.session, tt.query)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.llm.stages())
}

func TestRespond_ModelMismatch(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t), func(d *Deps) { d.Model = "sentence-transformers/all-MiniLM-L6-v2" })

	_, err := f.svc.Respond(context.Background(), sessA, "capital?")
	assert.ErrorIs(t, err, domain.ErrEmbeddingModelMismatch)
}

func TestRespond_ReregistersForgottenSession(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	ctx := context.Background()

	ok, _ := f.sessions.Exists(ctx, sessA)
	require.False(t, ok)

	_, err := f.svc.Respond(ctx, sessA, "capital?")
	require.NoError(t, err)

	ok, _ = f.sessions.Exists(ctx, sessA)
	assert.True(t, ok)
}

func TestRespond_ConcurrentQueriesKeepTurnsPaired(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Respond(ctx, sessA, fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	turns, err := f.sessions.History(ctx, sessA)
	require.NoError(t, err)
	require.Len(t, turns, 32)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, session.RoleUser, turns[i].Role)
		assert.Equal(t, "answer to "+turns[i].Content, turns[i+1].Content)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, capitalsIndexes(t))
	ctx := context.Background()

	turns, err := f.svc.History(ctx, sessA)
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = f.svc.Respond(ctx, sessA, "capital?")
	require.NoError(t, err)
	turns, err = f.svc.History(ctx, sessA)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	_, err = f.svc.History(ctx, "session_20260101_120000_cccccccc")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
	_, err = f.svc.History(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestFormatContext(t *testing.T) {
	got := formatContext([]chunk.Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}})
	assert.Equal(t, "a\n\nb\n\nc", got)
	assert.Empty(t, formatContext(nil))
	assert.False(t, strings.Contains(formatContext([]chunk.Chunk{{Text: "x"}}), "\n"))
}
