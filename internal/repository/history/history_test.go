package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docchat/internal/domain/session"
)

const (
	sessA = "session_20260101_120000_aaaaaaaa"
	sessB = "session_20260101_120000_bbbbbbbb"
)

// contract runs the shared Store behaviour against a backend factory.
func contract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("unknown session is empty", func(t *testing.T) {
		s := newStore(t)
		turns, err := s.History(context.Background(), sessA)
		require.NoError(t, err)
		assert.Empty(t, turns)

		ok, err := s.Exists(context.Background(), sessA)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("create then append keeps order", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Create(ctx, sessA))

		ok, err := s.Exists(ctx, sessA)
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, s.Append(ctx, sessA,
			session.UserTurn("What is the capital of France?"),
			session.AssistantTurn("Paris.")))
		require.NoError(t, s.Append(ctx, sessA,
			session.UserTurn("And Germany?"),
			session.AssistantTurn("Berlin.")))

		turns, err := s.History(ctx, sessA)
		require.NoError(t, err)
		assert.Equal(t, []session.Turn{
			session.UserTurn("What is the capital of France?"),
			session.AssistantTurn("Paris."),
			session.UserTurn("And Germany?"),
			session.AssistantTurn("Berlin."),
		}, turns)
	})

	t.Run("create is idempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Create(ctx, sessA))
		require.NoError(t, s.Append(ctx, sessA, session.UserTurn("hi")))
		require.NoError(t, s.Create(ctx, sessA))

		turns, err := s.History(ctx, sessA)
		require.NoError(t, err)
		assert.Len(t, turns, 1)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Create(ctx, sessA))
		require.NoError(t, s.Create(ctx, sessB))
		require.NoError(t, s.Append(ctx, sessA, session.UserTurn("only in A")))

		turns, err := s.History(ctx, sessB)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		s := newStore(t)
		err := s.Append(context.Background(), sessA, session.Turn{Role: "system", Content: "x"})
		assert.Error(t, err)
	})
}

func TestMemory(t *testing.T) {
	contract(t, func(*testing.T) Store { return NewMemory() })
}

func TestMemory_HistoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Append(ctx, sessA, session.UserTurn("original")))

	turns, err := m.History(ctx, sessA)
	require.NoError(t, err)
	turns[0].Content = "mutated"

	again, err := m.History(ctx, sessA)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestMemory_ConcurrentAppendsDoNotInterleave(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := fmt.Sprintf("q%d", i)
			assert.NoError(t, m.Append(ctx, sessA, session.UserTurn(q), session.AssistantTurn("a"+q)))
		}()
	}
	wg.Wait()

	turns, err := m.History(ctx, sessA)
	require.NoError(t, err)
	require.Len(t, turns, 40)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, session.RoleUser, turns[i].Role)
		assert.Equal(t, "a"+turns[i].Content, turns[i+1].Content)
	}
}

func TestSQLite(t *testing.T) {
	contract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "sessions.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, sessA))
	require.NoError(t, s.Append(ctx, sessA, session.UserTurn("q"), session.AssistantTurn("a")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))
	ok, err := s.Exists(ctx, sessA)
	require.NoError(t, err)
	assert.True(t, ok)
	turns, err := s.History(ctx, sessA)
	require.NoError(t, err)
	assert.Equal(t, []session.Turn{session.UserTurn("q"), session.AssistantTurn("a")}, turns)
}
