package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/session"
)

func TestDefault_HasBothTemplates(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	rewrite, err := reg.Get(ContextualizeQuestion)
	require.NoError(t, err)
	assert.Equal(t, []string{"input"}, rewrite.Variables())

	qa, err := reg.Get(ContextQA)
	require.NoError(t, err)
	assert.Equal(t, []string{"context", "input"}, qa.Variables())
}

func TestGet_Unknown(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	_, err = reg.Get("summarize")
	assert.ErrorIs(t, err, domain.ErrUnknownPrompt)
}

func TestRender_ExpandsHistoryInOrder(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	tpl, err := reg.Get(ContextualizeQuestion)
	require.NoError(t, err)

	history := []session.Turn{
		session.UserTurn("What is the capital of France?"),
		session.AssistantTurn("Paris."),
	}
	msgs, err := tpl.Render(map[string]string{"input": "And its population?"}, history)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, domain.RoleUser, msgs[1].Role)
	assert.Equal(t, "What is the capital of France?", msgs[1].Content)
	assert.Equal(t, domain.RoleAssistant, msgs[2].Role)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "And its population?"}, msgs[3])
}

func TestRender_ContextGoesToSystem(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	tpl, err := reg.Get(ContextQA)
	require.NoError(t, err)

	msgs, err := tpl.Render(map[string]string{"context": "Paris is the capital.", "input": "capital?"}, nil)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "Paris is the capital.")
	assert.NotContains(t, msgs[0].Content, "{context}")
}

func TestRender_MissingVariable(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	tpl, err := reg.Get(ContextQA)
	require.NoError(t, err)

	_, err = tpl.Render(map[string]string{"input": "q"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPrompt)
}

func TestRender_ValuesAreNotReexpanded(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)
	tpl, err := reg.Get(ContextQA)
	require.NoError(t, err)

	msgs, err := tpl.Render(map[string]string{"context": "ctx", "input": "what does {context} mean?"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "what does {context} mean?", msgs[len(msgs)-1].Content)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"bad yaml":      "contextualize_question: [",
		"missing qa":    "contextualize_question:\n  messages:\n    - slot: user\n      content: '{input}'\n",
		"unknown name":  "other:\n  messages:\n    - slot: user\n      content: x\n",
		"unknown slot":  "contextualize_question:\n  messages:\n    - slot: tool\n      content: x\ncontext_qa:\n  messages:\n    - slot: user\n      content: x\n",
		"no messages":   "contextualize_question: {}\ncontext_qa:\n  messages:\n    - slot: user\n      content: x\n",
		"two histories": "contextualize_question:\n  messages:\n    - slot: history\n    - slot: history\ncontext_qa:\n  messages:\n    - slot: user\n      content: x\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, domain.ErrInvalidPrompt)
		})
	}
}
