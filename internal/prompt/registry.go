// Package prompt holds the fixed set of chat prompt templates used by the
// retrieval chain. Templates are parsed once and never change afterwards.
package prompt

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/domain/session"
)

// Registered template names.
const (
	ContextualizeQuestion = "contextualize_question"
	ContextQA             = "context_qa"
)

// Message slots.
const (
	SlotSystem  = "system"
	SlotHistory = "history"
	SlotUser    = "user"
)

//go:embed prompts.yaml
var defaultPrompts []byte

var placeholder = regexp.MustCompile(`\{([a-z_][a-z0-9_]*)\}`)

type slotDef struct {
	Slot    string `yaml:"slot"`
	Content string `yaml:"content"`
}

type templateDef struct {
	Description string    `yaml:"description"`
	Messages    []slotDef `yaml:"messages"`
}

// Template is an ordered sequence of message slots with {name} placeholders.
type Template struct {
	name  string
	slots []slotDef
	vars  []string
}

// Name returns the registry key.
func (t Template) Name() string { return t.name }

// Variables returns the placeholder names the template needs, sorted.
func (t Template) Variables() []string { return append([]string(nil), t.vars...) }

// Render substitutes vars into every slot and expands the history slot into
// one message per turn. Substitution is a single pass, so braces inside the
// substituted values are left alone.
func (t Template) Render(vars map[string]string, history []session.Turn) ([]domain.ChatMessage, error) {
	pairs := make([]string, 0, 2*len(t.vars))
	for _, name := range t.vars {
		v, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s: missing variable %q", domain.ErrInvalidPrompt, t.name, name)
		}
		pairs = append(pairs, "{"+name+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]domain.ChatMessage, 0, len(t.slots)+len(history))
	for _, s := range t.slots {
		switch s.Slot {
		case SlotSystem:
			out = append(out, domain.ChatMessage{Role: domain.RoleSystem, Content: r.Replace(s.Content)})
		case SlotUser:
			out = append(out, domain.ChatMessage{Role: domain.RoleUser, Content: r.Replace(s.Content)})
		case SlotHistory:
			for _, turn := range history {
				role := domain.RoleUser
				if turn.Role == session.RoleAssistant {
					role = domain.RoleAssistant
				}
				out = append(out, domain.ChatMessage{Role: role, Content: turn.Content})
			}
		}
	}
	return out, nil
}

// Registry maps names to templates.
type Registry struct {
	templates map[string]Template
}

// Default returns the registry built from the embedded prompt document.
func Default() (*Registry, error) {
	return Parse(defaultPrompts)
}

// Parse builds a registry from a YAML document. Both registered names must be
// present; extra names are rejected so a typo cannot shadow a real template.
func Parse(data []byte) (*Registry, error) {
	var defs map[string]templateDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("%w: parse prompts: %w", domain.ErrInvalidPrompt, err)
	}

	reg := &Registry{templates: make(map[string]Template, len(defs))}
	for name, def := range defs {
		if name != ContextualizeQuestion && name != ContextQA {
			return nil, fmt.Errorf("%w: unexpected template %q", domain.ErrInvalidPrompt, name)
		}
		tpl, err := compile(name, def)
		if err != nil {
			return nil, err
		}
		reg.templates[name] = tpl
	}
	for _, name := range []string{ContextualizeQuestion, ContextQA} {
		if _, ok := reg.templates[name]; !ok {
			return nil, fmt.Errorf("%w: template %q is not defined", domain.ErrInvalidPrompt, name)
		}
	}
	return reg, nil
}

// Get returns the named template.
func (r *Registry) Get(name string) (Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", domain.ErrUnknownPrompt, name)
	}
	return t, nil
}

func compile(name string, def templateDef) (Template, error) {
	if len(def.Messages) == 0 {
		return Template{}, fmt.Errorf("%w: %s has no messages", domain.ErrInvalidPrompt, name)
	}
	seen := map[string]bool{}
	histories := 0
	for i, s := range def.Messages {
		switch s.Slot {
		case SlotSystem, SlotUser:
			for _, m := range placeholder.FindAllStringSubmatch(s.Content, -1) {
				seen[m[1]] = true
			}
		case SlotHistory:
			histories++
		default:
			return Template{}, fmt.Errorf("%w: %s message %d: unknown slot %q", domain.ErrInvalidPrompt, name, i, s.Slot)
		}
	}
	if histories > 1 {
		return Template{}, fmt.Errorf("%w: %s has %d history slots", domain.ErrInvalidPrompt, name, histories)
	}

	vars := make([]string, 0, len(seen))
	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return Template{name: name, slots: def.Messages, vars: vars}, nil
}
