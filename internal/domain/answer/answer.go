// Package answer describes the outcome of one conversational query.
package answer

import "github.com/kailas-cloud/docchat/internal/domain/chunk"

// Sentinel texts returned to clients instead of a generated answer.
const (
	NoContextText = "No relevant information found."
	NoAnswerText  = "no answer generated."
)

// Outcome distinguishes a generated answer from the two sentinel cases.
type Outcome string

// Outcomes.
const (
	Answered  Outcome = "answered"
	NoContext Outcome = "no_context"
	NoAnswer  Outcome = "no_answer"
)

// Answer is the result of a successful chain run.
type Answer struct {
	Outcome Outcome
	Text    string
	// Rewritten is the standalone question used for retrieval.
	Rewritten string
	Sources   []chunk.Chunk
}

// Generated wraps model output. Blank output becomes the NoAnswer sentinel.
func Generated(text, rewritten string, sources []chunk.Chunk) Answer {
	if isBlank(text) {
		return Answer{Outcome: NoAnswer, Text: NoAnswerText, Rewritten: rewritten, Sources: sources}
	}
	return Answer{Outcome: Answered, Text: text, Rewritten: rewritten, Sources: sources}
}

// Empty is returned when retrieval found nothing to ground an answer on.
func Empty(rewritten string) Answer {
	return Answer{Outcome: NoContext, Text: NoContextText, Rewritten: rewritten}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			return false
		}
	}
	return true
}
