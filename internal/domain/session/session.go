// Package session defines conversation identifiers and transcript turns.
package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/docchat/internal/domain"
)

const (
	idPrefix     = "session"
	idTimeLayout = "20060102_150405"
	suffixLen    = 8
)

var idPattern = regexp.MustCompile(`^session_\d{8}_\d{6}_[0-9a-f]{8}$`)

// Role identifies the author of a turn.
type Role string

// Transcript roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message of a conversation transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user message.
func UserTurn(content string) Turn { return Turn{Role: RoleUser, Content: content} }

// AssistantTurn builds an assistant message.
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// NewID returns session_YYYYMMDD_HHMMSS_<8 hex> for now in loc.
func NewID(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s_%s", idPrefix, now.In(loc).Format(idTimeLayout), hex[:suffixLen])
}

// ParseID validates a client-supplied identifier. Only ids produced by NewID
// are accepted, which also keeps them safe to use as path components.
func ParseID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%w: session_id is required", domain.ErrInvalidRequest)
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: malformed session_id %q", domain.ErrInvalidRequest, id)
	}
	return id, nil
}

// Window returns the last n turns of history; n <= 0 keeps everything.
func Window(history []Turn, n int) []Turn {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
