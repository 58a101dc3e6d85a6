package session

import (
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/docchat/internal/domain"
)

func TestNewID_Format(t *testing.T) {
	now := time.Date(2026, 3, 7, 9, 4, 5, 0, time.UTC)
	id := NewID(now, nil)

	if len(id) != len("session_20260307_090405_")+8 {
		t.Fatalf("unexpected length: %q", id)
	}
	if id[:24] != "session_20260307_090405_" {
		t.Errorf("unexpected prefix: %q", id)
	}
	if _, err := ParseID(id); err != nil {
		t.Errorf("generated id rejected: %v", err)
	}
}

func TestNewID_UsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 3, 7, 20, 0, 0, 0, time.UTC)

	id := NewID(now, loc)
	if id[:24] != "session_20260308_013000_" {
		t.Errorf("expected shifted timestamp, got %q", id)
	}
}

func TestNewID_Unique(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for range 100 {
		id := NewID(now, time.UTC)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestParseID_Rejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "session_2026_x", "../etc/passwd", "session_20260307_090405_ABCDEF12"} {
		if _, err := ParseID(raw); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("ParseID(%q): expected ErrInvalidRequest, got %v", raw, err)
		}
	}
}

func TestParseID_TrimsSpace(t *testing.T) {
	id, err := ParseID(" session_20260307_090405_0a1b2c3d\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "session_20260307_090405_0a1b2c3d" {
		t.Errorf("got %q", id)
	}
}

func TestWindow(t *testing.T) {
	h := []Turn{UserTurn("1"), AssistantTurn("2"), UserTurn("3"), AssistantTurn("4")}

	if got := Window(h, 0); len(got) != 4 {
		t.Errorf("n=0: expected all turns, got %d", len(got))
	}
	got := Window(h, 2)
	if len(got) != 2 || got[0].Content != "3" {
		t.Errorf("n=2: got %+v", got)
	}
	if got := Window(h, 10); len(got) != 4 {
		t.Errorf("n=10: expected all turns, got %d", len(got))
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAssistant.Valid() {
		t.Error("known roles must be valid")
	}
	if Role("system").Valid() {
		t.Error("system is not a transcript role")
	}
}
