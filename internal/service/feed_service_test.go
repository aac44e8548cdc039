package service

import (
	"fmt"
	"testing"

	"github.com/classpulse/poll-service/internal/domain"
)

func TestFeedPostAndHistory(t *testing.T) {
	f := NewFeedService(100)

	msg := f.Post(domain.RoleStudent, "Alice", "hello")
	if msg.ID == "" || msg.Sender != "Alice" || msg.Role != domain.RoleStudent {
		t.Fatalf("unexpected message: %+v", msg)
	}

	sys := f.PostSystem("Alice joined")
	if sys.Role != domain.RoleSystem || sys.Sender != "System" {
		t.Errorf("system message role/sender = %s/%s", sys.Role, sys.Sender)
	}

	hist := f.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].Text != "hello" || hist[1].Text != "Alice joined" {
		t.Errorf("history out of order: %v", hist)
	}
}

// The feed keeps the 100 most recent entries in insertion order.
func TestFeedBound(t *testing.T) {
	f := NewFeedService(100)

	for i := 0; i < 150; i++ {
		f.Post(domain.RoleStudent, "Alice", fmt.Sprintf("msg-%d", i))
	}

	if got := f.Len(); got != 100 {
		t.Fatalf("Len = %d, want 100", got)
	}
	hist := f.History()
	if hist[0].Text != "msg-50" {
		t.Errorf("oldest retained = %q, want msg-50", hist[0].Text)
	}
	if hist[99].Text != "msg-149" {
		t.Errorf("newest retained = %q, want msg-149", hist[99].Text)
	}
}

// Rapid successive system posts all get distinct ids.
func TestFeedBurstIDs(t *testing.T) {
	f := NewFeedService(100)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		msg := f.PostSystem("burst")
		if seen[msg.ID] {
			t.Fatalf("duplicate message id %q", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestFeedClear(t *testing.T) {
	f := NewFeedService(100)

	f.Post(domain.RoleTeacher, "Teacher", "hi")
	f.Clear()
	if f.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", f.Len())
	}
	if len(f.History()) != 0 {
		t.Errorf("History after Clear is not empty")
	}
}
