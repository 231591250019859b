package memory

import (
	"testing"
	"time"

	"humanornot/internal/models"
	"humanornot/internal/store"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	err := s.CreateSession(&models.Session{ID: "ABCDE", Status: models.StatusWaiting, MaxRounds: 3})
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}
	return s
}

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	s := seeded(t)
	s.PutPlayer("ABCDE", &models.Player{ID: "p1", Name: "Alice"})

	err := s.CreateSession(&models.Session{ID: "ABCDE", Status: models.StatusWaiting})
	if err != store.ErrExists {
		t.Fatalf("expected ErrExists for a duplicate id, got %v", err)
	}
	if _, ok := s.Player("ABCDE", "p1"); !ok {
		t.Fatal("a rejected create must not clobber the existing session")
	}
}

func TestSequenceIsMonotonicPerSession(t *testing.T) {
	s := seeded(t)
	for i := 0; i < 5; i++ {
		m := &models.Message{ID: "m", PlayerID: "p1", Content: "hi", Round: 1}
		if err := s.AppendMessage("ABCDE", m); err != nil {
			t.Fatalf("append should succeed: %v", err)
		}
		if m.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, m.Seq)
		}
	}
}

func TestMessagesFilterByRound(t *testing.T) {
	s := seeded(t)
	s.AppendMessage("ABCDE", &models.Message{Content: "round one", Round: 1})
	s.AppendMessage("ABCDE", &models.Message{Content: "round two", Round: 2})
	s.AppendMessage("ABCDE", &models.Message{Content: "more round one", Round: 1})

	r1 := s.Messages("ABCDE", 1)
	if len(r1) != 2 {
		t.Fatalf("expected 2 round-1 messages, got %d", len(r1))
	}
	if r1[0].Seq > r1[1].Seq {
		t.Fatal("messages should come back ordered by seq")
	}
	if len(s.Messages("ABCDE", 2)) != 1 {
		t.Fatal("round scoping should keep prior rounds addressable")
	}
}

func TestIncrementMessages(t *testing.T) {
	s := seeded(t)
	s.PutPlayer("ABCDE", &models.Player{ID: "p1", Name: "Alice"})

	for want := 1; want <= 3; want++ {
		got, err := s.IncrementMessages("ABCDE", "p1")
		if err != nil {
			t.Fatalf("increment should succeed: %v", err)
		}
		if got != want {
			t.Fatalf("expected counter %d, got %d", want, got)
		}
	}
	if _, err := s.IncrementMessages("ABCDE", "ghost"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown player, got %v", err)
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := seeded(t)
	s.PutPlayer("ABCDE", &models.Player{ID: "p1", Name: "Alice", Votes: map[string]bool{}})

	p, _ := s.Player("ABCDE", "p1")
	p.Name = "Mallory"
	p.Votes["x"] = true

	fresh, _ := s.Player("ABCDE", "p1")
	if fresh.Name != "Alice" || len(fresh.Votes) != 0 {
		t.Fatal("mutating a read result must not affect stored state")
	}
}

func TestSubscribeDeliversChangeEvents(t *testing.T) {
	s := seeded(t)
	ch, cancel := s.Subscribe("ABCDE")
	defer cancel()

	s.PutPlayer("ABCDE", &models.Player{ID: "p1", Name: "Alice"})

	select {
	case ev := <-ch:
		if ev.SessionID != "ABCDE" {
			t.Fatalf("expected event for ABCDE, got %s", ev.SessionID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a change event after a write")
	}

	cancel()
	s.PutPlayer("ABCDE", &models.Player{ID: "p2", Name: "Bob"})
	select {
	case <-ch:
		t.Fatal("no events should arrive after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUpdateSessionUnknownID(t *testing.T) {
	s := New()
	err := s.UpdateSession("NOPE", func(*models.Session) {})
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
