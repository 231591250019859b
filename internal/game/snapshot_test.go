package game

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"humanornot/internal/models"
)

func TestSnapshotHidesAgentIdentityMidGame(t *testing.T) {
	m, st := startedGame(t, models.SessionConfig{
		MaxRounds:         1,
		MessagesPerPlayer: 3,
		Settings:          models.Settings{Humans: 1, Agents: 2},
	}, "Alice")
	alice := playerKey("Alice")

	if err := m.SubmitMessage(st.code, alice, "anyone hiding something?"); err != nil {
		t.Fatalf("should be able to send: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		for _, msg := range st.Messages(st.code, 1) {
			if msg.IsAgentReply {
				return true
			}
		}
		return false
	})

	snap, err := m.State(st.code)
	if err != nil {
		t.Fatalf("should be able to read state: %v", err)
	}
	for _, p := range snap.Players {
		if !strings.HasPrefix(p.ID, "p-") || len(p.ID) != len(alice) {
			t.Fatalf("player ids must share one shape, got %q", p.ID)
		}
	}

	// the serialized payload is what clients see; nothing in it may mark a
	// message as coming from an agent while the game is running
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("snapshot should marshal: %v", err)
	}
	if strings.Contains(string(b), "isAgentReply") || strings.Contains(string(b), "inResponseTo") {
		t.Fatal("mid-game snapshot must not carry reply metadata")
	}
}

func TestSnapshotRevealsReplyMetadataAfterGame(t *testing.T) {
	m, st := startedGame(t, models.SessionConfig{
		MaxRounds:         1,
		MessagesPerPlayer: 5,
		Settings:          models.Settings{Humans: 1, Agents: 1},
	}, "Alice")
	alice := playerKey("Alice")

	if err := m.SubmitMessage(st.code, alice, "last call before votes"); err != nil {
		t.Fatalf("should be able to send: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		for _, msg := range st.Messages(st.code, 1) {
			if msg.IsAgentReply {
				return true
			}
		}
		return false
	})

	var agentID string
	for _, p := range st.Players(st.code) {
		if p.IsAI {
			agentID = p.ID
		}
	}
	if err := m.SubmitVote(st.code, alice, map[string]bool{agentID: true}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	snap, err := m.State(st.code)
	if err != nil {
		t.Fatalf("should be able to read state: %v", err)
	}
	if snap.Session.Status != models.StatusFinished {
		t.Fatalf("expected finished session, got %s", snap.Session.Status)
	}
	found := false
	for _, msg := range snap.Messages {
		if msg.IsAgentReply && msg.InResponseTo == alice {
			found = true
		}
	}
	if !found {
		t.Fatal("finished snapshot should surface reply metadata")
	}
}
