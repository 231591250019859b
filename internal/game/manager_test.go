package game

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"humanornot/internal/models"
	"humanornot/internal/store/memory"
)

type stubEngine struct {
	line string
}

func (s stubEngine) Reply(_ context.Context, _ *models.Player, _ []*models.Message, _ string) string {
	return s.line
}

func newTestManager() (*Manager, *memory.Store) {
	st := memory.New()
	m := NewManager(st, stubEngine{line: "hm, interesting"}, Pacing{MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, zerolog.Nop())
	m.orch.sleep = func(context.Context, time.Duration) bool { return true }
	return m, st
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestCreateSessionDefaults(t *testing.T) {
	m, st := newTestManager()
	code, err := m.CreateSession(models.SessionConfig{})
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}
	if code == "" {
		t.Fatal("session code should not be empty")
	}
	sess, ok := st.Session(code)
	if !ok {
		t.Fatal("session should be stored")
	}
	if sess.Status != models.StatusWaiting {
		t.Fatalf("expected status %s, got %s", models.StatusWaiting, sess.Status)
	}
	if sess.CurrentRound != 0 {
		t.Fatalf("expected round 0 before start, got %d", sess.CurrentRound)
	}
	if sess.MaxRounds < 1 || sess.MessagesPerPlayer < 1 {
		t.Fatalf("defaults should be applied, got rounds=%d msgs=%d", sess.MaxRounds, sess.MessagesPerPlayer)
	}
}

func TestJoinDerivesStableIDs(t *testing.T) {
	m, _ := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{Settings: models.Settings{Humans: 2, Agents: 1}})

	id1, err := m.Join(code, "Alice")
	if err != nil {
		t.Fatalf("should be able to join: %v", err)
	}
	again, err := m.Join(code, "Alice")
	if err != nil {
		t.Fatalf("rejoin with the same name should succeed: %v", err)
	}
	if again != id1 {
		t.Fatalf("same name should map to the same player id, got %s and %s", id1, again)
	}

	id2, err := m.Join(code, "Bob")
	if err != nil {
		t.Fatalf("second player should be able to join: %v", err)
	}
	if id2 == id1 {
		t.Fatal("different names should map to different ids")
	}

	if _, err := m.Join(code, "Carol"); err != ErrSessionFull {
		t.Fatalf("expected ErrSessionFull once the human target is met, got %v", err)
	}
	if _, err := m.Join("NOPE1", "Dave"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStartNeedsEnoughHumans(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{Settings: models.Settings{Humans: 2, Agents: 2}})
	m.Join(code, "Alice")

	if err := m.Start(code); err != ErrInsufficientPlayers {
		t.Fatalf("expected ErrInsufficientPlayers with one human, got %v", err)
	}

	m.Join(code, "Bob")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start with enough humans: %v", err)
	}

	sess, _ := st.Session(code)
	if sess.Status != models.StatusPlaying {
		t.Fatalf("expected status %s, got %s", models.StatusPlaying, sess.Status)
	}
	if sess.CurrentRound != 1 {
		t.Fatalf("expected round 1 after start, got %d", sess.CurrentRound)
	}

	agents := 0
	for _, p := range st.Players(code) {
		if p.IsAI {
			agents++
			if p.Revealed {
				t.Fatal("agents must not be revealed during play")
			}
			if p.AgentKind != models.AgentClaude && p.AgentKind != models.AgentGemini {
				t.Fatalf("agent should have a backend kind, got %q", p.AgentKind)
			}
		}
	}
	if agents != 2 {
		t.Fatalf("expected 2 auto-created agents, got %d", agents)
	}

	if err := m.Start(code); err != ErrAlreadyStarted {
		t.Fatalf("starting twice should fail with ErrAlreadyStarted, got %v", err)
	}
	if _, err := m.Join(code, "Late"); err != ErrAlreadyStarted {
		t.Fatalf("joining a running session should fail, got %v", err)
	}
}

func TestMessageQuota(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{
		MaxRounds:         2,
		MessagesPerPlayer: 2,
		Settings:          models.Settings{Humans: 1, Agents: 1},
	})
	alice, _ := m.Join(code, "Alice")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start: %v", err)
	}

	if err := m.SubmitMessage(code, alice, "hello"); err != nil {
		t.Fatalf("first message should be accepted: %v", err)
	}
	if err := m.SubmitMessage(code, alice, "anyone here?"); err != nil {
		t.Fatalf("second message should be accepted: %v", err)
	}
	if err := m.SubmitMessage(code, alice, "one too many"); err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded on third message, got %v", err)
	}

	count := 0
	for _, msg := range st.Messages(code, 1) {
		if msg.PlayerID == alice {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("rejected message must not be persisted, found %d", count)
	}

	if err := m.SubmitMessage(code, "p-00000000", "ghost"); err != ErrUnknownPlayer {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
	if err := m.SubmitMessage("NOPE1", alice, "hi"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestVoteCompletionScoresAndEndsGame(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{
		MaxRounds:         1,
		MessagesPerPlayer: 3,
		Settings:          models.Settings{Humans: 2, Agents: 1},
	})
	h1, _ := m.Join(code, "Alice")
	h2, _ := m.Join(code, "Bob")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start: %v", err)
	}
	var agentID string
	for _, p := range st.Players(code) {
		if p.IsAI {
			agentID = p.ID
		}
	}

	if err := m.SubmitVote(code, h1, map[string]bool{"missing": true}); err != ErrUnknownPlayer {
		t.Fatalf("votes for unknown players should fail, got %v", err)
	}

	if err := m.SubmitVote(code, h1, map[string]bool{agentID: true}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}
	sess, _ := st.Session(code)
	if sess.Status != models.StatusPlaying {
		t.Fatal("round must not complete before every human has voted")
	}

	if err := m.SubmitVote(code, h2, map[string]bool{agentID: true}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	sess, _ = st.Session(code)
	if sess.Status != models.StatusFinished {
		t.Fatalf("expected session finished after final round, got %s", sess.Status)
	}
	results := st.RoundResults(code)
	if len(results) != 1 {
		t.Fatalf("expected 1 round result, got %d", len(results))
	}
	if results[0].AICorrect != 2 || results[0].HumanCorrect != 0 {
		t.Fatalf("expected aiCorrect=2 humanCorrect=0, got %d/%d", results[0].AICorrect, results[0].HumanCorrect)
	}
	if sess.FinalResults == nil || sess.FinalResults.Winner != "AI" {
		t.Fatalf("expected AI winner, got %+v", sess.FinalResults)
	}
	for _, p := range st.Players(code) {
		if p.IsAI && !p.Revealed {
			t.Fatal("agents must be revealed once the game is finished")
		}
		if !p.IsAI && p.Score != 1 {
			t.Fatalf("each human should score +1, %s got %d", p.Name, p.Score)
		}
	}

	if err := m.SubmitVote(code, h1, map[string]bool{agentID: true}); err != ErrNotPlaying {
		t.Fatalf("voting after the game should fail, got %v", err)
	}
}

func TestRoundAdvanceResetsState(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{
		MaxRounds:         2,
		MessagesPerPlayer: 3,
		Settings:          models.Settings{Humans: 1, Agents: 1},
	})
	alice, _ := m.Join(code, "Alice")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start: %v", err)
	}
	if err := m.SubmitMessage(code, alice, "round one talk"); err != nil {
		t.Fatalf("should be able to send: %v", err)
	}

	var agentID string
	for _, p := range st.Players(code) {
		if p.IsAI {
			agentID = p.ID
		}
	}
	if err := m.SubmitVote(code, alice, map[string]bool{agentID: false}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	sess, _ := st.Session(code)
	if sess.Status != models.StatusPlaying {
		t.Fatalf("game should continue after round 1 of 2, got %s", sess.Status)
	}
	if sess.CurrentRound != 2 {
		t.Fatalf("expected round 2, got %d", sess.CurrentRound)
	}
	p, _ := st.Player(code, alice)
	if p.MessagesSent != 0 {
		t.Fatalf("message counter should reset on round advance, got %d", p.MessagesSent)
	}
	if len(p.Votes) != 0 {
		t.Fatal("vote set should reset on round advance")
	}
	// round 1 history stays addressable by round number
	if len(st.Messages(code, 1)) == 0 {
		t.Fatal("prior round messages should remain retrievable")
	}

	// a wrong guess scores nothing but still completes the round
	if p.Score != 0 {
		t.Fatalf("wrong guess must not score, got %d", p.Score)
	}
}

func TestScoreRoundCountsExactMatchesOnly(t *testing.T) {
	players := []*models.Player{
		{ID: "h1", Votes: map[string]bool{"h2": false, "a1": true, "a2": false}},
		{ID: "h2", Votes: map[string]bool{"h1": true, "a1": true}},
		{ID: "a1", IsAI: true, Votes: map[string]bool{"h1": true}}, // agent votes never count
		{ID: "a2", IsAI: true},
	}
	result, awards := scoreRound(3, players)

	if result.Round != 3 {
		t.Fatalf("expected round 3, got %d", result.Round)
	}
	// h1: h2=false correct, a1=true correct, a2=false wrong -> 2 points
	// h2: h1=true wrong, a1=true correct -> 1 point
	if awards["h1"] != 2 || awards["h2"] != 1 {
		t.Fatalf("unexpected awards: %+v", awards)
	}
	if awards["a1"] != 0 {
		t.Fatal("agent votes must not be scored")
	}
	if result.AICorrect != 2 {
		t.Fatalf("expected 2 correct agent identifications, got %d", result.AICorrect)
	}
	if result.HumanCorrect != 1 {
		t.Fatalf("expected 1 correct human identification, got %d", result.HumanCorrect)
	}
	if got := result.PerPlayer["a1"]; got.Correct != 2 || got.Total != 2 {
		t.Fatalf("unexpected tally for a1: %+v", got)
	}
	if got := result.PerPlayer["h1"]; got.Correct != 0 || got.Total != 1 {
		t.Fatalf("unexpected tally for h1: %+v", got)
	}
	if result.PerPlayer["a1"].Rate != 100 {
		t.Fatalf("a1 detection rate should be 100, got %v", result.PerPlayer["a1"].Rate)
	}
	if result.PerPlayer["h1"].Rate != 0 {
		t.Fatalf("h1 detection rate should be 0, got %v", result.PerPlayer["h1"].Rate)
	}
	if result.PerPlayer["h2"].Rate != 100 {
		t.Fatalf("h2 detection rate should be 100, got %v", result.PerPlayer["h2"].Rate)
	}
}

func TestVoteRejectsSelf(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{
		MaxRounds:         1,
		MessagesPerPlayer: 3,
		Settings:          models.Settings{Humans: 1, Agents: 1},
	})
	alice, _ := m.Join(code, "Alice")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start: %v", err)
	}
	var agentID string
	for _, p := range st.Players(code) {
		if p.IsAI {
			agentID = p.ID
		}
	}

	if err := m.SubmitVote(code, alice, map[string]bool{alice: false}); err != ErrSelfVote {
		t.Fatalf("expected ErrSelfVote, got %v", err)
	}
	if err := m.SubmitVote(code, alice, map[string]bool{alice: false, agentID: true}); err != ErrSelfVote {
		t.Fatalf("a self-vote mixed into a valid set should still fail, got %v", err)
	}
	p, _ := st.Player(code, alice)
	if len(p.Votes) != 0 {
		t.Fatal("a rejected vote set must not be stored")
	}
	if err := m.SubmitVote(code, alice, map[string]bool{agentID: true}); err != nil {
		t.Fatalf("voting on others should still work: %v", err)
	}
}

func TestWinnerHumans(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{
		MaxRounds:         1,
		MessagesPerPlayer: 3,
		Settings:          models.Settings{Humans: 2, Agents: 1},
	})
	h1, _ := m.Join(code, "Alice")
	h2, _ := m.Join(code, "Bob")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start: %v", err)
	}

	// both humans clear each other, nobody flags the agent
	if err := m.SubmitVote(code, h1, map[string]bool{h2: false}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}
	if err := m.SubmitVote(code, h2, map[string]bool{h1: false}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	sess, _ := st.Session(code)
	if sess.FinalResults == nil {
		t.Fatal("final results should be populated")
	}
	if sess.FinalResults.Winner != "Humans" {
		t.Fatalf("expected Humans winner, got %s", sess.FinalResults.Winner)
	}
	if sess.FinalResults.TopHuman == "" {
		t.Fatal("top human should be recorded")
	}
}

func TestVoteRevisionBeforeCompletion(t *testing.T) {
	m, st := newTestManager()
	code, _ := m.CreateSession(models.SessionConfig{
		MaxRounds:         1,
		MessagesPerPlayer: 3,
		Settings:          models.Settings{Humans: 2, Agents: 1},
	})
	h1, _ := m.Join(code, "Alice")
	h2, _ := m.Join(code, "Bob")
	if err := m.Start(code); err != nil {
		t.Fatalf("should be able to start: %v", err)
	}
	var agentID string
	for _, p := range st.Players(code) {
		if p.IsAI {
			agentID = p.ID
		}
	}

	// first guess is wrong, the revision is right; last write wins
	if err := m.SubmitVote(code, h1, map[string]bool{agentID: false}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}
	if err := m.SubmitVote(code, h1, map[string]bool{agentID: true}); err != nil {
		t.Fatalf("should be able to revise vote: %v", err)
	}
	if err := m.SubmitVote(code, h2, map[string]bool{agentID: true}); err != nil {
		t.Fatalf("should be able to vote: %v", err)
	}

	sess, _ := st.Session(code)
	if sess.FinalResults == nil || sess.FinalResults.AICorrect != 2 {
		t.Fatalf("revised votes should be the ones scored, got %+v", sess.FinalResults)
	}
}
