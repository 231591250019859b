package game

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"humanornot/internal/models"
	"humanornot/internal/store"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrSessionFull         = errors.New("session is full")
	ErrAlreadyStarted      = errors.New("session already started")
	ErrInsufficientPlayers = errors.New("not enough human players to start")
	ErrQuotaExceeded       = errors.New("message quota for this round exhausted")
	ErrNotPlaying          = errors.New("session is not in a playing state")
	ErrSelfVote            = errors.New("players cannot vote on themselves")
)

// ResponseEngine is what the orchestrator needs from the agent layer.
type ResponseEngine interface {
	Reply(ctx context.Context, agent *models.Player, history []*models.Message, prompt string) string
}

// agentNames is the pool agents draw display names from when they are created
// to fill the table at start.
var agentNames = []string{
	"Alex", "Sam", "Jordan", "Casey", "Riley",
	"Morgan", "Jamie", "Taylor", "Quinn", "Dana",
}

// sessionLocks serializes all writes to a given session. The store itself is
// only record-level safe; read-check-then-write sequences need this.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *sessionLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	if l.m[id] == nil {
		l.m[id] = &sync.Mutex{}
	}
	return l.m[id]
}

// Manager owns session lifecycle: waiting -> playing -> finished, message
// budgets, vote collection, scoring, and the winner call at the end.
type Manager struct {
	store store.Store
	orch  *Orchestrator
	locks *sessionLocks
	log   zerolog.Logger
}

func NewManager(st store.Store, engine ResponseEngine, pacing Pacing, log zerolog.Logger) *Manager {
	locks := &sessionLocks{}
	return &Manager{
		store: st,
		orch:  newOrchestrator(st, engine, locks, pacing, log),
		locks: locks,
		log:   log,
	}
}

func (m *Manager) CreateSession(cfg models.SessionConfig) (string, error) {
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = 3
	}
	if cfg.MessagesPerPlayer < 1 {
		cfg.MessagesPerPlayer = 3
	}
	if cfg.Settings.Humans < 1 {
		cfg.Settings.Humans = 2
	}
	if cfg.Settings.Agents < 1 {
		cfg.Settings.Agents = 2
	}
	sess := &models.Session{
		Status:            models.StatusWaiting,
		CurrentRound:      0,
		MaxRounds:         cfg.MaxRounds,
		MessagesPerPlayer: cfg.MessagesPerPlayer,
		Settings:          cfg.Settings,
		CreatedAt:         time.Now().UTC(),
	}
	// the store rejects duplicate ids, so a code collision just means
	// drawing again
	var code string
	for {
		code = randomCode(5)
		sess.ID = code
		err := m.store.CreateSession(sess)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrExists) {
			return "", fmt.Errorf("create session: %w", err)
		}
	}
	m.log.Info().Str("session", code).Int("rounds", cfg.MaxRounds).Msg("session created")
	return code, nil
}

// Join adds a human player. The player id is derived from the display name,
// so the same name re-joining lands on the same player record.
func (m *Manager) Join(sessionID, name string) (string, error) {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := m.store.Session(sessionID)
	if !ok {
		return "", ErrSessionNotFound
	}
	id := playerKey(name)
	if _, exists := m.store.Player(sessionID, id); exists {
		return id, nil
	}
	if sess.Status != models.StatusWaiting {
		return "", ErrAlreadyStarted
	}
	if countHumans(m.store.Players(sessionID)) >= sess.Settings.Humans {
		return "", ErrSessionFull
	}
	p := &models.Player{
		ID:       id,
		Name:     strings.TrimSpace(name),
		Votes:    make(map[string]bool),
		JoinedAt: time.Now().UTC(),
	}
	if err := m.store.PutPlayer(sessionID, p); err != nil {
		return "", fmt.Errorf("join: %w", err)
	}
	m.log.Info().Str("session", sessionID).Str("player", id).Str("name", p.Name).Msg("player joined")
	return id, nil
}

// Start moves waiting -> playing, fills the table with agents, and seeds
// their opening messages.
func (m *Manager) Start(sessionID string) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := m.store.Session(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Status != models.StatusWaiting {
		return ErrAlreadyStarted
	}
	players := m.store.Players(sessionID)
	if countHumans(players) < sess.Settings.Humans {
		return ErrInsufficientPlayers
	}

	agents := 0
	for _, p := range players {
		if p.IsAI {
			agents++
		}
	}
	taken := make(map[string]bool, len(players))
	for _, p := range players {
		taken[strings.ToLower(p.Name)] = true
	}
	for i := agents; i < sess.Settings.Agents; i++ {
		kind := models.AgentClaude
		if i%2 == 1 {
			kind = models.AgentGemini
		}
		// agent ids take the same shape as name-derived human ids, so the
		// id alone never betrays who is artificial
		p := &models.Player{
			ID:        playerKey(uuid.NewString()),
			Name:      pickAgentName(taken),
			IsAI:      true,
			AgentKind: kind,
			Votes:     make(map[string]bool),
			JoinedAt:  time.Now().UTC(),
		}
		taken[strings.ToLower(p.Name)] = true
		if err := m.store.PutPlayer(sessionID, p); err != nil {
			return fmt.Errorf("create agent: %w", err)
		}
	}

	err := m.store.UpdateSession(sessionID, func(s *models.Session) {
		s.Status = models.StatusPlaying
		s.CurrentRound = 1
		s.RoundStartedAt = time.Now().UTC()
	})
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	m.log.Info().Str("session", sessionID).Msg("session started")
	go m.orch.SeedOpeners(context.Background(), sessionID, 1)
	return nil
}

// SubmitMessage persists a chat message if the player has budget left this
// round. Human messages hand off to the orchestrator for agent reactions;
// agent messages never chain further.
func (m *Manager) SubmitMessage(sessionID, playerID, text string) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := m.store.Session(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Status != models.StatusPlaying {
		return ErrNotPlaying
	}
	p, ok := m.store.Player(sessionID, playerID)
	if !ok {
		return ErrUnknownPlayer
	}
	if p.MessagesSent >= sess.MessagesPerPlayer {
		return ErrQuotaExceeded
	}
	msg := &models.Message{
		ID:         uuid.NewString(),
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Content:    strings.TrimSpace(text),
		Round:      sess.CurrentRound,
		SentAt:     time.Now().UTC(),
	}
	if err := m.store.AppendMessage(sessionID, msg); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if _, err := m.store.IncrementMessages(sessionID, playerID); err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	if !p.IsAI {
		go m.orch.ReactTo(context.Background(), sessionID, *msg)
	}
	return nil
}

// SubmitVote overwrites the voter's vote set. Votes target other players
// only. A human may revise until the round completes; the round completes
// once every human has a non-empty set.
func (m *Manager) SubmitVote(sessionID, playerID string, votes map[string]bool) error {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := m.store.Session(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if sess.Status != models.StatusPlaying {
		return ErrNotPlaying
	}
	if _, ok := m.store.Player(sessionID, playerID); !ok {
		return ErrUnknownPlayer
	}
	for votedID := range votes {
		if votedID == playerID {
			return ErrSelfVote
		}
		if _, ok := m.store.Player(sessionID, votedID); !ok {
			return ErrUnknownPlayer
		}
	}
	err := m.store.UpdatePlayer(sessionID, playerID, func(p *models.Player) {
		p.Votes = make(map[string]bool, len(votes))
		for k, v := range votes {
			p.Votes[k] = v
		}
	})
	if err != nil {
		return fmt.Errorf("submit vote: %w", err)
	}

	if m.roundComplete(sessionID) {
		m.completeRound(sessionID, sess)
	}
	return nil
}

// roundComplete: every human has voted. Agents are exempt.
func (m *Manager) roundComplete(sessionID string) bool {
	humans := 0
	for _, p := range m.store.Players(sessionID) {
		if p.IsAI {
			continue
		}
		humans++
		if len(p.Votes) == 0 {
			return false
		}
	}
	return humans > 0
}

func (m *Manager) completeRound(sessionID string, sess *models.Session) {
	players := m.store.Players(sessionID)
	result, awards := scoreRound(sess.CurrentRound, players)
	for voterID, pts := range awards {
		n := pts
		_ = m.store.UpdatePlayer(sessionID, voterID, func(p *models.Player) {
			p.Score += n
		})
	}
	if err := m.store.PutRoundResult(sessionID, result); err != nil {
		m.log.Error().Err(err).Str("session", sessionID).Msg("failed to store round result")
	}
	m.log.Info().Str("session", sessionID).Int("round", sess.CurrentRound).
		Int("aiCorrect", result.AICorrect).Int("humanCorrect", result.HumanCorrect).Msg("round scored")

	if sess.CurrentRound >= sess.MaxRounds {
		m.endGame(sessionID)
		return
	}
	m.advanceRound(sessionID, sess.CurrentRound+1)
}

// scoreRound tallies human votes against reality. Only exact matches of
// guess vs is_ai count; wrong guesses cost nothing and agents never score.
func scoreRound(round int, players []*models.Player) (*models.RoundResult, map[string]int) {
	byID := make(map[string]*models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}
	result := &models.RoundResult{
		Round:     round,
		PerPlayer: make(map[string]models.VoteTally),
	}
	awards := make(map[string]int)
	for _, voter := range players {
		if voter.IsAI {
			continue
		}
		for votedID, guessedAI := range voter.Votes {
			voted := byID[votedID]
			if voted == nil {
				continue
			}
			tally := result.PerPlayer[votedID]
			tally.Total++
			if guessedAI == voted.IsAI {
				tally.Correct++
				awards[voter.ID]++
				if voted.IsAI {
					result.AICorrect++
				} else {
					result.HumanCorrect++
				}
			}
			result.PerPlayer[votedID] = tally
		}
	}
	for id, t := range result.PerPlayer {
		t.Rate = t.DetectionRate()
		result.PerPlayer[id] = t
	}
	return result, awards
}

// advanceRound gives every player a clean slate and seeds fresh openers.
func (m *Manager) advanceRound(sessionID string, next int) {
	_ = m.store.UpdateSession(sessionID, func(s *models.Session) {
		s.CurrentRound = next
		s.RoundStartedAt = time.Now().UTC()
	})
	for _, p := range m.store.Players(sessionID) {
		_ = m.store.UpdatePlayer(sessionID, p.ID, func(pl *models.Player) {
			pl.MessagesSent = 0
			pl.Votes = make(map[string]bool)
		})
	}
	m.log.Info().Str("session", sessionID).Int("round", next).Msg("round advanced")
	go m.orch.SeedOpeners(context.Background(), sessionID, next)
}

// endGame sums every stored round result, calls the winner, reveals the
// agents, and freezes the session. Identities surface nowhere before this.
func (m *Manager) endGame(sessionID string) {
	var aiTotal, humanTotal int
	for _, r := range m.store.RoundResults(sessionID) {
		aiTotal += r.AICorrect
		humanTotal += r.HumanCorrect
	}
	winner := "Tie"
	switch {
	case aiTotal > humanTotal:
		winner = "AI"
	case humanTotal > aiTotal:
		winner = "Humans"
	}

	scores := make(map[string]int)
	topHuman := ""
	best := -1
	for _, p := range m.store.Players(sessionID) {
		if p.IsAI {
			_ = m.store.UpdatePlayer(sessionID, p.ID, func(pl *models.Player) {
				pl.Revealed = true
			})
			continue
		}
		scores[p.ID] = p.Score
		if p.Score > best {
			best = p.Score
			topHuman = p.ID
		}
	}
	final := &models.FinalResults{
		Winner:       winner,
		AICorrect:    aiTotal,
		HumanCorrect: humanTotal,
		Scores:       scores,
		TopHuman:     topHuman,
	}
	_ = m.store.UpdateSession(sessionID, func(s *models.Session) {
		s.Status = models.StatusFinished
		s.FinalResults = final
	})
	m.log.Info().Str("session", sessionID).Str("winner", winner).
		Int("aiCorrect", aiTotal).Int("humanCorrect", humanTotal).Msg("game over")
}

func playerKey(name string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return fmt.Sprintf("p-%08x", h.Sum32())
}

func countHumans(players []*models.Player) int {
	n := 0
	for _, p := range players {
		if !p.IsAI {
			n++
		}
	}
	return n
}

func pickAgentName(taken map[string]bool) string {
	for _, name := range agentNames {
		if !taken[strings.ToLower(name)] {
			return name
		}
	}
	// pool exhausted, fall back to a suffixed pick
	base := agentNames[rand.Intn(len(agentNames))]
	return fmt.Sprintf("%s%d", base, rand.Intn(90)+10)
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
