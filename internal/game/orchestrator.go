package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"humanornot/internal/agent"
	"humanornot/internal/models"
	"humanornot/internal/store"
)

// Pacing bounds the simulated typing delay before an agent's message lands.
type Pacing struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Orchestrator decides which agents react to a human message and paces their
// replies so they land like someone actually typed them. It runs detached
// from the request that triggered it; ordering is guaranteed by the store's
// append sequence, not by blocking the sender.
type Orchestrator struct {
	store  store.Store
	engine ResponseEngine
	locks  *sessionLocks
	log    zerolog.Logger

	minDelay time.Duration
	maxDelay time.Duration
	// sleep waits for the pacing delay; tests swap it out to skip waiting.
	// Returns false when the context ended first.
	sleep func(ctx context.Context, d time.Duration) bool

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newOrchestrator(st store.Store, engine ResponseEngine, locks *sessionLocks, pacing Pacing, log zerolog.Logger) *Orchestrator {
	if pacing.MinDelay <= 0 {
		pacing.MinDelay = 2 * time.Second
	}
	if pacing.MaxDelay < pacing.MinDelay {
		pacing.MaxDelay = pacing.MinDelay + 4*time.Second
	}
	return &Orchestrator{
		store:    st,
		engine:   engine,
		locks:    locks,
		log:      log,
		minDelay: pacing.MinDelay,
		maxDelay: pacing.MaxDelay,
		sleep:    waitFor,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func waitFor(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ReactTo picks one or two agents with budget left and has each reply to the
// triggering human message. Replies are written one after another so a single
// agent's lines keep their order.
func (o *Orchestrator) ReactTo(ctx context.Context, sessionID string, trigger models.Message) {
	sess, ok := o.store.Session(sessionID)
	if !ok || sess.Status != models.StatusPlaying || sess.CurrentRound != trigger.Round {
		return
	}
	candidates := o.availableAgents(sessionID, sess.MessagesPerPlayer)
	if len(candidates) == 0 {
		return
	}
	n := o.randN(2) + 1 // 1 or 2 responders
	if n > len(candidates) {
		n = len(candidates)
	}
	o.shuffle(candidates)

	prompt := agent.ReplyPrompt(trigger.PlayerName, trigger.Content)
	for _, ag := range candidates[:n] {
		if !o.sleep(ctx, o.typingDelay()) {
			return
		}
		history := o.store.Messages(sessionID, trigger.Round)
		text := o.engine.Reply(ctx, ag, history, prompt)
		o.writeAgentMessage(sessionID, trigger.Round, ag, text, trigger.PlayerID)
	}
}

// SeedOpeners emits one opening line per quiet agent at round start, each on
// its own pacing clock.
func (o *Orchestrator) SeedOpeners(ctx context.Context, sessionID string, round int) {
	sess, ok := o.store.Session(sessionID)
	if !ok || sess.Status != models.StatusPlaying || sess.CurrentRound != round {
		return
	}
	var wg sync.WaitGroup
	for _, p := range o.store.Players(sessionID) {
		if !p.IsAI || p.MessagesSent > 0 {
			continue
		}
		wg.Add(1)
		go func(ag *models.Player) {
			defer wg.Done()
			if !o.sleep(ctx, o.typingDelay()) {
				return
			}
			line := agent.OpeningLine(ag.Name, round)
			o.writeOpener(sessionID, round, ag, line)
		}(p)
	}
	wg.Wait()
}

// writeOpener is writeAgentMessage restricted to agents that have not spoken
// this round, so seeding stays exactly-once even if it runs twice.
func (o *Orchestrator) writeOpener(sessionID string, round int, ag *models.Player, text string) {
	o.write(sessionID, round, ag, text, "", true)
}

func (o *Orchestrator) writeAgentMessage(sessionID string, round int, ag *models.Player, text, inResponseTo string) {
	o.write(sessionID, round, ag, text, inResponseTo, false)
}

// write re-checks the session under the lock before appending: the pacing
// delay may have crossed a round advance or the end of the game.
func (o *Orchestrator) write(sessionID string, round int, ag *models.Player, text, inResponseTo string, mustBeQuiet bool) {
	if text == "" {
		return
	}
	lock := o.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok := o.store.Session(sessionID)
	if !ok || sess.Status != models.StatusPlaying || sess.CurrentRound != round {
		return
	}
	current, ok := o.store.Player(sessionID, ag.ID)
	if !ok || current.MessagesSent >= sess.MessagesPerPlayer {
		return
	}
	if mustBeQuiet && current.MessagesSent > 0 {
		return
	}
	msg := &models.Message{
		ID:           uuid.NewString(),
		PlayerID:     ag.ID,
		PlayerName:   ag.Name,
		Content:      text,
		Round:        round,
		SentAt:       time.Now().UTC(),
		IsAgentReply: inResponseTo != "",
		InResponseTo: inResponseTo,
	}
	if err := o.store.AppendMessage(sessionID, msg); err != nil {
		o.log.Error().Err(err).Str("session", sessionID).Str("agent", ag.Name).Msg("failed to write agent message")
		return
	}
	if _, err := o.store.IncrementMessages(sessionID, ag.ID); err != nil {
		o.log.Error().Err(err).Str("session", sessionID).Str("agent", ag.Name).Msg("failed to bump agent counter")
	}
}

func (o *Orchestrator) availableAgents(sessionID string, budget int) []*models.Player {
	var out []*models.Player
	for _, p := range o.store.Players(sessionID) {
		if p.IsAI && p.MessagesSent < budget {
			out = append(out, p)
		}
	}
	return out
}

func (o *Orchestrator) typingDelay() time.Duration {
	span := o.maxDelay - o.minDelay
	if span <= 0 {
		return o.minDelay
	}
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.minDelay + time.Duration(o.rng.Int63n(int64(span)))
}

func (o *Orchestrator) randN(n int) int {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Intn(n)
}

func (o *Orchestrator) shuffle(players []*models.Player) {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	o.rng.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})
}
