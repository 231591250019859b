package game

import (
	"time"

	"humanornot/internal/models"
)

// PlayerView is a player as the rendering surface may see them. Identities
// stay hidden: IsAgent and AgentKind are only populated once the game has
// finished and the agents are revealed.
type PlayerView struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	MessagesSent int              `json:"messagesSent"`
	HasVoted     bool             `json:"hasVoted"`
	Score        int              `json:"score"`
	IsAgent      bool             `json:"isAgent"`
	AgentKind    models.AgentKind `json:"agentKind,omitempty"`
}

// MessageView is a chat line as the rendering surface may see it. The reply
// metadata marks agent messages, so it only surfaces once the game is
// finished, like the player identities.
type MessageView struct {
	ID           string    `json:"id"`
	PlayerID     string    `json:"playerId"`
	PlayerName   string    `json:"playerName"`
	Content      string    `json:"content"`
	Round        int       `json:"round"`
	Seq          int64     `json:"seq"`
	SentAt       time.Time `json:"sentAt"`
	IsAgentReply bool      `json:"isAgentReply,omitempty"`
	InResponseTo string    `json:"inResponseTo,omitempty"`
}

// Snapshot is everything a rendering surface needs for one session: the
// session record, player views, the current round's messages in display
// order, and the stored round results.
type Snapshot struct {
	Session  *models.Session       `json:"session"`
	Players  []PlayerView          `json:"players"`
	Messages []MessageView         `json:"messages"`
	Results  []*models.RoundResult `json:"results"`
}

func (m *Manager) State(sessionID string) (*Snapshot, error) {
	sess, ok := m.store.Session(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	players := m.store.Players(sessionID)
	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		v := PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			MessagesSent: p.MessagesSent,
			HasVoted:     len(p.Votes) > 0,
			Score:        p.Score,
		}
		if p.Revealed {
			v.IsAgent = p.IsAI
			v.AgentKind = p.AgentKind
		}
		views = append(views, v)
	}
	finished := sess.Status == models.StatusFinished
	msgs := m.store.Messages(sessionID, sess.CurrentRound)
	lines := make([]MessageView, 0, len(msgs))
	for _, msg := range msgs {
		v := MessageView{
			ID:         msg.ID,
			PlayerID:   msg.PlayerID,
			PlayerName: msg.PlayerName,
			Content:    msg.Content,
			Round:      msg.Round,
			Seq:        msg.Seq,
			SentAt:     msg.SentAt,
		}
		if finished {
			v.IsAgentReply = msg.IsAgentReply
			v.InResponseTo = msg.InResponseTo
		}
		lines = append(lines, v)
	}
	return &Snapshot{
		Session:  sess,
		Players:  views,
		Messages: lines,
		Results:  m.store.RoundResults(sessionID),
	}, nil
}
