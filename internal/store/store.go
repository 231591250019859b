package store

import (
	"errors"

	"humanornot/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Event signals that something in a session changed. Subscribers re-read
// state rather than decoding a payload.
type Event struct {
	SessionID string
}

// Store is the document-store contract the game layer writes through:
// get/set/update per record, an atomic per-player counter increment, ordered
// message reads scoped by round, and per-session change notification.
type Store interface {
	// CreateSession stores a new session and rejects a duplicate id with
	// ErrExists.
	CreateSession(s *models.Session) error
	Session(id string) (*models.Session, bool)
	UpdateSession(id string, fn func(*models.Session)) error

	PutPlayer(sessionID string, p *models.Player) error
	Player(sessionID, playerID string) (*models.Player, bool)
	Players(sessionID string) []*models.Player
	UpdatePlayer(sessionID, playerID string, fn func(*models.Player)) error
	// IncrementMessages atomically bumps the player's per-round message
	// counter and returns the new value.
	IncrementMessages(sessionID, playerID string) (int, error)

	// AppendMessage assigns the message a session-monotonic Seq and stores it.
	AppendMessage(sessionID string, m *models.Message) error
	// Messages returns the given round's messages ordered by Seq.
	Messages(sessionID string, round int) []*models.Message

	PutRoundResult(sessionID string, r *models.RoundResult) error
	RoundResults(sessionID string) []*models.RoundResult

	// Subscribe delivers an Event whenever the session changes. The returned
	// func cancels the subscription; the channel is not closed.
	Subscribe(sessionID string) (<-chan Event, func())
}
