// Package memory is the in-process document store. Records are kept per
// session and handed out as copies so callers never share mutable state with
// the store.
package memory

import (
	"sort"
	"sync"

	"humanornot/internal/models"
	"humanornot/internal/store"
)

type sessionDoc struct {
	session      models.Session
	players      map[string]*models.Player
	playerOrder  []string
	messages     []*models.Message
	roundResults map[int]*models.RoundResult
	nextSeq      int64
	subscribers  map[chan store.Event]struct{}
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessionDoc
}

func New() *Store {
	return &Store{sessions: make(map[string]*sessionDoc)}
}

func (s *Store) CreateSession(sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return store.ErrExists
	}
	s.sessions[sess.ID] = &sessionDoc{
		session:      *sess,
		players:      make(map[string]*models.Player),
		roundResults: make(map[int]*models.RoundResult),
		nextSeq:      1,
		subscribers:  make(map[chan store.Event]struct{}),
	}
	return nil
}

func (s *Store) Session(id string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.sessions[id]
	if doc == nil {
		return nil, false
	}
	out := doc.session
	if doc.session.FinalResults != nil {
		fr := *doc.session.FinalResults
		fr.Scores = copyIntMap(doc.session.FinalResults.Scores)
		out.FinalResults = &fr
	}
	return &out, true
}

func (s *Store) UpdateSession(id string, fn func(*models.Session)) error {
	s.mu.Lock()
	doc := s.sessions[id]
	if doc == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	fn(&doc.session)
	subs := doc.snapshotSubscribers()
	s.mu.Unlock()
	notify(subs, id)
	return nil
}

func (s *Store) PutPlayer(sessionID string, p *models.Player) error {
	s.mu.Lock()
	doc := s.sessions[sessionID]
	if doc == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	if _, exists := doc.players[p.ID]; !exists {
		doc.playerOrder = append(doc.playerOrder, p.ID)
	}
	doc.players[p.ID] = copyPlayer(p)
	subs := doc.snapshotSubscribers()
	s.mu.Unlock()
	notify(subs, sessionID)
	return nil
}

func (s *Store) Player(sessionID, playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.sessions[sessionID]
	if doc == nil {
		return nil, false
	}
	p := doc.players[playerID]
	if p == nil {
		return nil, false
	}
	return copyPlayer(p), true
}

func (s *Store) Players(sessionID string) []*models.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.sessions[sessionID]
	if doc == nil {
		return nil
	}
	out := make([]*models.Player, 0, len(doc.playerOrder))
	for _, id := range doc.playerOrder {
		out = append(out, copyPlayer(doc.players[id]))
	}
	return out
}

func (s *Store) UpdatePlayer(sessionID, playerID string, fn func(*models.Player)) error {
	s.mu.Lock()
	doc := s.sessions[sessionID]
	if doc == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	p := doc.players[playerID]
	if p == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	fn(p)
	subs := doc.snapshotSubscribers()
	s.mu.Unlock()
	notify(subs, sessionID)
	return nil
}

func (s *Store) IncrementMessages(sessionID, playerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.sessions[sessionID]
	if doc == nil {
		return 0, store.ErrNotFound
	}
	p := doc.players[playerID]
	if p == nil {
		return 0, store.ErrNotFound
	}
	p.MessagesSent++
	return p.MessagesSent, nil
}

func (s *Store) AppendMessage(sessionID string, m *models.Message) error {
	s.mu.Lock()
	doc := s.sessions[sessionID]
	if doc == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	m.Seq = doc.nextSeq
	doc.nextSeq++
	stored := *m
	doc.messages = append(doc.messages, &stored)
	subs := doc.snapshotSubscribers()
	s.mu.Unlock()
	notify(subs, sessionID)
	return nil
}

func (s *Store) Messages(sessionID string, round int) []*models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.sessions[sessionID]
	if doc == nil {
		return nil
	}
	out := make([]*models.Message, 0)
	for _, m := range doc.messages {
		if m.Round == round {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (s *Store) PutRoundResult(sessionID string, r *models.RoundResult) error {
	s.mu.Lock()
	doc := s.sessions[sessionID]
	if doc == nil {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	doc.roundResults[r.Round] = copyRoundResult(r)
	subs := doc.snapshotSubscribers()
	s.mu.Unlock()
	notify(subs, sessionID)
	return nil
}

func (s *Store) RoundResults(sessionID string) []*models.RoundResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := s.sessions[sessionID]
	if doc == nil {
		return nil
	}
	out := make([]*models.RoundResult, 0, len(doc.roundResults))
	for _, r := range doc.roundResults {
		out = append(out, copyRoundResult(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}

// Subscribe registers a change channel for the session. The channel is never
// closed; after cancel returns no further events are delivered, so receivers
// should pair the channel with their own done signal.
func (s *Store) Subscribe(sessionID string) (<-chan store.Event, func()) {
	ch := make(chan store.Event, 8)
	s.mu.Lock()
	doc := s.sessions[sessionID]
	if doc == nil {
		s.mu.Unlock()
		return ch, func() {}
	}
	doc.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if doc := s.sessions[sessionID]; doc != nil {
			delete(doc.subscribers, ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (doc *sessionDoc) snapshotSubscribers() []chan store.Event {
	subs := make([]chan store.Event, 0, len(doc.subscribers))
	for ch := range doc.subscribers {
		subs = append(subs, ch)
	}
	return subs
}

// notify drops events a subscriber cannot take immediately; events only say
// "re-read this session", so a pending one already covers the change.
func notify(subs []chan store.Event, sessionID string) {
	for _, ch := range subs {
		select {
		case ch <- store.Event{SessionID: sessionID}:
		default:
		}
	}
}

func copyPlayer(p *models.Player) *models.Player {
	cp := *p
	cp.Votes = copyBoolMap(p.Votes)
	return &cp
}

func copyRoundResult(r *models.RoundResult) *models.RoundResult {
	cp := *r
	if r.PerPlayer != nil {
		cp.PerPlayer = make(map[string]models.VoteTally, len(r.PerPlayer))
		for k, v := range r.PerPlayer {
			cp.PerPlayer[k] = v
		}
	}
	return &cp
}

func copyBoolMap(m map[string]bool) map[string]bool {
	if m == nil {
		return nil
	}
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyIntMap(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
