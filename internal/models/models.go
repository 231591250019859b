package models

import "time"

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// AgentKind selects which generation backend an agent player speaks through.
type AgentKind string

const (
	AgentClaude AgentKind = "claude"
	AgentGemini AgentKind = "gemini"
)

type Settings struct {
	Humans int `json:"humans"` // humans required before the game can start
	Agents int `json:"agents"` // agents created to fill the table on start
}

type SessionConfig struct {
	MaxRounds         int      `json:"maxRounds"`
	MessagesPerPlayer int      `json:"messagesPerPlayer"`
	Settings          Settings `json:"settings"`
}

type Session struct {
	ID                string        `json:"id"`
	Status            Status        `json:"status"`
	CurrentRound      int           `json:"currentRound"`
	MaxRounds         int           `json:"maxRounds"`
	MessagesPerPlayer int           `json:"messagesPerPlayer"`
	Settings          Settings      `json:"settings"`
	CreatedAt         time.Time     `json:"createdAt"`
	RoundStartedAt    time.Time     `json:"roundStartedAt"`
	FinalResults      *FinalResults `json:"finalResults,omitempty"`
}

type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsAI      bool      `json:"isAI"`
	AgentKind AgentKind `json:"agentKind,omitempty"`
	// MessagesSent counts this round only and resets on round advance.
	MessagesSent int `json:"messagesSent"`
	// Votes maps voted player id -> "I think this player is AI".
	Votes    map[string]bool `json:"votes"`
	Score    int             `json:"score"`
	Revealed bool            `json:"revealed"`
	JoinedAt time.Time       `json:"joinedAt"`
}

type Message struct {
	ID         string `json:"id"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Content    string `json:"content"`
	Round      int    `json:"round"`
	// Seq is assigned by the store on append and is strictly increasing per
	// session. Display order and reply-after-trigger ordering both hang off it.
	Seq          int64     `json:"seq"`
	SentAt       time.Time `json:"sentAt"`
	IsAgentReply bool      `json:"isAgentReply"`
	// InResponseTo names the human player whose message triggered this reply.
	InResponseTo string `json:"inResponseTo,omitempty"`
}

type VoteTally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
	// Rate is Correct/Total as a percentage, filled in when the round is
	// scored so results carry it without clients recomputing.
	Rate float64 `json:"detectionRate"`
}

type RoundResult struct {
	Round int `json:"round"`
	// AICorrect counts votes that correctly flagged an agent as AI,
	// HumanCorrect votes that correctly cleared a human.
	AICorrect    int                  `json:"aiCorrect"`
	HumanCorrect int                  `json:"humanCorrect"`
	PerPlayer    map[string]VoteTally `json:"perPlayer"`
}

type FinalResults struct {
	Winner       string         `json:"winner"` // "AI" | "Humans" | "Tie"
	AICorrect    int            `json:"aiCorrect"`
	HumanCorrect int            `json:"humanCorrect"`
	Scores       map[string]int `json:"scores"` // human player id -> score
	TopHuman     string         `json:"topHuman,omitempty"`
}

// DetectionRate is how often votes on this player matched reality.
func (t VoteTally) DetectionRate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total) * 100
}
