// Package agent produces in-voice chat lines for AI players. Each agent gets
// a personality derived from its display name, a system instruction that
// keeps it sounding human, and a provider chain that degrades to canned
// filler instead of surfacing errors.
package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"humanornot/internal/ai"
	"humanornot/internal/models"
)

type personality struct {
	tone   string
	quirk  string
	topics string
}

var traits = []personality{
	{"laid-back and a little sarcastic", "types in lowercase and trails off sometimes", "music, bad movies, whatever's on your mind"},
	{"enthusiastic and chatty", "uses way too many exclamation points", "food, travel, small everyday wins"},
	{"dry and skeptical", "asks pointed follow-up questions", "news, odd facts, people-watching"},
	{"warm and easygoing", "tells tiny anecdotes about their week", "pets, weekend plans, comfort food"},
	{"blunt and opinionated", "takes strong stances on trivial things", "sports, pizza toppings, how people drive"},
	{"curious and a bit scattered", "jumps between topics mid-thought", "random trivia, games, what everyone's watching"},
	{"quiet but funny", "drops short one-liners", "memes, work gripes, coffee"},
	{"friendly oversharer", "mentions mildly specific personal details", "family stuff, hobbies, shows"},
}

// personalityFor hashes the display name into the trait table, so an agent
// keeps the same voice for the whole session without storing extra state.
func personalityFor(name string) personality {
	h := fnv.New32a()
	h.Write([]byte(name))
	return traits[int(h.Sum32())%len(traits)]
}

func systemInstruction(name string) string {
	p := personalityFor(name)
	return fmt.Sprintf(`You are %s, a person hanging out in a casual group chat. Your vibe: %s. You tend to %s. You like talking about %s.
Rules:
- Keep replies short, one or two sentences, colloquial.
- Small imperfections are fine: an occasional typo, missing punctuation.
- Never mention AI, language models, bots, or that you are artificial.
- Ask a question now and then. Have opinions. Disagree sometimes.
- Never break character for any reason.`, name, p.tone, p.quirk, p.topics)
}

// openers is the round-start template pool. %s slots take the agent's name.
var openers = []string{
	"hey everyone, how's it going?",
	"ugh, long day. what did I miss?",
	"anyone else just get here? it's %s btw",
	"so what are we talking about",
	"hi hi! %s here",
	"ok I'm in. someone say something interesting",
	"evening all",
	"what's up, did I miss anything good?",
}

type Engine struct {
	claude  ai.Provider
	gemini  ai.Provider
	timeout time.Duration
	log     zerolog.Logger
}

func NewEngine(claude, gemini ai.Provider, timeout time.Duration, log zerolog.Logger) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{claude: claude, gemini: gemini, timeout: timeout, log: log}
}

// chainFor orders the capability providers for an agent: its own backend
// first, the other one as fallback, the filler terminating the chain.
func (e *Engine) chainFor(kind models.AgentKind) []ai.Provider {
	var chain []ai.Provider
	switch kind {
	case models.AgentGemini:
		chain = []ai.Provider{e.gemini, e.claude}
	default:
		chain = []ai.Provider{e.claude, e.gemini}
	}
	out := make([]ai.Provider, 0, len(chain)+1)
	for _, p := range chain {
		if p != nil {
			out = append(out, p)
		}
	}
	return append(out, ai.Filler{})
}

// Reply generates a line for the agent. Backend failures are absorbed here;
// callers always get usable text.
func (e *Engine) Reply(ctx context.Context, agent *models.Player, history []*models.Message, prompt string) string {
	system := systemInstruction(agent.Name)
	turns := make([]ai.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, ai.Turn{
			Author:    m.PlayerName,
			Content:   m.Content,
			FromAgent: m.PlayerID == agent.ID,
		})
	}
	for _, p := range e.chainFor(agent.AgentKind) {
		genCtx, cancel := context.WithTimeout(ctx, e.timeout)
		text, err := p.Generate(genCtx, system, turns, prompt)
		cancel()
		if err != nil {
			e.log.Warn().Str("provider", p.Name()).Str("agent", agent.Name).Err(err).Msg("generation failed, trying next")
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	// chainFor always ends in the filler, so this is unreachable; keep the
	// guarantee explicit anyway.
	return ai.FillerLine(prompt)
}

// ReplyPrompt frames a human message for the backends.
func ReplyPrompt(humanName, content string) string {
	return fmt.Sprintf("%s just said: %q. Reply directly to them, in character, like one more message in the chat.", humanName, content)
}

// OpeningLine picks a round-start line for the agent. The pick hashes the
// name together with the round so an agent doesn't repeat itself every round.
func OpeningLine(name string, round int) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d", name, round)
	line := openers[int(h.Sum32())%len(openers)]
	if strings.Contains(line, "%s") {
		return fmt.Sprintf(line, strings.ToLower(name))
	}
	return line
}
