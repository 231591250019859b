package ai

import "context"

// Turn is one prior line of the conversation as the backends see it.
type Turn struct {
	Author    string
	Content   string
	FromAgent bool
}

// Provider is the generation capability: produce a line of dialogue given a
// system instruction, prior conversation, and the current prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system string, history []Turn, prompt string) (string, error)
}
