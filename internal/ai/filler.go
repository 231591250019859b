package ai

import (
	"context"
	"hash/fnv"
)

// fillerPool holds generic human-sounding lines used when every real backend
// has failed. The pick is a stable hash of the prompt, so the same prompt
// always lands on the same line.
var fillerPool = []string{
	"haha yeah, fair point",
	"hmm not sure what to say to that tbh",
	"lol okay, I kind of see it",
	"wait, say more? I'm curious",
	"honestly same",
	"ha, that's one way to put it",
	"yeah I was just thinking that",
	"idk, could go either way",
	"ok that actually made me laugh",
	"hm, I'd have to think about that one",
}

// Filler is the terminal provider in every chain. It never fails.
type Filler struct{}

func (Filler) Name() string { return "filler" }

func (Filler) Generate(_ context.Context, _ string, _ []Turn, prompt string) (string, error) {
	return FillerLine(prompt), nil
}

func FillerLine(prompt string) string {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return fillerPool[int(h.Sum32())%len(fillerPool)]
}
