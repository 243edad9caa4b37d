package service

import (
	"context"
	"log/slog"
)

type Cue string

const (
	CueMove       Cue = "move"
	CueWin        Cue = "win"
	CueWarning    Cue = "warning"
	CueMatchFound Cue = "match_found"
)

// CueSink - plays a sound or vibration pattern on the client.
type CueSink interface {
	PlayCue(ctx context.Context, cue Cue) error
}

type Feedback struct {
	logger *slog.Logger
	sink   CueSink
}

func NewFeedback(logger *slog.Logger, sink CueSink) *Feedback {
	return &Feedback{
		logger: logger.With("component", "feedback"),
		sink:   sink,
	}
}

// Play - cues are cosmetic, a failing sink is logged and never reaches the caller.
func (that *Feedback) Play(ctx context.Context, cue Cue) {
	if that == nil || that.sink == nil {
		return
	}

	if err := that.sink.PlayCue(ctx, cue); err != nil {
		that.logger.Warn("failed to play cue", "cue", cue, "error", err)
	}
}
