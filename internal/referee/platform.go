package referee

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/toppings/giveandtake/internal/types"
)

var (
	// ErrNotScoreboard means the message carries no scoreboard lines or was
	// posted by the bot itself. Nothing is emitted for it.
	ErrNotScoreboard = errors.New("message is not a scoreboard")

	// ErrNoPreviousRound means no earlier scoreboard was found within the
	// scan depth, so there is nothing to compare against.
	ErrNoPreviousRound = errors.New("no previous round within scan depth")
)

// PlatformError wraps a failed chat platform call. Calls are never retried.
type PlatformError struct {
	Op  string
	Err error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform %s: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

func platformErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PlatformError{Op: op, Err: err}
}

// HistoryReader yields the messages of a channel posted before msg, newest
// first. The sequence is lazy; callers stop pulling once they have enough.
type HistoryReader interface {
	MessagesBefore(ctx context.Context, msg types.Message) iter.Seq2[types.Message, error]
}

// Platform is everything the referee needs from the chat service.
type Platform interface {
	HistoryReader

	PinnedMessages(ctx context.Context, channelID string) ([]types.Message, error)
	Send(ctx context.Context, channelID, text string) (types.Message, error)
	Edit(ctx context.Context, msg types.Message, text string) error
	Pin(ctx context.Context, msg types.Message) error

	AddReaction(ctx context.Context, msg types.Message, emoji types.Emoji) error
	// RemoveReaction removes the bot's own reaction only.
	RemoveReaction(ctx context.Context, msg types.Message, emoji types.Emoji) error

	IsAdmin(ctx context.Context, userID string) (bool, error)
	SelfID() string
}

// OutcomeSink receives every verdict the referee reaches.
type OutcomeSink interface {
	Publish(ctx context.Context, msg types.Message, out types.Outcome) error
}

// OutcomeSinkFunc adapts a function to OutcomeSink.
type OutcomeSinkFunc func(ctx context.Context, msg types.Message, out types.Outcome) error

func (f OutcomeSinkFunc) Publish(ctx context.Context, msg types.Message, out types.Outcome) error {
	return f(ctx, msg, out)
}
