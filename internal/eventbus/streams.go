package eventbus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// StreamRoundEvents is the JetStream stream for round events.
	StreamRoundEvents = "GIVEANDTAKE_ROUNDS"

	// DefaultSubjectPrefix is the subject prefix for all round events.
	DefaultSubjectPrefix = "giveandtake.rounds."

	// DuplicateWindow is how long JetStream remembers event IDs. Players edit
	// old scoreboards long after posting, so the server default of two
	// minutes is too short.
	DuplicateWindow = 24 * time.Hour
)

// SubjectForEvent returns the NATS subject for a given event type.
// Format: <prefix><event_type> (e.g., giveandtake.rounds.ItemKilled).
func SubjectForEvent(prefix string, eventType EventType) string {
	return normalizePrefix(prefix) + string(eventType)
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	if !strings.HasSuffix(prefix, ".") {
		return prefix + "."
	}
	return prefix
}

// EnsureStreams creates the round event stream if it doesn't already exist.
func EnsureStreams(js nats.JetStreamContext, prefix string) error {
	_, err := js.StreamInfo(StreamRoundEvents)
	if err == nil {
		return nil // Stream already exists.
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("look up %s stream: %w", StreamRoundEvents, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamRoundEvents,
		Subjects: []string{normalizePrefix(prefix) + ">"},
		Storage:  nats.FileStorage,
		// Retain last 10000 messages or 100MB, whichever comes first.
		MaxMsgs:    10000,
		MaxBytes:   100 << 20,
		Duplicates: DuplicateWindow,
	})
	if err != nil {
		return fmt.Errorf("create %s stream: %w", StreamRoundEvents, err)
	}

	return nil
}
