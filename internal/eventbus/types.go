// Package eventbus publishes referee verdicts to NATS JetStream so other
// services (leaderboards, archives) can follow the game without polling chat.
package eventbus

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/toppings/giveandtake/internal/types"
)

// EventType identifies a round event.
type EventType string

const (
	EventRoundAccepted EventType = "RoundAccepted"
	EventRoundRejected EventType = "RoundRejected"
	EventItemKilled    EventType = "ItemKilled"
)

// RoundEvent is the JSON payload published for each event.
type RoundEvent struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	MessageID string        `json:"message_id"`
	ChannelID string        `json:"channel_id"`
	AuthorID  string        `json:"author_id"`
	Outcome   types.Outcome `json:"outcome"`

	// Placement is set on ItemKilled only.
	Placement int        `json:"placement,omitempty"`
	Item      types.Item `json:"item,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}

// eventNamespace scopes the name-based event IDs.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/toppings/giveandtake/events"))

// eventID is stable for the same message, event type and verdict, so
// re-checking an unchanged round yields the same ID and JetStream drops the
// repeat. A changed verdict after an edit gets a new ID.
func eventID(msg types.Message, t EventType, key string) string {
	name := fmt.Sprintf("%s/%s/%s/%s", msg.ChannelID, msg.ID, t, key)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

func verdictKey(out types.Outcome) string {
	if !out.Valid {
		return "invalid:" + out.Reason
	}
	death := ""
	if out.Death != nil {
		death = string(*out.Death)
	}
	return fmt.Sprintf("valid:%d:%s", out.ItemCount, death)
}

// EventsFor returns the events describing one verdict: accepted or rejected,
// followed by ItemKilled when the round killed an item.
func EventsFor(msg types.Message, out types.Outcome, now time.Time) []RoundEvent {
	base := RoundEvent{
		MessageID:   msg.ID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.AuthorID,
		Outcome:     out,
		PublishedAt: now.UTC(),
	}

	verdict := base
	verdict.Type = EventRoundRejected
	if out.Valid {
		verdict.Type = EventRoundAccepted
	}
	verdict.ID = eventID(msg, verdict.Type, verdictKey(out))
	events := []RoundEvent{verdict}

	if out.Valid && out.Death != nil {
		killed := base
		killed.Type = EventItemKilled
		killed.Placement = out.ItemCount
		killed.Item = *out.Death
		killed.ID = eventID(msg, EventItemKilled, fmt.Sprintf("%d:%s", killed.Placement, killed.Item))
		events = append(events, killed)
	}
	return events
}
