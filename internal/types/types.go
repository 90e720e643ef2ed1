// Package types defines core data structures for the give-and-take referee.
package types

import (
	"fmt"
	"strings"
)

// Item is a canonical item name from the roster (e.g. "Mushrooms").
type Item string

// Sign is the optional trailing marker on a scoreboard line.
type Sign int

const (
	SignNone Sign = iota
	SignPlus
	SignMinus
)

// String returns the marker as written in a message ("+", "-" or "").
func (s Sign) String() string {
	switch s {
	case SignPlus:
		return "+"
	case SignMinus:
		return "-"
	default:
		return ""
	}
}

// ParseSign converts a marker character into a Sign.
func ParseSign(s string) Sign {
	switch s {
	case "+":
		return SignPlus
	case "-":
		return SignMinus
	default:
		return SignNone
	}
}

// LineEntry is one parsed scoreboard line before name resolution.
type LineEntry struct {
	Fragment string `json:"fragment"`
	Count    int    `json:"count"`
	HasCount bool   `json:"has_count"` // false when the line carried no digits
	Sign     Sign   `json:"sign"`
}

// Score is the value held for an item in one round.
type Score struct {
	Count int  `json:"count"`
	Sign  Sign `json:"sign"`
}

// RoundState is one message's full scoreboard, keyed by canonical item.
// Iteration follows first-insertion order; overwriting an item keeps its position.
type RoundState struct {
	order  []Item
	scores map[Item]Score
}

// NewRoundState returns an empty round.
func NewRoundState() *RoundState {
	return &RoundState{scores: make(map[Item]Score)}
}

// Set stores the score for item (last write wins).
func (r *RoundState) Set(item Item, s Score) {
	if _, ok := r.scores[item]; !ok {
		r.order = append(r.order, item)
	}
	r.scores[item] = s
}

// Get returns the score for item and whether it is present.
func (r *RoundState) Get(item Item) (Score, bool) {
	if r == nil {
		return Score{}, false
	}
	s, ok := r.scores[item]
	return s, ok
}

// Items returns the items in insertion order.
func (r *RoundState) Items() []Item {
	if r == nil {
		return nil
	}
	out := make([]Item, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of distinct items.
func (r *RoundState) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Sum returns the total of all counts.
func (r *RoundState) Sum() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, s := range r.scores {
		total += s.Count
	}
	return total
}

// String renders the round as scoreboard lines, mostly for logs and the CLI.
func (r *RoundState) String() string {
	var sb strings.Builder
	for _, item := range r.Items() {
		s := r.scores[item]
		fmt.Fprintf(&sb, "%s - %d", item, s.Count)
		if s.Sign != SignNone {
			sb.WriteString(" " + s.Sign.String())
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Outcome is the verdict for one scoreboard message.
type Outcome struct {
	Valid     bool   `json:"valid"`
	ItemCount int    `json:"item_count,omitempty"`
	Death     *Item  `json:"death,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ValidOutcome builds a successful verdict.
func ValidOutcome(itemCount int, death *Item) Outcome {
	return Outcome{Valid: true, ItemCount: itemCount, Death: death}
}

// InvalidOutcome builds a failed verdict carrying the user-facing reason.
func InvalidOutcome(reason string) Outcome {
	return Outcome{Reason: reason}
}

// KilledEntry is one line of the kill list.
type KilledEntry struct {
	Placement int  `json:"placement"`
	Item      Item `json:"item"`
}
