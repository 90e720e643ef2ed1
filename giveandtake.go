// Package giveandtake provides a minimal public API for embedding the
// scoreboard validator in other programs.
//
// Most callers only need Check, which judges one scoreboard against the
// previous one using the reference topping roster.
package giveandtake

import (
	"github.com/toppings/giveandtake/internal/fuzzy"
	"github.com/toppings/giveandtake/internal/killlist"
	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/roster"
	"github.com/toppings/giveandtake/internal/scoreboard"
	"github.com/toppings/giveandtake/internal/types"
)

// Core types
type (
	Item        = types.Item
	Outcome     = types.Outcome
	KilledEntry = types.KilledEntry
	Roster      = roster.Snapshot
)

// DefaultItems is the reference topping list.
var DefaultItems = roster.DefaultItems

// DefaultRoster returns the reference roster with the default allocation.
func DefaultRoster() Roster {
	return roster.Default().Current()
}

// Validator judges scoreboards against a fixed roster.
type Validator struct {
	roster  Roster
	decoder *scoreboard.Decoder
}

// NewValidator returns a validator for r using the default name matcher.
func NewValidator(r Roster) *Validator {
	return &Validator{roster: r, decoder: scoreboard.NewDecoder(fuzzy.NewLevenshtein(0))}
}

// Check judges current against previous. An error means previous could not
// be read as a scoreboard; every rule violation in current is reported in the
// Outcome instead.
func (v *Validator) Check(previous, current string) (Outcome, error) {
	return referee.Check(v.decoder, v.roster, previous, current)
}

// Check is NewValidator(DefaultRoster()).Check.
func Check(previous, current string) (Outcome, error) {
	return NewValidator(DefaultRoster()).Check(previous, current)
}

// ParseKillList reads kill list text, most recent death first.
func ParseKillList(text string) ([]KilledEntry, error) {
	return killlist.Parse(text)
}

// RenderKillList formats entries as kill list text.
func RenderKillList(entries []KilledEntry) string {
	return killlist.Render(entries)
}
