// Package validation checks a scoreboard round against the previous one.
package validation

import (
	"fmt"

	"github.com/toppings/giveandtake/internal/scoreboard"
	"github.com/toppings/giveandtake/internal/types"
)

// ValidationError is a rule violation. Reason is shown to players verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func fail(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validator enforces the round invariants for a roster of Items entries
// starting at Allocation each.
type Validator struct {
	Items      int
	Allocation int
}

// ExpectedSum is the total every valid round must add up to.
func (v Validator) ExpectedSum() int {
	return v.Items * v.Allocation
}

// Validate runs the sign, choice and sum checks in order and stops at the
// first failure. It has no side effects, so repeated calls with the same
// rounds return the same outcome.
func (v Validator) Validate(prev, cur scoreboard.Decoded) types.Outcome {
	if err := CheckSigns(cur.Entries); err != nil {
		return types.InvalidOutcome(err.Error())
	}
	death, err := CheckChoices(prev.State, cur.State)
	if err != nil {
		return types.InvalidOutcome(err.Error())
	}
	count, err := v.CheckSum(cur)
	if err != nil {
		return types.InvalidOutcome(err.Error())
	}
	return types.ValidOutcome(count, death)
}

// CheckSigns requires exactly one + and one - across the matched lines.
func CheckSigns(entries []types.LineEntry) error {
	plus, minus := 0, 0
	for _, e := range entries {
		switch e.Sign {
		case types.SignPlus:
			plus++
		case types.SignMinus:
			minus++
		}
	}

	switch {
	case plus > 1:
		return fail("Two plus signs found.")
	case minus > 1:
		return fail("Two minus signs found.")
	case plus == 0 && minus == 0:
		return fail("Plus and minus signs are missing.")
	case plus == 0:
		return fail("Plus sign is missing.")
	case minus == 0:
		return fail("Minus sign is missing.")
	}
	return nil
}

// CheckChoices compares every item of the previous round with the current
// one. It returns the first item, in previous-round order, that dropped from
// a positive count to zero. Items already at zero may be omitted.
func CheckChoices(prev, cur *types.RoundState) (*types.Item, error) {
	var death *types.Item
	for _, item := range prev.Items() {
		before, _ := prev.Get(item)
		now, ok := cur.Get(item)
		if !ok {
			if before.Count > 0 {
				return nil, fail("Expected '%s' but it is missing.", item)
			}
			continue
		}

		switch now.Sign {
		case types.SignPlus:
			if now.Count != before.Count+1 {
				return nil, fail("%s should be incremented to %d.", item, before.Count+1)
			}
		case types.SignMinus:
			if now.Count != before.Count-1 && before.Count > 0 {
				return nil, fail("%s should be decremented to %d.", item, before.Count-1)
			}
		default:
			if now.Count != before.Count {
				return nil, fail("%s should still have the value %d.", item, before.Count)
			}
		}

		if death == nil && now.Count == 0 && before.Count > 0 {
			dead := item
			death = &dead
		}
	}
	return death, nil
}

// CheckSum requires the counts to add up to ExpectedSum. On success it
// returns the number of matched lines, which is the placement of any item
// that died this round.
func (v Validator) CheckSum(cur scoreboard.Decoded) (int, error) {
	total := cur.State.Sum()
	if expected := v.ExpectedSum(); total != expected {
		return 0, fail("Expected sum of all rankings to be %d, but got %d instead.", expected, total)
	}
	return len(cur.Entries), nil
}
