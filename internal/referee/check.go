package referee

import (
	"errors"
	"fmt"

	"github.com/toppings/giveandtake/internal/fuzzy"
	"github.com/toppings/giveandtake/internal/roster"
	"github.com/toppings/giveandtake/internal/scoreboard"
	"github.com/toppings/giveandtake/internal/types"
	"github.com/toppings/giveandtake/internal/validation"
)

// Check judges curText against prevText without any chat I/O. A name in
// curText that resolves to nothing is a rule violation; the same in prevText
// is an error, since that round was already accepted.
func Check(d *scoreboard.Decoder, snap roster.Snapshot, prevText, curText string) (types.Outcome, error) {
	prev, err := d.Decode(prevText, snap.Items)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("decode: %w", err)
	}

	cur, err := d.Decode(curText, snap.Items)
	var nm *fuzzy.NoMatchError
	switch {
	case errors.As(err, &nm):
		return types.InvalidOutcome(fmt.Sprintf("Could not match \"%s\" to any item.", nm.Fragment)), nil
	case err != nil:
		return types.Outcome{}, fmt.Errorf("decode current round: %w", err)
	}

	v := validation.Validator{Items: len(snap.Items), Allocation: snap.Allocation}
	return v.Validate(prev, cur), nil
}
