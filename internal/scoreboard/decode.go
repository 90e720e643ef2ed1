package scoreboard

import (
	"fmt"
	"strings"

	"github.com/toppings/giveandtake/internal/fuzzy"
	"github.com/toppings/giveandtake/internal/types"
)

// Decoded is a message resolved against the roster.
type Decoded struct {
	State   *types.RoundState
	Entries []types.LineEntry // every matched line, in message order
}

// Decoder resolves parsed lines to canonical items.
type Decoder struct {
	resolver fuzzy.NameResolver
}

// NewDecoder returns a Decoder using resolver for name matching.
func NewDecoder(resolver fuzzy.NameResolver) *Decoder {
	return &Decoder{resolver: resolver}
}

// Decode parses text and resolves each line against items. When two lines
// resolve to the same item the later one wins. The first unresolvable line
// aborts decoding with an error wrapping *fuzzy.NoMatchError.
func (d *Decoder) Decode(text string, items []types.Item) (Decoded, error) {
	out := Decoded{State: types.NewRoundState()}
	for i, line := range strings.Split(text, "\n") {
		entry, ok := ParseLine(line)
		if !ok {
			continue
		}
		m, err := d.resolver.Resolve(entry.Fragment, items)
		if err != nil {
			return Decoded{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		out.Entries = append(out.Entries, entry)
		out.State.Set(m.Item, types.Score{Count: entry.Count, Sign: entry.Sign})
	}
	return out, nil
}
