// Package killlist reads and writes the pinned kill list message.
//
// The pinned message text is the only record of past deaths. Each line is
// "{placement}.) {item}" with the most recent death first; an empty list is
// shown as Placeholder.
package killlist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/toppings/giveandtake/internal/types"
)

// Placeholder is the body of a kill list with no deaths yet.
const Placeholder = "Killed list will appear here"

var entryRE = regexp.MustCompile(`^\s*(\d+)\.\)\s*(.+?)\s*$`)

// Format renders a single kill list line.
func Format(e types.KilledEntry) string {
	return fmt.Sprintf("%d.) %s", e.Placement, e.Item)
}

// Body strips the placeholder and surrounding whitespace from text.
func Body(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, Placeholder, ""))
}

// Parse reads the entries of a kill list. Blank lines are skipped; any other
// line that is not "{n}.) {item}" is an error.
func Parse(text string) ([]types.KilledEntry, error) {
	var out []types.KilledEntry
	for i, line := range strings.Split(Body(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := entryRE.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("kill list line %d: unrecognized entry %q", i+1, line)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("kill list line %d: %w", i+1, err)
		}
		out = append(out, types.KilledEntry{Placement: n, Item: types.Item(m[2])})
	}
	return out, nil
}

// IsKillList reports whether text is the placeholder or a parseable list.
func IsKillList(text string) bool {
	if strings.TrimSpace(text) == Placeholder {
		return true
	}
	if Body(text) == "" {
		return false
	}
	_, err := Parse(text)
	return err == nil
}

// Render joins entries in the given order, or returns Placeholder.
func Render(entries []types.KilledEntry) string {
	if len(entries) == 0 {
		return Placeholder
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = Format(e)
	}
	return strings.Join(lines, "\n")
}

// HasPlacement reports whether the newest entry of text already records
// placement. This is the only guard against recording a death twice when a
// message is re-validated after an edit.
func HasPlacement(text string, placement int) bool {
	return strings.HasPrefix(Body(text), strconv.Itoa(placement)+".)")
}

// Prepend adds e on top of the list. Existing lines are kept byte for byte.
func Prepend(text string, e types.KilledEntry) string {
	body := Body(text)
	if body == "" {
		return Format(e)
	}
	return Format(e) + "\n" + body
}
