// Package scoreboard turns scoreboard message text into typed rounds.
//
// A scoreboard line looks like "Mushrooms - 4 +": a name, a dash separator,
// up to three count digits and an optional trailing + or - marker. Anything
// that does not look like that is ignored.
package scoreboard

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/toppings/giveandtake/internal/types"
)

// The name starts with a letter or underscore and may not contain digits,
// newlines, the skull emoji, colons (":skull:") or angle brackets (mentions).
// Between the count and the sign anything except +, -, digits and newline is
// skipped.
const (
	namePattern = `([\p{L}_][^\d\n💀:<>]*?)`
	tailPattern = `[^+\-\d\n]*([+-])?`
)

var (
	// withCount requires at least one digit, so hyphenated names such as
	// "Cheese - Paneer - 5" bind the count to the last separator.
	withCount = regexp.MustCompile(namePattern + `\s*-\s*(\d{1,3})` + tailPattern)
	// lastEmpty handles a missing count the same way: the empty count must sit
	// at the last separator, so "Cheese - Paneer - -" keeps the whole name.
	lastEmpty = regexp.MustCompile(namePattern + `\s*-\s*()` + tailPattern + `\s*$`)
	// anyCount accepts an empty count anywhere, which reads as zero.
	anyCount = regexp.MustCompile(namePattern + `\s*-\s*(\d{0,3})` + tailPattern)
)

// ParseLine extracts a LineEntry from one line of text. The second result is
// false when the line has no scoreboard shape.
func ParseLine(line string) (types.LineEntry, bool) {
	line = strings.TrimRight(line, "\r")

	var m []string
	for _, re := range []*regexp.Regexp{withCount, lastEmpty, anyCount} {
		if m = re.FindStringSubmatch(line); m != nil {
			break
		}
	}
	if m == nil {
		return types.LineEntry{}, false
	}

	entry := types.LineEntry{
		Fragment: strings.TrimSpace(m[1]),
		Sign:     types.ParseSign(m[3]),
	}
	if m[2] != "" {
		entry.HasCount = true
		// A malformed count degrades to zero.
		if n, err := strconv.Atoi(m[2]); err == nil {
			entry.Count = n
		}
	}
	return entry, true
}

// ParseLines parses every line of text, dropping lines without a match.
func ParseLines(text string) []types.LineEntry {
	var entries []types.LineEntry
	for _, line := range strings.Split(text, "\n") {
		if e, ok := ParseLine(line); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// Matches reports whether text holds at least one scoreboard line.
func Matches(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if _, ok := ParseLine(line); ok {
			return true
		}
	}
	return false
}
