// Package roster holds the canonical item list that scoreboard names resolve to.
package roster

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/toppings/giveandtake/internal/types"
)

// DefaultAllocation is the starting count of every item.
const DefaultAllocation = 5

// DefaultItems is the reference topping list the game started with.
var DefaultItems = []types.Item{
	"Anchovies",
	"Baby Corn",
	"Bacon",
	"Broccoli",
	"Cheese (plain)",
	"Cheese - Paneer",
	"Hard Cheese (Asiago/Parmesan/Romano)",
	"Chicken",
	"Egg",
	"Eggplant",
	"Ground Beef",
	"Ham",
	"Jalapeno",
	"Mushrooms",
	"Olives",
	"Onion",
	"Bell Pepper",
	"Pepperoncini",
	"Pepperoni",
	"Pineapple",
	"Potatoes",
	"Prosciutto",
	"Roasted Garlic",
	"Sausage",
	"Shrimp",
	"Spinach",
	"Tofu",
	"Tomatoes",
}

// File is the on-disk roster format.
//
//	allocation: 5
//	items:
//	  - Anchovies
//	  - Baby Corn
type File struct {
	Allocation int      `yaml:"allocation"`
	Items      []string `yaml:"items"`
}

// Snapshot is an immutable roster version.
type Snapshot struct {
	Items      []types.Item
	Allocation int
}

// ExpectedSum is the total every valid round must add up to.
func (s Snapshot) ExpectedSum() int {
	return len(s.Items) * s.Allocation
}

// Roster serves the current snapshot. Swaps happen atomically so a reload
// between rounds never affects a validation already in flight.
type Roster struct {
	cur atomic.Pointer[Snapshot]
}

// New returns a roster serving items with the given per-item allocation.
func New(items []types.Item, allocation int) *Roster {
	r := &Roster{}
	r.Store(Snapshot{Items: items, Allocation: allocation})
	return r
}

// Default returns the reference roster.
func Default() *Roster {
	return New(DefaultItems, DefaultAllocation)
}

// Current returns the active snapshot.
func (r *Roster) Current() Snapshot {
	return *r.cur.Load()
}

// Items returns the active item list.
func (r *Roster) Items() []types.Item {
	return r.Current().Items
}

// Store replaces the active snapshot.
func (r *Roster) Store(s Snapshot) {
	items := make([]types.Item, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	r.cur.Store(&s)
}

// LoadFile reads a YAML roster file. A missing allocation falls back to
// DefaultAllocation.
func LoadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return Snapshot{}, fmt.Errorf("read roster file: %w", err)
	}
	return Parse(data)
}

// Parse decodes roster YAML.
func Parse(data []byte) (Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Snapshot{}, fmt.Errorf("parse roster: %w", err)
	}
	if f.Allocation == 0 {
		f.Allocation = DefaultAllocation
	}
	if f.Allocation < 0 {
		return Snapshot{}, fmt.Errorf("roster allocation must be positive, got %d", f.Allocation)
	}

	seen := make(map[string]bool, len(f.Items))
	items := make([]types.Item, 0, len(f.Items))
	for _, name := range f.Items {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			return Snapshot{}, fmt.Errorf("duplicate roster item %q", name)
		}
		seen[key] = true
		items = append(items, types.Item(name))
	}
	if len(items) == 0 {
		return Snapshot{}, fmt.Errorf("roster has no items")
	}
	return Snapshot{Items: items, Allocation: f.Allocation}, nil
}
