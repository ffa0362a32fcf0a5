package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/Seednode/mash/elimination"
)

const (
	minPoolSize = 3
	maxPoolSize = 5
)

var (
	errUnknownCategory = errors.New("unknown category")
	errUnknownMood     = errors.New("unknown mood")
	errNoMoods         = errors.New("pick at least one mood")
	errPoolSize        = fmt.Errorf("each category needs between %d and %d items", minPoolSize, maxPoolSize)
	errMagicNumber     = fmt.Errorf("magic number must be at least %d", elimination.MinStepSize)
	errNotReady        = errors.New("quiz is not ready for elimination")
	errNoWinners       = errors.New("run the elimination before asking for a plan")
)

// State is everything a player has entered so far. It is a plain value with
// explicit load and save boundaries; sessions own one each.
type State struct {
	Moods         []string            `json:"moods"`
	Categories    map[string][]string `json:"categories"`
	MagicNumber   int                 `json:"magicNumber"`
	SelectedWords map[string]string   `json:"selectedWords"`
	Plan          string              `json:"plan"`
}

func newState(c *Catalog) State {
	s := State{
		Moods:         []string{},
		Categories:    make(map[string][]string, len(c.Categories)),
		SelectedWords: map[string]string{},
	}

	for _, cat := range c.Categories {
		s.Categories[cat.Slug] = []string{}
	}

	return s
}

func loadState(c *Catalog, data []byte) (State, error) {
	s := newState(c)

	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, err
	}

	if s.Categories == nil {
		s.Categories = make(map[string][]string, len(c.Categories))
	}
	if s.Moods == nil {
		s.Moods = []string{}
	}

	for slug := range s.Categories {
		if _, ok := c.Category(slug); !ok {
			return State{}, fmt.Errorf("%w: %q", errUnknownCategory, slug)
		}
	}

	for _, cat := range c.Categories {
		if s.Categories[cat.Slug] == nil {
			s.Categories[cat.Slug] = []string{}
		}
	}

	if s.SelectedWords == nil {
		s.SelectedWords = map[string]string{}
	}

	return s, nil
}

func (s State) save() ([]byte, error) {
	return json.Marshal(s)
}

func (s *State) clearResults() {
	s.SelectedWords = map[string]string{}
	s.Plan = ""
}

func (s *State) setMoods(c *Catalog, moods []string) error {
	if len(moods) == 0 {
		return errNoMoods
	}

	seen := make(map[string]bool, len(moods))
	out := make([]string, 0, len(moods))

	for _, m := range moods {
		if !c.ValidMood(m) {
			return fmt.Errorf("%w: %q", errUnknownMood, m)
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}

	s.Moods = out

	return nil
}

func (s *State) setCategoryItems(c *Catalog, slug string, items []string) error {
	if _, ok := c.Category(slug); !ok {
		return fmt.Errorf("%w: %q", errUnknownCategory, slug)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	if len(out) < minPoolSize || len(out) > maxPoolSize {
		return errPoolSize
	}

	s.Categories[slug] = out
	s.clearResults()

	return nil
}

func (s *State) setMagicNumber(n int) error {
	if n < elimination.MinStepSize {
		return errMagicNumber
	}

	s.MagicNumber = n
	s.clearResults()

	return nil
}

// ready reports whether every category is filled and a magic number chosen.
func (s State) ready(c *Catalog) error {
	if s.MagicNumber < elimination.MinStepSize {
		return fmt.Errorf("%w: %w", errNotReady, errMagicNumber)
	}

	for _, cat := range c.Categories {
		n := len(s.Categories[cat.Slug])
		if n < minPoolSize || n > maxPoolSize {
			return fmt.Errorf("%w: %s: %w", errNotReady, cat.Slug, errPoolSize)
		}
	}

	return nil
}

// pools returns the player's entries in catalog order.
func (s State) pools(c *Catalog) []elimination.Pool {
	pools := make([]elimination.Pool, 0, len(c.Categories))

	for _, cat := range c.Categories {
		pools = append(pools, elimination.Pool{
			Category: elimination.Category(cat.Slug),
			Items:    s.Categories[cat.Slug],
		})
	}

	return pools
}

// applyResult records the winners of r. A plan written for the same winners
// is kept.
func (s *State) applyResult(r elimination.Result) {
	winners := make(map[string]string, len(r.Winners))
	for slug, item := range r.Winners {
		winners[string(slug)] = item
	}

	if !maps.Equal(s.SelectedWords, winners) {
		s.Plan = ""
	}
	s.SelectedWords = winners
}

func magicFromLoops(loops int) int {
	return max(elimination.MinStepSize, loops)
}
