/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package elimination implements the counting-out round that reduces each
// category's pool of candidates to a single winner.
//
// All pools are flattened into one ring. A cursor counts stepSize slots
// around the ring and removes whatever it lands on, unless that candidate is
// the last one left in its category; protected candidates are skipped by
// nudging the cursor a single slot. Every removal is recorded, in order, so
// the round can be replayed.
package elimination

// MaxSteps bounds the number of recorded eliminations per run.
const MaxSteps = 1000

// MinStepSize is the smallest step size that performs any counting.
const MinStepSize = 2

type Category string

// Pool is one category's candidates, in the order they were entered.
type Pool struct {
	Category Category `json:"category"`
	Items    []string `json:"items"`
}

// Step records a single elimination. Index is the candidate's position in
// the ring as it was before the first removal.
type Step struct {
	Category Category `json:"categorySlug"`
	Item     string   `json:"item"`
	Index    int      `json:"index"`
}

type Result struct {
	Steps   []Step              `json:"steps"`
	Winners map[Category]string `json:"selectedWords"`

	// Truncated is set when the run stopped at MaxSteps with categories
	// still holding more than one candidate.
	Truncated bool `json:"truncated,omitempty"`

	// Stalls counts how often every slot reachable by counting was
	// protected and the cursor had to walk to the next removable candidate.
	Stalls int `json:"stalls,omitempty"`
}

type entry struct {
	category Category
	item     string
	index    int
}

func flatten(pools []Pool) []entry {
	var ring []entry

	for _, p := range pools {
		for _, item := range p.Items {
			ring = append(ring, entry{
				category: p.Category,
				item:     item,
				index:    len(ring),
			})
		}
	}

	return ring
}

func winners(ring []entry) map[Category]string {
	w := make(map[Category]string)
	for _, e := range ring {
		w[e.category] = e.item
	}

	return w
}

func settled(live map[Category]int) bool {
	for _, n := range live {
		if n > 1 {
			return false
		}
	}

	return true
}

// Run eliminates candidates until each non-empty pool has one left.
// It is deterministic and keeps no state between calls.
func Run(pools []Pool, stepSize int) Result {
	ring := flatten(pools)

	result := Result{Steps: []Step{}}

	if stepSize < MinStepSize {
		result.Winners = winners(ring)

		return result
	}

	live := make(map[Category]int)
	for _, e := range ring {
		live[e.category]++
	}

	cursor, skipped := 0, 0

	for !settled(live) {
		if len(result.Steps) >= MaxSteps {
			result.Truncated = true

			break
		}

		if skipped >= len(ring) {
			// The counting orbit only visits protected slots.
			for live[ring[cursor].category] == 1 {
				cursor = (cursor + 1) % len(ring)
			}
			result.Stalls++
		} else {
			// Reduced first so huge step sizes cannot overflow.
			cursor = (cursor + (stepSize-1)%len(ring)) % len(ring)
		}

		e := ring[cursor]

		if live[e.category] == 1 {
			cursor = (cursor + 1) % len(ring)
			skipped++

			continue
		}

		result.Steps = append(result.Steps, Step{
			Category: e.category,
			Item:     e.item,
			Index:    e.index,
		})

		ring = append(ring[:cursor], ring[cursor+1:]...)
		live[e.category]--
		skipped = 0

		if cursor >= len(ring) {
			cursor = 0
		}
	}

	result.Winners = winners(ring)

	return result
}
