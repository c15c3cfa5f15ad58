// Package rank orders synchronized records by backend relevance boosted by
// how often the user picked them.
package rank

import (
	"sort"

	"github.com/hpungsan/dtbar/internal/record"
)

// FrequencyCounter reports how many times a uuid was picked.
type FrequencyCounter interface {
	Count(uuid string) int
}

// Counts is an in-memory FrequencyCounter.
type Counts map[string]int

// Count returns the pick count for uuid, 0 if absent.
func (c Counts) Count(uuid string) int {
	return c[uuid]
}

// Rescore sets each score to score + weight*frequency and sorts records by the
// new score, highest first. Records with equal scores keep their relative
// order. The slice is sorted in place and returned.
func Rescore(records []record.Record, counter FrequencyCounter, weight float64) []record.Record {
	for i := range records {
		freq := 0
		if counter != nil {
			freq = counter.Count(records[i].UUID)
		}
		if freq < 0 {
			freq = 0
		}
		records[i].Score += weight * float64(freq)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	return records
}
