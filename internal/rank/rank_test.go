package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hpungsan/dtbar/internal/record"
)

func recs(pairs ...any) []record.Record {
	var out []record.Record
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, record.Record{UUID: pairs[i].(string), Score: pairs[i+1].(float64)})
	}
	return out
}

func order(records []record.Record) []string {
	return record.UUIDs(records)
}

func TestRescore_FrequencyBoost(t *testing.T) {
	records := recs("A", 0.9, "B", 0.5, "C", 0.7)

	got := Rescore(records, Counts{"B": 1}, 2)

	assert.Equal(t, []string{"B", "A", "C"}, order(got))
	assert.InDelta(t, 2.5, got[0].Score, 1e-9)
	assert.InDelta(t, 0.9, got[1].Score, 1e-9)
}

func TestRescore_NoFrequencies(t *testing.T) {
	got := Rescore(recs("A", 0.9, "B", 0.5, "C", 0.7), Counts{}, 2)
	assert.Equal(t, []string{"A", "C", "B"}, order(got))
}

func TestRescore_StableTies(t *testing.T) {
	got := Rescore(recs("A", 0.5, "B", 0.5, "C", 0.5, "D", 0.1), nil, 2)
	assert.Equal(t, []string{"A", "B", "C", "D"}, order(got))

	// A tie produced by the boost keeps input order too
	got = Rescore(recs("Y", 3.0, "X", 1.0, "Z", 3.0), Counts{"X": 1}, 2)
	assert.Equal(t, []string{"Y", "X", "Z"}, order(got))
}

func TestRescore_ZeroWeight(t *testing.T) {
	got := Rescore(recs("A", 0.2, "B", 0.4), Counts{"A": 100}, 0)
	assert.Equal(t, []string{"B", "A"}, order(got))
}

func TestRescore_MutatesInPlace(t *testing.T) {
	records := recs("A", 0.1, "B", 0.2)
	got := Rescore(records, Counts{"A": 1}, 1)

	assert.Equal(t, "A", records[0].UUID)
	assert.InDelta(t, 1.1, records[0].Score, 1e-9)
	assert.Equal(t, &records[0], &got[0])
}

func TestRescore_Empty(t *testing.T) {
	assert.Empty(t, Rescore(nil, Counts{"A": 1}, 2))
}
