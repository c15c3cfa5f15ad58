package backend

import (
	"fmt"
	"time"

	"github.com/hpungsan/dtbar/internal/record"
)

// wireRecord is the JSON shape emitted by the JXA scripts.
type wireRecord struct {
	UUID             string  `json:"uuid"`
	Score            float64 `json:"score"`
	ModificationDate string  `json:"modificationDate"`
	Name             string  `json:"name"`
	Kind             string  `json:"kind"`
	Location         string  `json:"location"`
	Type             string  `json:"type"`
	Filename         string  `json:"filename"`
	Path             string  `json:"path"`
}

// toRecord converts a wire hit. With dated set a missing modification date
// is malformed; search hits and fetched records drive cache refreshes and
// must carry one.
func (w wireRecord) toRecord(dated bool) (record.Record, error) {
	if w.UUID == "" {
		return record.Record{}, fmt.Errorf("malformed response: record without uuid")
	}
	if dated && w.ModificationDate == "" {
		return record.Record{}, fmt.Errorf("malformed response: record %s without modification date", w.UUID)
	}

	var modified time.Time
	if w.ModificationDate != "" {
		t, err := record.ParseTimestamp(w.ModificationDate)
		if err != nil {
			return record.Record{}, fmt.Errorf("malformed response: record %s: %w", w.UUID, err)
		}
		modified = t
	}

	return record.Record{
		UUID:       w.UUID,
		ModifiedAt: modified,
		Score:      w.Score,
		Payload: record.Payload{
			Name:     w.Name,
			Kind:     w.Kind,
			Location: w.Location,
			Type:     w.Type,
			Filename: w.Filename,
			Path:     w.Path,
		},
	}, nil
}

func toRecords(hits []wireRecord, dated bool) ([]record.Record, error) {
	records := make([]record.Record, len(hits))
	for i, h := range hits {
		r, err := h.toRecord(dated)
		if err != nil {
			return nil, err
		}
		records[i] = r
	}
	return records, nil
}
