package ops

import (
	"context"

	"github.com/hpungsan/dtbar/internal/cache"
	"github.com/hpungsan/dtbar/internal/launchbar"
)

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Query     string // required; matched literally and case-sensitively
	LaunchBar bool   // render Items instead of Results
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Query      string           `json:"query"`
	Mode       cache.Mode       `json:"mode"`
	Stale      bool             `json:"stale"`
	SnapshotID string           `json:"snapshot_id"`
	Count      int              `json:"count"`
	Results    []ResultItem     `json:"results,omitempty"`
	Items      []launchbar.Item `json:"items,omitempty"`
}

// Search synchronizes the result set of a query and ranks it by relevance
// boosted by pick frequency.
func (s *Service) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	query, err := validateQuery(input.Query)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Synchronize(ctx, query)
	if err != nil {
		return nil, err
	}

	records, err := s.rescore(ctx, res.Records)
	if err != nil {
		return nil, err
	}

	output := &SearchOutput{
		Query:      query,
		Mode:       res.Mode,
		Stale:      res.Stale,
		SnapshotID: res.SnapshotID,
		Count:      len(records),
	}
	if input.LaunchBar {
		items, err := s.formatter.Items(records, false)
		if err != nil {
			return nil, err
		}
		output.Items = items
	} else {
		output.Results = toResultItems(records)
	}
	return output, nil
}
