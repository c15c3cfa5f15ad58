package ops

import (
	"context"

	"github.com/hpungsan/dtbar/internal/launchbar"
)

// GroupInput contains parameters for the Group operation.
type GroupInput struct {
	UUID      string // required
	LaunchBar bool
}

// GroupOutput contains the result of the Group operation.
type GroupOutput struct {
	UUID    string           `json:"uuid"`
	Count   int              `json:"count"`
	Results []ResultItem     `json:"results,omitempty"`
	Items   []launchbar.Item `json:"items,omitempty"`
}

// Group lists the children of a group, ranked by pick frequency. Children
// bypass the caches; listing is a single cheap backend call.
func (s *Service) Group(ctx context.Context, input GroupInput) (*GroupOutput, error) {
	uuid, err := validateUUID(input.UUID)
	if err != nil {
		return nil, err
	}

	children, err := s.client.GroupChildren(ctx, uuid)
	if err != nil {
		return nil, err
	}

	records, err := s.rescore(ctx, children)
	if err != nil {
		return nil, err
	}

	output := &GroupOutput{UUID: uuid, Count: len(records)}
	if input.LaunchBar {
		items, err := s.formatter.Items(records, true)
		if err != nil {
			return nil, err
		}
		output.Items = items
	} else {
		output.Results = toResultItems(records)
	}
	return output, nil
}
