package ops

import (
	"context"

	"github.com/hpungsan/dtbar/internal/db"
	"github.com/hpungsan/dtbar/internal/record"
)

// PickInput contains parameters for the Pick operation.
type PickInput struct {
	UUID       string // required
	SmartGroup bool   // affects only the returned reference URL
}

// PickOutput contains the result of the Pick operation.
type PickOutput struct {
	UUID         string `json:"uuid"`
	Count        int    `json:"count"`
	ReferenceURL string `json:"reference_url"`
}

// Pick records that the user chose a record, raising its rank in later
// searches.
func (s *Service) Pick(ctx context.Context, input PickInput) (*PickOutput, error) {
	uuid, err := validateUUID(input.UUID)
	if err != nil {
		return nil, err
	}

	count, err := db.IncrementPick(ctx, s.db, uuid, s.now())
	if err != nil {
		return nil, err
	}

	s.log.Debug("pick", "uuid", uuid, "count", count)

	return &PickOutput{
		UUID:         uuid,
		Count:        count,
		ReferenceURL: record.ReferenceURL(uuid, input.SmartGroup),
	}, nil
}
