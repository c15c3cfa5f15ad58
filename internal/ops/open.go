package ops

import (
	"context"

	"github.com/hpungsan/dtbar/internal/record"
)

// OpenInput contains parameters for the Open operation.
type OpenInput struct {
	UUID       string // required
	SmartGroup bool
	Reveal     bool // bring DEVONthink to the front first
}

// OpenOutput contains the result of the Open operation.
type OpenOutput struct {
	UUID         string `json:"uuid"`
	ReferenceURL string `json:"reference_url"`
	Revealed     bool   `json:"revealed"`
}

// Open hands the record's reference URL to the system.
func (s *Service) Open(ctx context.Context, input OpenInput) (*OpenOutput, error) {
	uuid, err := validateUUID(input.UUID)
	if err != nil {
		return nil, err
	}

	url := record.ReferenceURL(uuid, input.SmartGroup)
	if err := s.client.Open(ctx, url, input.Reveal); err != nil {
		return nil, err
	}

	return &OpenOutput{UUID: uuid, ReferenceURL: url, Revealed: input.Reveal}, nil
}
