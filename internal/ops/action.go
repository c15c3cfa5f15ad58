package ops

import (
	"context"

	"github.com/hpungsan/dtbar/internal/launchbar"
	"github.com/hpungsan/dtbar/internal/record"
)

// ActionInput contains parameters for the Action operation.
type ActionInput struct {
	Argument string // actionArgument JSON of the chosen item
	Reveal   bool
}

// ActionOutput contains the result of the Action operation.
// Items is set when the chosen group is browsed instead of opened.
type ActionOutput struct {
	Pick   PickOutput       `json:"pick"`
	Opened bool             `json:"opened"`
	Items  []launchbar.Item `json:"items,omitempty"`
}

// Action handles a LaunchBar item being chosen: the pick is recorded, then a
// browsable group lists its children and anything else is opened.
func (s *Service) Action(ctx context.Context, input ActionInput) (*ActionOutput, error) {
	arg, err := launchbar.ParseActionArgument(input.Argument)
	if err != nil {
		return nil, err
	}
	smart := arg.PickedRecord.Type == record.TypeSmartGroup

	pick, err := s.Pick(ctx, PickInput{UUID: arg.PickedUUID, SmartGroup: smart})
	if err != nil {
		return nil, err
	}
	output := &ActionOutput{Pick: *pick}

	if arg.PickedRecord.IsGroup() && arg.ReturnKeyToBrowseGroup && !input.Reveal {
		group, err := s.Group(ctx, GroupInput{UUID: arg.PickedUUID, LaunchBar: true})
		if err != nil {
			return nil, err
		}
		output.Items = group.Items
		if output.Items == nil {
			output.Items = []launchbar.Item{}
		}
		return output, nil
	}

	if _, err := s.Open(ctx, OpenInput{UUID: arg.PickedUUID, SmartGroup: smart, Reveal: input.Reveal}); err != nil {
		return nil, err
	}
	output.Opened = true
	return output, nil
}
