package scoringservice

import (
	"context"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

// Subscribe attaches a new listener to the change feed. Consumers should
// take their snapshot after Subscribe returns and then apply events.
func (s *ScoringService) Subscribe(ctx context.Context) (*eventbus.Subscription[scoringtypes.DbEvent], error) {
	return eventbus.Subscribe(ctx, s.bus, scoringtypes.EventsTopic, scoringtypes.DecodeMessage)
}

// Unsubscribe detaches a listener and waits for its stream to close.
func (s *ScoringService) Unsubscribe(sub *eventbus.Subscription[scoringtypes.DbEvent]) error {
	if sub == nil {
		return nil
	}
	return sub.Close()
}
