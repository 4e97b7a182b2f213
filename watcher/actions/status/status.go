package status

import (
	"context"
	"sync"

	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/watcher"
	"go.uber.org/zap"
)

// CampaignActionName is used for configuring campaign actions via the config file,
// these names are read when starting the watcher for building the list of actions to take at runtime.
const CampaignActionName = "status"

// StatusAction implements the watcher.CampaignAction interface. It logs the derived status of
// each campaign and reports when a campaign moves from one status to another.
type StatusAction struct {
	actionName string
	log        *zap.Logger

	mu   sync.Mutex
	last map[uint64]aggregate.Status
}

// NewStatusAction returns a new StatusAction campaign action to be used by the watcher.
func NewStatusAction(log *zap.Logger) *StatusAction {
	return &StatusAction{
		actionName: CampaignActionName,
		log:        log,
		last:       make(map[uint64]aggregate.Status),
	}
}

// Name returns the campaign action name for identifying this action.
func (a *StatusAction) Name() string {
	return a.actionName
}

func (a *StatusAction) Execute(_ context.Context, _ *watcher.Watcher, view aggregate.CampaignView) error {
	c := view.Campaign
	fields := []zap.Field{
		zap.Uint64("campaign_id", c.ID),
		zap.String("name", c.Name),
		zap.String("status", string(view.Status)),
		zap.Int64("days_remaining", view.Remaining.Days),
		zap.Int64("hours_remaining", view.Remaining.Hours),
		zap.Int64("minutes_remaining", view.Remaining.Minutes),
		zap.Int("projects", view.Stats.Total),
		zap.Int("approved_projects", view.Stats.Approved),
		zap.Int("pending_projects", view.Stats.Pending),
		zap.String("total_votes", view.Stats.TotalVotes.String()),
	}
	if view.Deactivated {
		fields = append(fields, zap.Bool("deactivated", true))
	}

	a.mu.Lock()
	prev, seen := a.last[c.ID]
	a.last[c.ID] = view.Status
	a.mu.Unlock()

	if seen && prev != view.Status {
		a.log.Info("Campaign status changed", append(fields, zap.String("previous_status", string(prev)))...)
		return nil
	}
	a.log.Debug("Campaign status", fields...)
	return nil
}

// Last returns the most recently observed status of a campaign.
func (a *StatusAction) Last(campaignID uint64) (aggregate.Status, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.last[campaignID]
	return s, ok
}
