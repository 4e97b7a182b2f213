package preview

import (
	"context"
	"errors"
	"fmt"

	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/watcher"
	"go.uber.org/zap"
)

// CampaignActionName is used for configuring campaign actions via the config file.
const CampaignActionName = "preview"

// ErrNoPreview is returned when a campaign view carries no distribution preview.
var ErrNoPreview = errors.New("campaign has no distribution preview")

// PreviewAction implements the watcher.CampaignAction interface. It logs the projected
// distribution of every campaign and flags distributed campaigns whose payouts differ from it.
type PreviewAction struct {
	actionName string
	log        *zap.Logger
}

// NewPreviewAction returns a new PreviewAction campaign action to be used by the watcher.
func NewPreviewAction(log *zap.Logger) *PreviewAction {
	return &PreviewAction{
		actionName: CampaignActionName,
		log:        log,
	}
}

func (a *PreviewAction) Name() string {
	return a.actionName
}

func (a *PreviewAction) Execute(_ context.Context, _ *watcher.Watcher, view aggregate.CampaignView) error {
	c := view.Campaign
	if view.Preview == nil {
		return fmt.Errorf("campaign %d: %w", c.ID, ErrNoPreview)
	}
	p := view.Preview

	a.log.Debug(
		"Projected distribution",
		zap.Uint64("campaign_id", c.ID),
		zap.String("total_funds", p.TotalFunds.String()),
		zap.String("platform_fee", p.PlatformFee.String()),
		zap.String("admin_fee", p.AdminFee.String()),
		zap.String("distributable", p.Distributable.String()),
		zap.String("unallocated_remainder", p.UnallocatedRemainder.String()),
		zap.Bool("quadratic", p.Quadratic),
		zap.Int("winners", len(p.Winners())),
	)
	for _, s := range p.Winners() {
		a.log.Debug(
			"Projected share",
			zap.Uint64("campaign_id", c.ID),
			zap.Uint64("project_id", s.ProjectID),
			zap.Int("rank", s.Rank),
			zap.String("vote_count", s.VoteCount.String()),
			zap.String("funds_share", s.FundsShare.String()),
		)
	}

	rec := view.Reconciliation
	if rec == nil || rec.Matches {
		return nil
	}
	for _, row := range rec.Rows {
		if row.Delta.Sign() == 0 {
			continue
		}
		a.log.Warn(
			"Distributed funds differ from projection",
			zap.Uint64("campaign_id", c.ID),
			zap.Uint64("project_id", row.ProjectID),
			zap.String("projected", row.Projected.String()),
			zap.String("actual", row.Actual.String()),
			zap.String("delta", row.Delta.String()),
		)
	}
	return nil
}
