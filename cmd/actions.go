package cmd

import (
	"fmt"

	"github.com/strangelove-ventures/fundlens/watcher"
	"github.com/strangelove-ventures/fundlens/watcher/actions/preview"
	"github.com/strangelove-ventures/fundlens/watcher/actions/status"
	"go.uber.org/zap"
)

// GetCampaignActionByName returns a watcher.CampaignAction if there is a configured action matching
// the specified name.
//
// NOTE: New watcher.CampaignAction's should be registered here in a case that returns a new struct if
//       the name parameter matches the value returned by CampaignAction.Name()
func (c *Config) GetCampaignActionByName(log *zap.Logger, name string) (watcher.CampaignAction, error) {
	switch name {
	case status.CampaignActionName:
		return status.NewStatusAction(log.With(zap.String("campaign_action", status.CampaignActionName))), nil
	case preview.CampaignActionName:
		return preview.NewPreviewAction(log.With(zap.String("campaign_action", preview.CampaignActionName))), nil
	default:
		return nil, fmt.Errorf("there is no campaign action configured with the name %s", name)
	}
}
