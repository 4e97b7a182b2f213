package cmd

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strangelove-ventures/fundlens/internal/indexdebug"
	"github.com/strangelove-ventures/fundlens/watcher"
)

// startCmd starts the campaign watcher on the selected network.
func startCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"st"},
		Short:   "Start the campaign watcher",
		Args:    cobra.NoArgs,
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s start
$ %s st --network alfajores --interval 30s
$ %s start --once`, appName, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Determine how many goroutines will be used to refresh campaigns
			concurrentCampaigns, err := cmd.Flags().GetUint(flagConcurrentCampaigns)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed(flagConcurrentCampaigns) && a.Config.Watcher.ConcurrentCampaigns > 0 {
				concurrentCampaigns = a.Config.Watcher.ConcurrentCampaigns
			}
			if concurrentCampaigns < 1 {
				return fmt.Errorf("invalid flag value %d, value of --concurrent-campaigns must be greater than or equal to 1", concurrentCampaigns)
			}

			interval, err := cmd.Flags().GetDuration(flagInterval)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed(flagInterval) && a.Config.Watcher.Interval > 0 {
				interval = a.Config.Watcher.Interval
			}
			if interval <= 0 {
				return fmt.Errorf("invalid flag value %s, value of --interval must be positive", interval)
			}

			once, err := cmd.Flags().GetBool(flagOnce)
			if err != nil {
				return err
			}

			var actions []watcher.CampaignAction
			for _, name := range a.Config.Watcher.Actions {
				action, err := a.Config.GetCampaignActionByName(a.Log, name)
				if err != nil {
					a.Log.Info("Failed to get campaign action", zap.String("campaign_action_name", name))
					continue
				}
				actions = append(actions, action)
			}

			if len(actions) == 0 {
				return fmt.Errorf("no campaign actions configured, check the watcher.actions section of your config")
			}

			ns, err := a.newSession(ctx, false)
			if err != nil {
				return err
			}
			defer ns.Close()

			// Start the debug server if necessary
			debugAddr, err := cmd.Flags().GetString(flagDebugAddr)
			if err != nil {
				return err
			}
			if debugAddr == "" {
				a.Log.Info("Skipping debug server due to empty debug address flag")
			} else {
				ln, err := net.Listen("tcp", debugAddr)
				if err != nil {
					a.Log.Error("Failed to listen on debug address. If you have another fundlens process open, use --" + flagDebugAddr + " to pick a different address.")
					return fmt.Errorf("failed to listen on debug address %q: %w", debugAddr, err)
				}
				log := a.Log.With(zap.String("sys", "debughttp"))
				log.Info("Debug server listening", zap.String("addr", debugAddr))
				indexdebug.StartDebugServer(ctx, log, ln)
			}

			w := watcher.NewWatcher(a.Log.With(zap.String("network", ns.Network.Name)), ns.Session)

			if once {
				return w.RefreshAll(ctx, actions, concurrentCampaigns)
			}

			// Run the watcher
			return w.Run(ctx, interval, actions, concurrentCampaigns)
		},
	}
	return debugServerFlags(a.Viper, intervalFlag(a.Viper, concurrentCampaignsFlag(a.Viper, cmd)))
}
