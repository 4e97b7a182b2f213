package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/chain"
)

func campaignsCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "campaigns",
		Aliases: []string{"c"},
		Short:   "Query and manage funding campaigns",
	}

	cmd.AddCommand(
		campaignsListCmd(a),
		campaignsShowCmd(a),
		campaignsCreateCmd(a),
		campaignsUpdateCmd(a),
		campaignsDistributeCmd(a),
		campaignsAdminCmd(a, true),
		campaignsAdminCmd(a, false),
	)

	return cmd
}

func campaignsListCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Short:   "List every campaign with its status",
		Args:    cobra.NoArgs,
		Example: fmt.Sprintf("$ %s campaigns list --json", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := a.newSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer ns.Close()

			views, err := ns.TryRefresh(cmd.Context())
			if err != nil {
				return err
			}

			now := ns.Clock().Now()
			return printOutput(cmd, views, func(w io.Writer) error {
				fmt.Fprintln(w, "ID\tNAME\tSTATUS\tENDS\tFUNDS\tPROJECTS\tVOTES")
				for _, v := range views {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
						v.Campaign.ID,
						v.Campaign.Name,
						statusLabel(v),
						formatTime(v.Campaign.EndTime, now),
						formatAmount(v.Campaign.TotalFunds, ns.Decimals()),
						v.Stats.Total,
						formatUnits(v.Stats.TotalVotes),
					)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

func campaignsShowCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show [campaign-id]",
		Aliases: []string{"s"},
		Short:   "Show a campaign with its projects and projected distribution",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s campaigns show 3", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer ns.Close()

			view, err := ns.RefreshCampaign(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printOutput(cmd, view, func(w io.Writer) error {
				return writeCampaignView(w, view, ns.Clock().Now(), ns.Decimals())
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

func statusLabel(v aggregate.CampaignView) string {
	if v.Deactivated {
		return string(v.Status) + " (deactivated)"
	}
	return string(v.Status)
}

func writeCampaignView(w io.Writer, v aggregate.CampaignView, now time.Time, decimals int32) error {
	c := v.Campaign
	distribution := "linear"
	if c.UseQuadraticDistribution {
		distribution = "quadratic"
	}
	maxWinners := "all"
	if c.MaxWinners > 0 {
		maxWinners = fmt.Sprint(c.MaxWinners)
	}

	fmt.Fprintf(w, "Campaign:\t%d %s\n", c.ID, c.Name)
	fmt.Fprintf(w, "Admin:\t%s\n", c.Admin.Hex())
	fmt.Fprintf(w, "Status:\t%s\n", statusLabel(v))
	fmt.Fprintf(w, "Starts:\t%s\n", formatTime(c.StartTime, now))
	fmt.Fprintf(w, "Ends:\t%s\n", formatTime(c.EndTime, now))
	fmt.Fprintf(w, "Remaining:\t%s\n", formatRemaining(v.Remaining))
	fmt.Fprintf(w, "Funds:\t%s\n", formatAmount(c.TotalFunds, decimals))
	fmt.Fprintf(w, "Admin fee:\t%d%%\n", c.AdminFeePercentage)
	fmt.Fprintf(w, "Distribution:\t%s, %s winners\n", distribution, maxWinners)
	fmt.Fprintf(w, "Projects:\t%d (%d approved, %d pending)\n", v.Stats.Total, v.Stats.Approved, v.Stats.Pending)
	fmt.Fprintf(w, "Votes:\t%s\n", formatUnits(v.Stats.TotalVotes))

	if len(v.Ranking) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "RANK\tPROJECT\tNAME\tVOTES\tPROJECTED\tRECEIVED")
		for i, p := range v.Ranking {
			projected := "-"
			if v.Preview != nil {
				if s, ok := v.Preview.Share(p.ID); ok && s.Winner {
					projected = formatAmount(s.FundsShare, decimals)
				}
			}
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
				i+1, p.ID, p.Name,
				formatAmount(p.VoteCount, decimals),
				projected,
				formatAmount(p.FundsReceived, decimals),
			)
		}
	}

	if pending := pendingProjects(v.Projects); len(pending) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Pending approval:\t%s\n", strings.Join(pending, ", "))
	}
	return nil
}

func pendingProjects(projects []chain.Project) []string {
	var out []string
	for _, p := range projects {
		if !p.Approved {
			out = append(out, fmt.Sprintf("%d %s", p.ID, p.Name))
		}
	}
	return out
}

func campaignsCreateCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign, paying the network's campaign creation fee",
		Args:  cobra.NoArgs,
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s campaigns create --name "Builders round" --start 2026-11-01T00:00:00Z --end 2026-11-30T00:00:00Z --admin-fee 5 --max-winners 3
$ %s campaigns create --name "QF round" --start 1793491200 --end 1796083200 --quadratic`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := campaignInputFromFlags(cmd, chain.CreateCampaignInput{})
			if err != nil {
				return err
			}
			if err := in.Validate(); err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			res, err := ns.CreateCampaign(cmd.Context(), in)
			return printTxResult(cmd, ns, "create campaign", res, err)
		},
	}
	return outputFormatFlags(a.Viper, campaignFieldFlags(cmd))
}

func campaignsUpdateCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "update [campaign-id]",
		Short:   "Update the editable fields of a campaign, keeping the ones not passed",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf(`$ %s campaigns update 3 --end 2026-12-15T00:00:00Z`, appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			current, err := ns.Client().TryGetCampaign(cmd.Context(), id)
			if err != nil {
				return err
			}

			in, err := campaignInputFromFlags(cmd, chain.CreateCampaignInput{
				Name:                     current.Name,
				Description:              current.Description,
				Logo:                     current.Logo,
				DemoVideo:                current.DemoVideo,
				StartTime:                current.StartTime,
				EndTime:                  current.EndTime,
				AdminFeePercentage:       current.AdminFeePercentage,
				MaxWinners:               current.MaxWinners,
				UseQuadraticDistribution: current.UseQuadraticDistribution,
			})
			if err != nil {
				return err
			}

			res, err := ns.UpdateCampaign(cmd.Context(), chain.UpdateCampaignInput{CampaignID: id, CreateCampaignInput: in})
			return printTxResult(cmd, ns, "update campaign", res, err)
		},
	}
	return outputFormatFlags(a.Viper, campaignFieldFlags(cmd))
}

func campaignsDistributeCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "distribute [campaign-id]",
		Short:   "Distribute the funds of an ended campaign to its winning projects",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s campaigns distribute 3", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			res, err := ns.DistributeFunds(cmd.Context(), id)
			return printTxResult(cmd, ns, "distribute funds", res, err)
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

// campaignsAdminCmd builds add-admin when add is set and remove-admin otherwise.
func campaignsAdminCmd(a *appState, add bool) *cobra.Command {
	use, short, action := "remove-admin", "Remove an admin from a campaign", "remove admin"
	if add {
		use, short, action = "add-admin", "Add an admin to a campaign", "add admin"
	}

	cmd := &cobra.Command{
		Use:     use + " [campaign-id] [address]",
		Short:   short,
		Args:    cobra.ExactArgs(2),
		Example: fmt.Sprintf("$ %s campaigns %s 3 0x52908400098527886E0F7030069857D2E4169EE7", appName, use),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}
			if _, err := chain.ParseAddress("admin", args[1]); err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			if add {
				res, err := ns.AddAdmin(cmd.Context(), id, args[1])
				return printTxResult(cmd, ns, action, res, err)
			}
			res, err := ns.RemoveAdmin(cmd.Context(), id, args[1])
			return printTxResult(cmd, ns, action, res, err)
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

// campaignInputFromFlags overrides the fields of base with the flags that were passed.
func campaignInputFromFlags(cmd *cobra.Command, base chain.CreateCampaignInput) (chain.CreateCampaignInput, error) {
	in := base
	f := cmd.Flags()

	var err error
	strs := []struct {
		flag string
		dst  *string
	}{
		{flagName, &in.Name},
		{flagDescription, &in.Description},
		{flagLogo, &in.Logo},
		{flagDemoVideo, &in.DemoVideo},
	}
	for _, s := range strs {
		if f.Changed(s.flag) {
			if *s.dst, err = f.GetString(s.flag); err != nil {
				return in, err
			}
		}
	}

	times := []struct {
		flag string
		dst  *int64
	}{
		{flagStart, &in.StartTime},
		{flagEnd, &in.EndTime},
	}
	for _, t := range times {
		if !f.Changed(t.flag) && *t.dst != 0 {
			continue
		}
		v, err := f.GetString(t.flag)
		if err != nil {
			return in, err
		}
		if *t.dst, err = parseTime(t.flag, v); err != nil {
			return in, err
		}
	}

	if f.Changed(flagAdminFee) {
		if in.AdminFeePercentage, err = f.GetUint64(flagAdminFee); err != nil {
			return in, err
		}
	}
	if f.Changed(flagMaxWinners) {
		if in.MaxWinners, err = f.GetUint64(flagMaxWinners); err != nil {
			return in, err
		}
	}
	if f.Changed(flagQuadratic) {
		if in.UseQuadraticDistribution, err = f.GetBool(flagQuadratic); err != nil {
			return in, err
		}
	}
	return in, nil
}
