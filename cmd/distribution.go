package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fundlens/distribution"
)

func distributionCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "distribution",
		Aliases: []string{"dist", "d"},
		Short:   "Preview and reconcile campaign fund distributions",
	}

	cmd.AddCommand(
		distributionPreviewCmd(a),
		distributionReconcileCmd(a),
		distributionComputeCmd(a),
	)

	return cmd
}

func distributionPreviewCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "preview [campaign-id]",
		Aliases: []string{"p"},
		Short:   "Show what distributeFunds would pay out with the current funds and votes",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s distribution preview 3", appName),
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
			if view.Preview == nil {
				return fmt.Errorf("campaign %d has no valid distribution preview", id)
			}

			return printOutput(cmd, view.Preview, func(w io.Writer) error {
				writeDistribution(w, *view.Preview, ns.Decimals())
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

func distributionReconcileCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reconcile [campaign-id]",
		Aliases: []string{"r"},
		Short:   "Compare the projected distribution of a distributed campaign with what projects received",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s distribution reconcile 3", appName),
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
			rec := view.Reconciliation
			if rec == nil {
				return fmt.Errorf("campaign %d has not paid out any funds yet", id)
			}

			decimals := ns.Decimals()
			return printOutput(cmd, rec, func(w io.Writer) error {
				fmt.Fprintf(w, "Matches projection:\t%t\n", rec.Matches)
				fmt.Fprintf(w, "Projected total:\t%s\n", formatAmount(rec.Preview.Allocated, decimals))
				fmt.Fprintf(w, "Received total:\t%s\n", formatAmount(rec.TotalActual, decimals))
				fmt.Fprintln(w)
				fmt.Fprintln(w, "RANK\tPROJECT\tPROJECTED\tRECEIVED\tDELTA")
				for _, r := range rec.Rows {
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
						r.Rank, r.ProjectID,
						formatAmount(r.Projected, decimals),
						formatAmount(r.Actual, decimals),
						r.Delta.String(),
					)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

// distributionComputeCmd runs the calculation on inputs given as flags, without a network.
func distributionComputeCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "compute",
		Aliases: []string{"c"},
		Short:   "Compute a distribution from flag inputs without reading the chain",
		Args:    cobra.NoArgs,
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s distribution compute --total 1000 --admin-fee 5 --votes 0=300,1=100
$ %s distribution compute --total 1000000 --quadratic --max-winners 2 --votes 4=900,2=400,7=100`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := distributionInputFromFlags(cmd)
			if err != nil {
				return err
			}

			res, err := distribution.Compute(in)
			if err != nil {
				return err
			}

			return printOutput(cmd, res, func(w io.Writer) error {
				writeDistribution(w, res, 0)
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, distributionInputFlags(cmd))
}

func distributionInputFromFlags(cmd *cobra.Command) (distribution.Input, error) {
	f := cmd.Flags()

	totalStr, err := f.GetString(flagTotal)
	if err != nil {
		return distribution.Input{}, err
	}
	total, err := parseWei("total", totalStr)
	if err != nil {
		return distribution.Input{}, err
	}
	adminFee, err := f.GetUint64(flagAdminFee)
	if err != nil {
		return distribution.Input{}, err
	}
	maxWinners, err := f.GetUint64(flagMaxWinners)
	if err != nil {
		return distribution.Input{}, err
	}
	quadratic, err := f.GetBool(flagQuadratic)
	if err != nil {
		return distribution.Input{}, err
	}
	pairs, err := f.GetStringSlice(flagVotes)
	if err != nil {
		return distribution.Input{}, err
	}
	entries, err := parseVotes(pairs)
	if err != nil {
		return distribution.Input{}, err
	}

	return distribution.Input{
		TotalFunds:               total,
		AdminFeePercentage:       adminFee,
		UseQuadraticDistribution: quadratic,
		MaxWinners:               maxWinners,
		Projects:                 entries,
	}, nil
}

func writeDistribution(w io.Writer, r distribution.Result, decimals int32) {
	mode := "linear"
	if r.Quadratic {
		mode = "quadratic"
	}
	fmt.Fprintf(w, "Total funds:\t%s\n", formatAmount(r.TotalFunds, decimals))
	fmt.Fprintf(w, "Platform fee:\t%s\n", formatAmount(r.PlatformFee, decimals))
	fmt.Fprintf(w, "Admin fee:\t%s\n", formatAmount(r.AdminFee, decimals))
	fmt.Fprintf(w, "Distributable:\t%s (%s)\n", formatAmount(r.Distributable, decimals), mode)
	fmt.Fprintf(w, "Allocated:\t%s\n", formatAmount(r.Allocated, decimals))
	fmt.Fprintf(w, "Unallocated remainder:\t%s\n", r.UnallocatedRemainder.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "RANK\tPROJECT\tVOTES\tWEIGHT\tSHARE\tWINNER")
	for _, s := range r.Shares {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%t\n",
			s.Rank, s.ProjectID,
			s.VoteCount.String(),
			s.Weight.String(),
			formatAmount(s.FundsShare, decimals),
			s.Winner,
		)
	}
}
