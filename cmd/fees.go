package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fundlens/chain"
)

func feesCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Manage platform fees held by the funding contract",
	}

	cmd.AddCommand(feesWithdrawCmd(a))

	return cmd
}

func feesWithdrawCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw [recipient] [amount]",
		Short: "Withdraw accumulated fees to recipient",
		Args:  cobra.ExactArgs(2),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s fees withdraw 0x52908400098527886E0F7030069857D2E4169EE7 1000000000000000000
$ %s fees withdraw 0x52908400098527886E0F7030069857D2E4169EE7 1 --units`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := chain.ParseAddress("recipient", args[0]); err != nil {
				return err
			}
			units, err := cmd.Flags().GetBool(flagUnits)
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			amount, err := parseAmount(args[1], units, ns.Decimals())
			if err != nil {
				return err
			}

			res, err := ns.WithdrawFees(cmd.Context(), args[0], amount)
			return printTxResult(cmd, ns, "withdraw fees", res, err)
		},
	}
	return outputFormatFlags(a.Viper, unitsFlag(a.Viper, cmd))
}
