package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fundlens/verify"
)

func verifyCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Query and report wallet verification",
	}

	cmd.AddCommand(
		verifyStatusCmd(a),
		verifyGoodDollarCmd(a),
	)

	return cmd
}

func verifyStatusCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status [wallet]",
		Short:   "Ask the verification service whether a wallet is verified",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s verify status 0x52908400098527886E0F7030069857D2E4169EE7", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newVerifyClient()
			if err != nil {
				return err
			}

			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printOutput(cmd, status, func(w io.Writer) error {
				fmt.Fprintf(w, "Wallet:\t%s\n", status.Wallet)
				fmt.Fprintf(w, "Verified:\t%t\n", status.Verified)
				if status.Status != "" {
					fmt.Fprintf(w, "Status:\t%s\n", status.Status)
				}
				if status.Message != "" {
					fmt.Fprintf(w, "Message:\t%s\n", status.Message)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

func verifyGoodDollarCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gooddollar [wallet]",
		Short:   "Report the outcome of a GoodDollar identity check for a wallet",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s verify gooddollar 0x52908400098527886E0F7030069857D2E4169EE7 --user-id 42 --verified", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := cmd.Flags().GetString(flagUserID)
			if err != nil {
				return err
			}
			verified, err := cmd.Flags().GetBool(flagVerified)
			if err != nil {
				return err
			}
			root, err := cmd.Flags().GetString(flagRoot)
			if err != nil {
				return err
			}

			client, err := a.newVerifyClient()
			if err != nil {
				return err
			}

			resp, err := client.SubmitGoodDollar(cmd.Context(), verify.GoodDollarRequest{
				Wallet:             args[0],
				UserID:             userID,
				VerificationStatus: verified,
				Root:               root,
			})
			if err != nil {
				return err
			}

			return printOutput(cmd, resp, func(w io.Writer) error {
				fmt.Fprintf(w, "Success:\t%t\n", resp.Success)
				if resp.Message != "" {
					fmt.Fprintf(w, "Message:\t%s\n", resp.Message)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, goodDollarFlags(cmd))
}
