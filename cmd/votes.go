package cmd

import (
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/chain"
)

func votesCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "votes",
		Aliases: []string{"v"},
		Short:   "Cast votes and query voter history",
	}

	cmd.AddCommand(
		votesCastCmd(a),
		votesHistoryCmd(a),
		votesSummaryCmd(a),
	)

	return cmd
}

func votesCastCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cast [campaign-id] [project-id] [amount]",
		Short: "Approve the vote token and vote for a project",
		Long: "Sends a token approval for the funding contract followed by the vote. " +
			"If the approval fails the vote is not sent.",
		Args: cobra.ExactArgs(3),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s votes cast 3 1 2500000000000000000
$ %s votes cast 3 1 2.5 --units`, appName, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}
			projectID, err := parseID("project id", args[1])
			if err != nil {
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

			amount, err := parseAmount(args[2], units, ns.Decimals())
			if err != nil {
				return err
			}

			res, err := ns.Vote(cmd.Context(), chain.VoteInput{CampaignID: campaignID, ProjectID: projectID, Amount: amount})
			return printTxResult(cmd, ns, "vote", res, err)
		},
	}
	return outputFormatFlags(a.Viper, unitsFlag(a.Viper, cmd))
}

type voteHistory struct {
	Voter       string                       `json:"voter" yaml:"voter"`
	Votes       []chain.Vote                 `json:"votes" yaml:"votes"`
	Leaderboard []aggregate.LeaderboardEntry `json:"leaderboard" yaml:"leaderboard"`
}

func votesHistoryCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history [voter]",
		Aliases: []string{"h"},
		Short:   "Show a voter's votes and the campaigns they contributed most to",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s votes history 0x52908400098527886E0F7030069857D2E4169EE7", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			voter, err := chain.ParseAddress("voter", args[0])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer ns.Close()

			votes, board := ns.UserVotes(cmd.Context(), voter)
			out := voteHistory{Voter: voter.Hex(), Votes: votes, Leaderboard: board}

			decimals := ns.Decimals()
			return printOutput(cmd, out, func(w io.Writer) error {
				fmt.Fprintln(w, "CAMPAIGN\tNAME\tAMOUNT\tVOTE COUNT\tVOTES")
				for _, e := range board {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n",
						e.CampaignID, e.Name,
						formatAmount(e.Amount, decimals),
						formatAmount(e.VoteCount, decimals),
						e.Votes,
					)
				}
				fmt.Fprintln(w)
				fmt.Fprintln(w, "CAMPAIGN\tPROJECT\tAMOUNT\tVOTE COUNT")
				for _, v := range votes {
					fmt.Fprintf(w, "%d\t%d\t%s\t%s\n",
						v.CampaignID, v.ProjectID,
						formatAmount(v.Amount, decimals),
						formatAmount(v.VoteCount, decimals),
					)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

type voteSummary struct {
	Voter      string                `json:"voter" yaml:"voter"`
	CampaignID uint64                `json:"campaignId" yaml:"campaign-id"`
	ProjectID  uint64                `json:"projectId" yaml:"project-id"`
	History    aggregate.VoteSummary `json:"history" yaml:"history"`
	// Project and Campaign are the contract's own per-voter totals.
	Project  *big.Int `json:"project" yaml:"project"`
	Campaign *big.Int `json:"campaign" yaml:"campaign"`
}

func votesSummaryCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "summary [campaign-id] [project-id] [voter]",
		Aliases: []string{"s"},
		Short:   "Sum a voter's repeated votes for one project",
		Args:    cobra.ExactArgs(3),
		Example: fmt.Sprintf("$ %s votes summary 3 1 0x52908400098527886E0F7030069857D2E4169EE7", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}
			projectID, err := parseID("project id", args[1])
			if err != nil {
				return err
			}
			voter, err := chain.ParseAddress("voter", args[2])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer ns.Close()

			out := voteSummary{Voter: voter.Hex(), CampaignID: campaignID, ProjectID: projectID}
			client := ns.Client()

			var eg errgroup.Group
			eg.Go(func() error {
				out.History = aggregate.UserVoteSummary(client.GetUserVoteHistory(cmd.Context(), voter), campaignID, projectID)
				return nil
			})
			eg.Go(func() error {
				out.Project = client.GetUserVotesForProject(cmd.Context(), campaignID, projectID, voter)
				return nil
			})
			eg.Go(func() error {
				out.Campaign = client.GetUserTotalVotesInCampaign(cmd.Context(), campaignID, voter)
				return nil
			})
			_ = eg.Wait()

			decimals := ns.Decimals()
			return printOutput(cmd, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Voter:\t%s\n", out.Voter)
				fmt.Fprintf(w, "Votes cast:\t%d\n", out.History.Votes)
				fmt.Fprintf(w, "Amount:\t%s\n", formatAmount(out.History.Amount, decimals))
				fmt.Fprintf(w, "Vote count:\t%s\n", formatAmount(out.History.VoteCount, decimals))
				fmt.Fprintf(w, "Contract total for project:\t%s\n", formatAmount(out.Project, decimals))
				fmt.Fprintf(w, "Contract total for campaign:\t%s\n", formatAmount(out.Campaign, decimals))
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}
