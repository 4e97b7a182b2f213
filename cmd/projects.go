package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strangelove-ventures/fundlens/chain"
)

func projectsCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"p"},
		Short:   "Query and manage the projects of a campaign",
	}

	cmd.AddCommand(
		projectsListCmd(a),
		projectsSubmitCmd(a),
		projectsUpdateCmd(a),
		projectsApproveCmd(a),
	)

	return cmd
}

func projectsListCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list [campaign-id]",
		Aliases: []string{"l"},
		Short:   "List the projects of a campaign in index order",
		Args:    cobra.ExactArgs(1),
		Example: fmt.Sprintf("$ %s projects list 3 --yaml", appName),
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

			projects, err := ns.Client().TryListProjects(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printOutput(cmd, projects, func(w io.Writer) error {
				fmt.Fprintln(w, "ID\tNAME\tOWNER\tAPPROVED\tVOTES\tRECEIVED\tCONTRACTS")
				for _, p := range projects {
					fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\t%d\n",
						p.ID, p.Name, p.Owner.Hex(), p.Approved,
						formatAmount(p.VoteCount, ns.Decimals()),
						formatAmount(p.FundsReceived, ns.Decimals()),
						len(p.Contracts),
					)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

func projectsSubmitCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [campaign-id]",
		Short: "Submit a project to a campaign, paying the network's project creation fee",
		Args:  cobra.ExactArgs(1),
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s projects submit 3 --name "Relayer" --github https://github.com/org/relayer --contracts 0x52908400098527886E0F7030069857D2E4169EE7`, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}

			in, err := projectInputFromFlags(cmd, chain.SubmitProjectInput{CampaignID: id})
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

			res, err := ns.SubmitProject(cmd.Context(), in)
			return printTxResult(cmd, ns, "submit project", res, err)
		},
	}
	return outputFormatFlags(a.Viper, projectFieldFlags(cmd))
}

func projectsUpdateCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "update [campaign-id] [project-id]",
		Short:   "Update the editable fields of a project, keeping the ones not passed",
		Args:    cobra.ExactArgs(2),
		Example: fmt.Sprintf(`$ %s projects update 3 1 --description "Now with tests"`, appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}
			projectID, err := parseID("project id", args[1])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			projects, err := ns.Client().TryListProjects(cmd.Context(), campaignID)
			if err != nil {
				return err
			}
			if projectID >= uint64(len(projects)) {
				return fmt.Errorf("campaign %d has no project %d", campaignID, projectID)
			}
			current := projects[projectID]

			contracts := make([]string, 0, len(current.Contracts))
			for _, c := range current.Contracts {
				contracts = append(contracts, c.Hex())
			}
			in, err := projectInputFromFlags(cmd, chain.SubmitProjectInput{
				CampaignID:  campaignID,
				Name:        current.Name,
				Description: current.Description,
				GithubLink:  current.GithubLink,
				SocialLink:  current.SocialLink,
				TestingLink: current.TestingLink,
				Logo:        current.Logo,
				DemoVideo:   current.DemoVideo,
				Contracts:   contracts,
			})
			if err != nil {
				return err
			}

			res, err := ns.UpdateProject(cmd.Context(), chain.UpdateProjectInput{ProjectID: projectID, SubmitProjectInput: in})
			return printTxResult(cmd, ns, "update project", res, err)
		},
	}
	return outputFormatFlags(a.Viper, projectFieldFlags(cmd))
}

func projectsApproveCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "approve [campaign-id] [project-id]",
		Short:   "Approve a project so it can receive votes and funds",
		Args:    cobra.ExactArgs(2),
		Example: fmt.Sprintf("$ %s projects approve 3 1", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID("campaign id", args[0])
			if err != nil {
				return err
			}
			projectID, err := parseID("project id", args[1])
			if err != nil {
				return err
			}

			ns, err := a.newSession(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer ns.Close()

			res, err := ns.ApproveProject(cmd.Context(), campaignID, projectID)
			return printTxResult(cmd, ns, "approve project", res, err)
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

// projectInputFromFlags overrides the fields of base with the flags that were passed.
func projectInputFromFlags(cmd *cobra.Command, base chain.SubmitProjectInput) (chain.SubmitProjectInput, error) {
	in := base
	f := cmd.Flags()

	var err error
	strs := []struct {
		flag string
		dst  *string
	}{
		{flagName, &in.Name},
		{flagDescription, &in.Description},
		{flagGithub, &in.GithubLink},
		{flagSocial, &in.SocialLink},
		{flagTesting, &in.TestingLink},
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
	if f.Changed(flagContracts) {
		if in.Contracts, err = f.GetStringSlice(flagContracts); err != nil {
			return in, err
		}
	}
	return in, nil
}
