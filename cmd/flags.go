package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagHome                = "home"
	flagDebug               = "debug"
	flagLogFormat           = "log-format"
	flagNetwork             = "network"
	flagJSON                = "json"
	flagYAML                = "yaml"
	flagConcurrentCampaigns = "concurrent-campaigns"
	flagInterval            = "interval"
	flagOnce                = "once"
	flagDebugAddr           = "debug-addr"
	flagFile                = "file"
	flagUnits               = "units"

	flagName        = "name"
	flagDescription = "description"
	flagLogo        = "logo"
	flagDemoVideo   = "demo-video"
	flagStart       = "start"
	flagEnd         = "end"
	flagAdminFee    = "admin-fee"
	flagMaxWinners  = "max-winners"
	flagQuadratic   = "quadratic"
	flagGithub      = "github"
	flagSocial      = "social"
	flagTesting     = "testing"
	flagContracts   = "contracts"
	flagTotal       = "total"
	flagVotes       = "votes"
	flagUserID      = "user-id"
	flagVerified    = "verified"
	flagRoot        = "root"

	// envPrivateKey is read through viper, so FUNDLENS_PRIVATE_KEY supplies it.
	envPrivateKey = "private-key"
)

const (
	defaultDebugAddr           = "localhost:49666"
	defaultConcurrentCampaigns = 4
	defaultInterval            = time.Minute
	defaultJSON                = false
	defaultYAML                = false
)

func yamlFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagYAML, "y", defaultYAML, "returns the response in yaml format")
	if err := v.BindPFlag(flagYAML, cmd.Flags().Lookup(flagYAML)); err != nil {
		panic(err)
	}
	return cmd
}

func jsonFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagJSON, "j", defaultJSON, "returns the response in json format")
	if err := v.BindPFlag(flagJSON, cmd.Flags().Lookup(flagJSON)); err != nil {
		panic(err)
	}
	return cmd
}

func outputFormatFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	return yamlFlag(v, jsonFlag(v, cmd))
}

func concurrentCampaignsFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().UintP(flagConcurrentCampaigns, "c", defaultConcurrentCampaigns, "specifies how many campaigns to refresh concurrently")
	if err := v.BindPFlag(flagConcurrentCampaigns, cmd.Flags().Lookup(flagConcurrentCampaigns)); err != nil {
		panic(err)
	}
	return cmd
}

func intervalFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().DurationP(flagInterval, "i", defaultInterval, "time between campaign refreshes")
	if err := v.BindPFlag(flagInterval, cmd.Flags().Lookup(flagInterval)); err != nil {
		panic(err)
	}
	cmd.Flags().Bool(flagOnce, false, "refresh every campaign once and exit")
	if err := v.BindPFlag(flagOnce, cmd.Flags().Lookup(flagOnce)); err != nil {
		panic(err)
	}
	return cmd
}

func debugServerFlags(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagDebugAddr, defaultDebugAddr, "address to use for debug server. Set empty to disable debug server.")
	if err := v.BindPFlag(flagDebugAddr, cmd.Flags().Lookup(flagDebugAddr)); err != nil {
		panic(err)
	}
	return cmd
}

func fileFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().StringP(flagFile, "f", "", "fetch json data from specified file")
	if err := v.BindPFlag(flagFile, cmd.Flags().Lookup(flagFile)); err != nil {
		panic(err)
	}
	return cmd
}

// unitsFlag lets amount arguments be given in whole tokens instead of base units.
func unitsFlag(v *viper.Viper, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolP(flagUnits, "u", false, "amounts are given in whole tokens and scaled by the token decimals")
	if err := v.BindPFlag(flagUnits, cmd.Flags().Lookup(flagUnits)); err != nil {
		panic(err)
	}
	return cmd
}

// campaignFieldFlags registers the editable fields of a campaign.
func campaignFieldFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagName, "", "campaign name")
	cmd.Flags().String(flagDescription, "", "campaign description")
	cmd.Flags().String(flagLogo, "", "logo url")
	cmd.Flags().String(flagDemoVideo, "", "demo video url")
	cmd.Flags().String(flagStart, "", "voting start, RFC3339 or unix seconds")
	cmd.Flags().String(flagEnd, "", "voting end, RFC3339 or unix seconds")
	cmd.Flags().Uint64(flagAdminFee, 0, "admin fee percentage")
	cmd.Flags().Uint64(flagMaxWinners, 0, "number of projects paid out, 0 for all")
	cmd.Flags().Bool(flagQuadratic, false, "distribute by square root of votes")
	return cmd
}

// projectFieldFlags registers the editable fields of a project.
func projectFieldFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagName, "", "project name")
	cmd.Flags().String(flagDescription, "", "project description")
	cmd.Flags().String(flagGithub, "", "github link")
	cmd.Flags().String(flagSocial, "", "social link")
	cmd.Flags().String(flagTesting, "", "testing link")
	cmd.Flags().String(flagLogo, "", "logo url")
	cmd.Flags().String(flagDemoVideo, "", "demo video url")
	cmd.Flags().StringSlice(flagContracts, nil, "comma separated contract addresses of the project")
	return cmd
}

// distributionInputFlags registers the inputs of an offline distribution calculation.
func distributionInputFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagTotal, "0", "total campaign funds in base units")
	cmd.Flags().Uint64(flagAdminFee, 0, "admin fee percentage")
	cmd.Flags().Uint64(flagMaxWinners, 0, "number of projects paid out, 0 for all")
	cmd.Flags().Bool(flagQuadratic, false, "distribute by square root of votes")
	cmd.Flags().StringSlice(flagVotes, nil, "ranked project votes as id=count, highest first")
	return cmd
}

func goodDollarFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().String(flagUserID, "", "GoodDollar user id")
	cmd.Flags().Bool(flagVerified, false, "whether the GoodDollar identity check passed")
	cmd.Flags().String(flagRoot, "", "whitelisted root address of a connected identity")
	return cmd
}
