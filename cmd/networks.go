package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func networksCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "networks",
		Aliases: []string{"net"},
		Short:   "Manage network configurations",
	}

	cmd.AddCommand(
		networksAddCmd(a),
		networksListCmd(a),
		networksUseCmd(a),
	)

	return cmd
}

// networksAddCmd adds a network's config to the global application config from a JSON file.
func networksAddCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add",
		Aliases: []string{"a"},
		Short:   "Add a new network config to the configuration file from a JSON file (-f)",
		Args:    cobra.NoArgs,
		Example: fmt.Sprintf(strings.TrimSpace(`
$ %s networks add --file networks/celo.json
$ %s net a -f networks/alfajores.json`), appName, appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString(flagFile)
			if err != nil {
				return err
			}
			if file == "" {
				return fmt.Errorf("--%s is required", flagFile)
			}

			if err := addNetworkConfigFromFile(a, file); err != nil {
				return err
			}

			return a.OverwriteConfig(a.Config)
		},
	}

	return fileFlag(a.Viper, cmd)
}

// networksListCmd prints the configured networks.
func networksListCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Args:    cobra.NoArgs,
		Aliases: []string{"l"},
		Short:   "List configured networks",
		Example: fmt.Sprintf("$ %s networks list", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOutput(cmd, a.Config.Networks, func(w io.Writer) error {
				fmt.Fprintln(w, "ACTIVE\tNAME\tCHAIN ID\tCONTRACT\tRPC")
				for _, n := range a.Config.Networks {
					active := ""
					if n.Name == a.Config.ActiveNetwork {
						active = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", active, n.Name, n.ChainID, n.Contract, n.RPCURL)
				}
				return nil
			})
		},
	}
	return outputFormatFlags(a.Viper, cmd)
}

// networksUseCmd sets the network used when --network is not passed.
func networksUseCmd(a *appState) *cobra.Command {
	return &cobra.Command{
		Use:     "use [name]",
		Args:    cobra.ExactArgs(1),
		Aliases: []string{"u"},
		Short:   "Set the active network",
		Example: fmt.Sprintf("$ %s networks use celo", appName),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.Config.GetNetworkConfig(args[0]); err != nil {
				return err
			}
			a.Config.ActiveNetwork = args[0]
			if err := a.OverwriteConfig(a.Config); err != nil {
				return err
			}
			a.Log.Info("Active network changed", zap.String("network", args[0]))
			return nil
		},
	}
}

// addNetworkConfigFromFile reads a JSON-formatted network config from the named file
// and adds it to global application config.
func addNetworkConfigFromFile(a *appState, file string) error {
	if _, err := os.Stat(file); err != nil {
		return err
	}

	byt, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var config *NetworkConfig
	if err = json.Unmarshal(byt, &config); err != nil {
		return err
	}
	if config == nil {
		return fmt.Errorf("%s does not contain a network config", file)
	}

	return a.Config.AddNetworkConfig(config)
}
