package cmd

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/strangelove-ventures/fundlens/fetch"
	"gopkg.in/yaml.v3"
)

func configCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Manage configuration file",
	}

	cmd.AddCommand(
		configShowCmd(a),
		configInitCmd(a),
	)

	return cmd
}

type NetworkConfigs []*NetworkConfig

// Config provides app wide configuration settings.
type Config struct {
	ActiveNetwork string         `yaml:"active-network" json:"active-network"`
	Networks      NetworkConfigs `yaml:"networks" json:"networks"`
	Verify        VerifyConfig   `yaml:"verify" json:"verify"`
	Reads         ReadConfig     `yaml:"reads" json:"reads"`
	Watcher       WatcherConfig  `yaml:"watcher" json:"watcher"`
}

// NetworkConfig describes a deployment of the funding contract.
type NetworkConfig struct {
	Name    string `yaml:"name" json:"name"`
	ChainID int64  `yaml:"chain-id" json:"chain-id"`
	RPCURL  string `yaml:"rpc-url" json:"rpc-url"`
	// Contract is the campaign funding contract address.
	Contract string `yaml:"contract" json:"contract"`
	// Token is the ERC-20 voters spend.
	Token    string `yaml:"token" json:"token"`
	Explorer string `yaml:"explorer" json:"explorer"`
	// Creation fees in wei, as decimal strings.
	CampaignCreationFee string `yaml:"campaign-creation-fee" json:"campaign-creation-fee"`
	ProjectCreationFee  string `yaml:"project-creation-fee" json:"project-creation-fee"`
	TokenDecimals       int32  `yaml:"token-decimals" json:"token-decimals"`
}

// VerifyConfig holds the wallet verification service endpoint and its fetch options.
type VerifyConfig struct {
	URL        string        `yaml:"url" json:"url"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries uint          `yaml:"max-retries" json:"max-retries"`
	RetryDelay time.Duration `yaml:"retry-delay" json:"retry-delay"`
	Backoff    bool          `yaml:"backoff" json:"backoff"`
}

// ReadConfig bounds the load placed on the RPC node.
type ReadConfig struct {
	Concurrency uint `yaml:"concurrency" json:"concurrency"`
	// RateLimit is the number of contract reads per second. 0 disables limiting.
	RateLimit float64 `yaml:"rate-limit" json:"rate-limit"`
	Burst     int     `yaml:"burst" json:"burst"`
	Attempts  uint    `yaml:"attempts" json:"attempts"`
}

// WatcherConfig configures the start command.
type WatcherConfig struct {
	Interval            time.Duration `yaml:"interval" json:"interval"`
	ConcurrentCampaigns uint          `yaml:"concurrent-campaigns" json:"concurrent-campaigns"`
	Actions             []string      `yaml:"actions" json:"actions"`
}

// configInitCmd initializes an empty config at the location specified via the --home flag.
func configInitCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"i"},
		Short:   "Creates a default home directory at path defined by --home",
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s config init --home %s
$ %s cfg i`, appName, defaultHome, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return createConfig(a.HomePath)
		},
	}
	return cmd
}

// configShowCmd returns the configuration file in json or yaml format.
func configShowCmd(a *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"s", "list", "l"},
		Short:   "Prints current configuration",
		Example: strings.TrimSpace(fmt.Sprintf(`
$ %s config show --home %s
$ %s cfg list`, appName, defaultHome, appName)),
		RunE: func(cmd *cobra.Command, args []string) error {
			home := a.HomePath
			cfgPath := path.Join(home, "config", "config.yaml")
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if _, err := os.Stat(home); os.IsNotExist(err) {
					return fmt.Errorf("home path does not exist: %s", home)
				}
				return fmt.Errorf("config does not exist: %s", cfgPath)
			}

			return printOutput(cmd, a.Config, func(w io.Writer) error {
				_, err := w.Write(a.Config.MustYAML())
				return err
			})
		},
	}

	return yamlFlag(a.Viper, jsonFlag(a.Viper, cmd))
}

// createConfig writes the default config file to home/config/config.yaml, creating
// directories as needed. An existing config is never overwritten.
func createConfig(home string) error {
	cfgDir := path.Join(home, "config")
	cfgPath := path.Join(cfgDir, "config.yaml")

	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("config already exists: %s", cfgPath)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(cfgDir, os.ModePerm); err != nil {
		return err
	}

	return os.WriteFile(cfgPath, defaultConfig(), 0600)
}

// initConfig reads in the config file if one exists under the home directory.
// This is called as a persistent pre-run command of the root command.
func initConfig(a *appState) error {
	cfgPath := path.Join(a.HomePath, "config", "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	a.Viper.SetConfigFile(cfgPath)
	if err := a.Viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read in config: %w", err)
	}

	// read the config file bytes
	file, err := os.ReadFile(a.Viper.ConfigFileUsed())
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// unmarshall them into the struct
	cfg := &Config{}
	if err = yaml.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}
	a.Config = cfg

	return nil
}

// Validate checks the fields a network needs before anything is dialed.
func (n *NetworkConfig) Validate() error {
	if n.Name == "" {
		return errors.New("network name cannot be empty")
	}
	if n.RPCURL == "" {
		return fmt.Errorf("network %s has no rpc url", n.Name)
	}
	if n.Contract == "" {
		return fmt.Errorf("network %s has no funding contract address", n.Name)
	}
	if _, err := parseWei("campaign-creation-fee", n.CampaignCreationFee); err != nil {
		return fmt.Errorf("network %s: %w", n.Name, err)
	}
	if _, err := parseWei("project-creation-fee", n.ProjectCreationFee); err != nil {
		return fmt.Errorf("network %s: %w", n.Name, err)
	}
	return nil
}

// Fees returns the creation fees of the network as wei amounts.
func (n *NetworkConfig) Fees() (campaign, project *big.Int, err error) {
	if campaign, err = parseWei("campaign-creation-fee", n.CampaignCreationFee); err != nil {
		return nil, nil, err
	}
	if project, err = parseWei("project-creation-fee", n.ProjectCreationFee); err != nil {
		return nil, nil, err
	}
	return campaign, project, nil
}

// AddNetworkConfig adds a network config to the applications Config.
func (c *Config) AddNetworkConfig(networkConfig *NetworkConfig) error {
	if err := networkConfig.Validate(); err != nil {
		return err
	}
	if _, err := c.GetNetworkConfig(networkConfig.Name); err == nil {
		return fmt.Errorf("network with name %s already exists in config", networkConfig.Name)
	}
	c.Networks = append(c.Networks, networkConfig)
	if c.ActiveNetwork == "" {
		c.ActiveNetwork = networkConfig.Name
	}
	return nil
}

// GetNetworkConfig returns the configuration for a given network.
func (c *Config) GetNetworkConfig(name string) (*NetworkConfig, error) {
	for _, n := range c.Networks {
		if name == n.Name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("network with name %s is not configured", name)
}

// Network resolves the network named by override, falling back to the active network.
func (c *Config) Network(override string) (*NetworkConfig, error) {
	name := override
	if name == "" {
		name = c.ActiveNetwork
	}
	if name == "" {
		return nil, errors.New("no network selected, pass --network or set active-network in the config")
	}
	return c.GetNetworkConfig(name)
}

// FetchOptions converts the verify settings, falling back to the fetcher defaults.
func (v VerifyConfig) FetchOptions() fetch.Options {
	opts := fetch.Options{
		Timeout:    v.Timeout,
		MaxRetries: v.MaxRetries,
		RetryDelay: v.RetryDelay,
		Backoff:    v.Backoff,
	}
	if opts == (fetch.Options{}) {
		return fetch.DefaultOptions()
	}
	return opts
}

// defaultConfig returns the yaml string representation of the default configuration settings.
func defaultConfig() []byte {
	opts := fetch.DefaultOptions()
	return Config{
		Verify: VerifyConfig{
			URL:        "http://localhost:3000",
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
			RetryDelay: opts.RetryDelay,
		},
		Reads: ReadConfig{
			Concurrency: 16,
			RateLimit:   20,
			Burst:       20,
			Attempts:    3,
		},
		Watcher: WatcherConfig{
			Interval:            time.Minute,
			ConcurrentCampaigns: 4,
			Actions:             []string{"status", "preview"},
		},
	}.MustYAML()
}

// MustYAML returns the yaml string representation of the Config,
// and panics on any errors encountered.
func (c Config) MustYAML() []byte {
	out, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	return out
}

// parseWei parses a non-negative base 10 integer. Empty means zero.
func parseWei(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q: must be a non-negative integer amount", field, s)
	}
	return v, nil
}
