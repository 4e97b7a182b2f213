package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/strangelove-ventures/fundlens/distribution"
	"github.com/strangelove-ventures/fundlens/watcher/actions/preview"
	"github.com/strangelove-ventures/fundlens/watcher/actions/status"
)

// run executes the root command with args against home and returns stdout.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(zaptest.NewLogger(t))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--home", home))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func testNetwork(name string) *NetworkConfig {
	return &NetworkConfig{
		Name:                name,
		ChainID:             44787,
		RPCURL:              "https://alfajores-forno.celo-testnet.org",
		Contract:            "0x52908400098527886E0F7030069857D2E4169EE7",
		Token:               "0x8617E340B3D01FA5F11F306F4090FD50E238070D",
		Explorer:            "https://alfajores.celoscan.io",
		CampaignCreationFee: "1000000000000000000",
		TokenDecimals:       18,
	}
}

func TestConfig_Networks(t *testing.T) {
	var c Config

	_, err := c.Network("")
	require.Error(t, err)

	require.NoError(t, c.AddNetworkConfig(testNetwork("alfajores")))
	require.NoError(t, c.AddNetworkConfig(testNetwork("celo")))
	assert.Equal(t, "alfajores", c.ActiveNetwork, "first network becomes active")

	require.ErrorContains(t, c.AddNetworkConfig(testNetwork("celo")), "already exists")

	n, err := c.Network("")
	require.NoError(t, err)
	assert.Equal(t, "alfajores", n.Name)

	n, err = c.Network("celo")
	require.NoError(t, err)
	assert.Equal(t, "celo", n.Name)

	_, err = c.GetNetworkConfig("mainnet")
	require.ErrorContains(t, err, "not configured")
}

func TestNetworkConfig_Validate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		modify func(n *NetworkConfig)
		err    string
	}{
		{"valid", func(*NetworkConfig) {}, ""},
		{"no name", func(n *NetworkConfig) { n.Name = "" }, "name cannot be empty"},
		{"no rpc", func(n *NetworkConfig) { n.RPCURL = "" }, "no rpc url"},
		{"no contract", func(n *NetworkConfig) { n.Contract = "" }, "no funding contract"},
		{"bad fee", func(n *NetworkConfig) { n.ProjectCreationFee = "-1" }, "project-creation-fee"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			n := testNetwork("alfajores")
			tt.modify(n)
			err := n.Validate()
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.err)
		})
	}

	campaign, project, err := testNetwork("alfajores").Fees()
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", campaign.String())
	assert.Zero(t, project.Sign())
}

func TestVerifyConfig_FetchOptions(t *testing.T) {
	assert.Equal(t, time.Second, VerifyConfig{}.FetchOptions().RetryDelay)

	opts := VerifyConfig{Timeout: time.Second, MaxRetries: 5}.FetchOptions()
	assert.Equal(t, time.Second, opts.Timeout)
	assert.Equal(t, uint(5), opts.MaxRetries)
	assert.Zero(t, opts.RetryDelay)

	opts = VerifyConfig{Backoff: true}.FetchOptions()
	assert.True(t, opts.Backoff)
	assert.Zero(t, opts.RetryDelay)
}

func TestConfigInitAndShow(t *testing.T) {
	home := t.TempDir()

	_, err := run(t, home, "config", "init")
	require.NoError(t, err)

	_, err = run(t, home, "config", "init")
	require.ErrorContains(t, err, "config already exists")

	out, err := run(t, home, "config", "show", "--yaml")
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, []string{"status", "preview"}, cfg.Watcher.Actions)
	assert.Equal(t, time.Minute, cfg.Watcher.Interval)
	assert.Equal(t, uint(16), cfg.Reads.Concurrency)

	_, err = run(t, home, "config", "show", "--json", "--yaml")
	require.ErrorContains(t, err, "must pick one")
}

func TestNetworksAddListUse(t *testing.T) {
	home := t.TempDir()
	_, err := run(t, home, "config", "init")
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"alfajores", "celo"} {
		b, err := json.Marshal(testNetwork(name))
		require.NoError(t, err)
		file := filepath.Join(dir, name+".json")
		require.NoError(t, os.WriteFile(file, b, 0600))

		_, err = run(t, home, "networks", "add", "--file", file)
		require.NoError(t, err)
	}

	_, err = run(t, home, "networks", "use", "celo")
	require.NoError(t, err)
	_, err = run(t, home, "networks", "use", "mainnet")
	require.Error(t, err)

	out, err := run(t, home, "networks", "list", "--json")
	require.NoError(t, err)
	var networks []NetworkConfig
	require.NoError(t, json.Unmarshal([]byte(out), &networks))
	require.Len(t, networks, 2)
	assert.Equal(t, "alfajores", networks[0].Name)

	raw, err := os.ReadFile(filepath.Join(home, "config", "config.yaml"))
	require.NoError(t, err)
	var cfg Config
	require.NoError(t, yaml.Unmarshal(raw, &cfg))
	assert.Equal(t, "celo", cfg.ActiveNetwork)
}

func TestDistributionComputeCmd(t *testing.T) {
	out, err := run(t, t.TempDir(),
		"distribution", "compute",
		"--total", "1000", "--admin-fee", "5", "--votes", "0=300,1=100", "--json",
	)
	require.NoError(t, err)

	var res distribution.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "150", res.PlatformFee.String())
	assert.Equal(t, "50", res.AdminFee.String())
	assert.Equal(t, "800", res.Distributable.String())
	require.Len(t, res.Shares, 2)
	assert.Equal(t, "600", res.Shares[0].FundsShare.String())
	assert.Equal(t, "200", res.Shares[1].FundsShare.String())
	assert.Zero(t, res.UnallocatedRemainder.Sign())

	_, err = run(t, t.TempDir(), "distribution", "compute", "--total", "1000", "--admin-fee", "31")
	require.ErrorIs(t, err, distribution.ErrAdminFeeTooHigh)

	_, err = run(t, t.TempDir(), "distribution", "compute", "--votes", "0:300")
	require.ErrorContains(t, err, "expected id=count")
}

func TestCommandsRequireNetwork(t *testing.T) {
	_, err := run(t, t.TempDir(), "campaigns", "list")
	require.ErrorContains(t, err, "no network selected")
}

func TestGetCampaignActionByName(t *testing.T) {
	var c Config
	log := zaptest.NewLogger(t)

	a, err := c.GetCampaignActionByName(log, status.CampaignActionName)
	require.NoError(t, err)
	assert.Equal(t, status.CampaignActionName, a.Name())

	a, err = c.GetCampaignActionByName(log, preview.CampaignActionName)
	require.NoError(t, err)
	assert.Equal(t, preview.CampaignActionName, a.Name())

	_, err = c.GetCampaignActionByName(log, "unknown")
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("2.5", true, 18)
	require.NoError(t, err)
	assert.Equal(t, "2500000000000000000", v.String())

	v, err = parseAmount("42", false, 18)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	_, err = parseAmount("0.0000001", true, 6)
	require.ErrorContains(t, err, "decimal places")

	_, err = parseAmount("-1", true, 6)
	require.Error(t, err)

	_, err = parseAmount("1.5", false, 18)
	require.Error(t, err)
}

func TestParseTime(t *testing.T) {
	v, err := parseTime(flagStart, "1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v)

	v, err = parseTime(flagStart, "2023-11-14T22:13:20Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), v)

	_, err = parseTime(flagStart, "")
	require.ErrorContains(t, err, "--start is required")

	_, err = parseTime(flagEnd, "tomorrow")
	require.Error(t, err)
}
