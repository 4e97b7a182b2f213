package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/distribution"
	"github.com/strangelove-ventures/fundlens/session"
	"github.com/strangelove-ventures/fundlens/txstate"
)

// outputFlags reads the --json and --yaml flags of cmd.
func outputFlags(cmd *cobra.Command) (jsn, yml bool, err error) {
	if jsn, err = cmd.Flags().GetBool(flagJSON); err != nil {
		return false, false, err
	}
	if yml, err = cmd.Flags().GetBool(flagYAML); err != nil {
		return false, false, err
	}
	if jsn && yml {
		return false, false, fmt.Errorf("can't pass both --json and --yaml, must pick one")
	}
	return jsn, yml, nil
}

// printOutput writes v as json or yaml when asked to, and otherwise renders text through a
// tabwriter.
func printOutput(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	jsn, yml, err := outputFlags(cmd)
	if err != nil {
		return err
	}

	switch {
	case jsn:
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	case yml:
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	default:
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if err := text(tw); err != nil {
			return err
		}
		return tw.Flush()
	}
}

// formatAmount renders base units as whole tokens with thousands separators.
func formatAmount(v *big.Int, decimals int32) string {
	return formatUnits(aggregate.ToUnits(v, decimals))
}

func formatUnits(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.InexactFloat64(), 4)
}

// formatTime renders a unix timestamp with its distance from now.
func formatTime(unix int64, now time.Time) string {
	t := time.Unix(unix, 0)
	return fmt.Sprintf("%s (%s)", t.UTC().Format(time.RFC3339), humanize.RelTime(t, now, "ago", "from now"))
}

func formatRemaining(r aggregate.Remaining) string {
	return fmt.Sprintf("%dd %dh %dm", r.Days, r.Hours, r.Minutes)
}

// parseTime accepts unix seconds or an RFC3339 timestamp.
func parseTime(field, s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("--%s is required", field)
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s %q: expected unix seconds or RFC3339", field, s)
	}
	return t.Unix(), nil
}

func parseID(field, s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", field, s)
	}
	return id, nil
}

// parseAmount parses base units, or whole tokens scaled by 10^decimals when units is set.
func parseAmount(s string, units bool, decimals int32) (*big.Int, error) {
	if !units {
		return parseWei("amount", s)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimal places", s, decimals)
	}
	if scaled.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: must not be negative", s)
	}
	return scaled.BigInt(), nil
}

// parseVotes parses ranked id=count pairs.
func parseVotes(pairs []string) ([]distribution.Entry, error) {
	entries := make([]distribution.Entry, 0, len(pairs))
	for _, p := range pairs {
		id, count, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid vote %q: expected id=count", p)
		}
		projectID, err := parseID("project id", id)
		if err != nil {
			return nil, err
		}
		votes, err := parseWei("vote count", count)
		if err != nil {
			return nil, err
		}
		entries = append(entries, distribution.Entry{ProjectID: projectID, VoteCount: votes})
	}
	return entries, nil
}

// txOutput is the printable outcome of a write command.
type txOutput struct {
	Action        string        `json:"action" yaml:"action"`
	Phase         txstate.Phase `json:"phase" yaml:"phase"`
	ActionID      string        `json:"actionId,omitempty" yaml:"action-id,omitempty"`
	TxHash        string        `json:"txHash,omitempty" yaml:"tx-hash,omitempty"`
	Explorer      string        `json:"explorer,omitempty" yaml:"explorer,omitempty"`
	BlockNumber   string        `json:"blockNumber,omitempty" yaml:"block-number,omitempty"`
	FailureKind   string        `json:"failureKind,omitempty" yaml:"failure-kind,omitempty"`
	FailureReason string        `json:"failureReason,omitempty" yaml:"failure-reason,omitempty"`
	CampaignID    *uint64       `json:"campaignId,omitempty" yaml:"campaign-id,omitempty"`
	Status        string        `json:"campaignStatus,omitempty" yaml:"campaign-status,omitempty"`
}

// printTxResult reports the final state of a write. The write error is returned unchanged so
// the command exits non-zero. Errors raised before anything was submitted, such as invalid
// input, leave the tracker idle and are returned without printing a state.
func printTxResult(cmd *cobra.Command, ns *networkSession, action string, res session.Result, writeErr error) error {
	if writeErr != nil && res.State.Phase == txstate.PhaseIdle {
		return writeErr
	}

	out := txOutput{
		Action:   action,
		Phase:    res.State.Phase,
		ActionID: res.State.ActionID,
	}
	if hash := res.State.TxHash; hash != (common.Hash{}) {
		out.TxHash = hash.Hex()
		out.Explorer = ns.ExplorerURL(hash)
	}
	if res.Receipt != nil && res.Receipt.BlockNumber != nil {
		out.BlockNumber = res.Receipt.BlockNumber.String()
	}
	if f := res.State.Failure; f != nil {
		out.FailureKind = string(f.Kind)
		out.FailureReason = f.Reason
	}
	if res.View != nil {
		id := res.View.Campaign.ID
		out.CampaignID = &id
		out.Status = string(res.View.Status)
	}

	if err := printOutput(cmd, out, func(w io.Writer) error {
		fmt.Fprintf(w, "Action:\t%s\n", out.Action)
		fmt.Fprintf(w, "State:\t%s\n", out.Phase)
		if out.TxHash != "" {
			fmt.Fprintf(w, "Transaction:\t%s\n", out.TxHash)
		}
		if out.Explorer != "" {
			fmt.Fprintf(w, "Explorer:\t%s\n", out.Explorer)
		}
		if out.BlockNumber != "" {
			fmt.Fprintf(w, "Block:\t%s\n", out.BlockNumber)
		}
		if out.FailureKind != "" {
			fmt.Fprintf(w, "Failure:\t%s: %s\n", out.FailureKind, out.FailureReason)
		}
		if out.CampaignID != nil {
			fmt.Fprintf(w, "Campaign:\t%d (%s)\n", *out.CampaignID, out.Status)
		}
		return nil
	}); err != nil {
		return err
	}
	return writeErr
}
