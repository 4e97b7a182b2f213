package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	// ErrNoToken is returned by Vote when the client was built without a token contract.
	ErrNoToken = errors.New("no token contract configured")

	// campaignCreatedTopic is the topic of CampaignCreated(uint256 indexed, address indexed, string).
	campaignCreatedTopic = crypto.Keccak256Hash([]byte("CampaignCreated(uint256,address,string)"))
)

// Submitter drives one write call through submission and confirmation. It is implemented by
// txstate.Tracker.
type Submitter interface {
	Submit(
		ctx context.Context,
		label string,
		send func(ctx context.Context) (common.Hash, error),
		wait func(ctx context.Context, hash common.Hash) (*types.Receipt, error),
	) (*types.Receipt, error)
}

// submit sends method on contract through s.
func (c *Client) submit(ctx context.Context, s Submitter, contract Contract, label string, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	c.log.Info("Submitting transaction", zap.String("step", label), zap.String("method", method))
	return s.Submit(ctx, label, func(ctx context.Context) (common.Hash, error) {
		return contract.Write(ctx, value, method, args...)
	}, contract.WaitForReceipt)
}

// CreateCampaign validates in and submits createCampaign with the configured creation fee.
func (c *Client) CreateCampaign(ctx context.Context, s Submitter, in CreateCampaignInput) (*types.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.submit(ctx, s, c.cfg.Fund, "create campaign", c.cfg.CampaignCreationFee, "createCampaign",
		in.Name,
		in.Description,
		in.Logo,
		in.DemoVideo,
		big.NewInt(in.StartTime),
		big.NewInt(in.EndTime),
		new(big.Int).SetUint64(in.AdminFeePercentage),
		new(big.Int).SetUint64(in.MaxWinners),
		in.UseQuadraticDistribution,
	)
}

// UpdateCampaign validates in and submits updateCampaign.
func (c *Client) UpdateCampaign(ctx context.Context, s Submitter, in UpdateCampaignInput) (*types.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return c.submit(ctx, s, c.cfg.Fund, "update campaign", nil, "updateCampaign",
		new(big.Int).SetUint64(in.CampaignID),
		in.Name,
		in.Description,
		big.NewInt(in.StartTime),
		big.NewInt(in.EndTime),
		new(big.Int).SetUint64(in.AdminFeePercentage),
		new(big.Int).SetUint64(in.MaxWinners),
		in.UseQuadraticDistribution,
	)
}

// SubmitProject validates in and submits submitProject with the configured creation fee.
func (c *Client) SubmitProject(ctx context.Context, s Submitter, in SubmitProjectInput) (*types.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	contracts, err := in.contractAddresses()
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, s, c.cfg.Fund, "submit project", c.cfg.ProjectCreationFee, "submitProject",
		new(big.Int).SetUint64(in.CampaignID),
		in.Name,
		in.Description,
		in.GithubLink,
		in.SocialLink,
		in.TestingLink,
		in.Logo,
		in.DemoVideo,
		contracts,
	)
}

// UpdateProject validates in and submits updateProject.
func (c *Client) UpdateProject(ctx context.Context, s Submitter, in UpdateProjectInput) (*types.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	contracts, err := in.contractAddresses()
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, s, c.cfg.Fund, "update project", nil, "updateProject",
		new(big.Int).SetUint64(in.CampaignID),
		new(big.Int).SetUint64(in.ProjectID),
		in.Name,
		in.Description,
		in.GithubLink,
		in.SocialLink,
		in.TestingLink,
		in.Logo,
		in.DemoVideo,
		contracts,
	)
}

// ApproveProject makes a project eligible for votes.
func (c *Client) ApproveProject(ctx context.Context, s Submitter, campaignID, projectID uint64) (*types.Receipt, error) {
	return c.submit(ctx, s, c.cfg.Fund, "approve project", nil, "approveProject",
		new(big.Int).SetUint64(campaignID),
		new(big.Int).SetUint64(projectID),
	)
}

// Vote grants the funding contract an allowance of in.Amount tokens and then casts the vote.
// The vote is only submitted once the allowance transaction is confirmed.
func (c *Client) Vote(ctx context.Context, s Submitter, in VoteInput) (*types.Receipt, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if c.cfg.Token == nil {
		return nil, ErrNoToken
	}

	if _, err := c.submit(ctx, s, c.cfg.Token, "approve token", nil, "approve", c.cfg.FundAddress, in.Amount); err != nil {
		return nil, fmt.Errorf("token approval failed, vote was not submitted: %w", err)
	}

	return c.submit(ctx, s, c.cfg.Fund, "vote", nil, "vote",
		new(big.Int).SetUint64(in.CampaignID),
		new(big.Int).SetUint64(in.ProjectID),
		in.Amount,
	)
}

// DistributeFunds pays out a campaign according to the contract's ranking.
func (c *Client) DistributeFunds(ctx context.Context, s Submitter, campaignID uint64) (*types.Receipt, error) {
	return c.submit(ctx, s, c.cfg.Fund, "distribute funds", nil, "distributeFunds", new(big.Int).SetUint64(campaignID))
}

// AddAdmin grants admin rights on a campaign to address.
func (c *Client) AddAdmin(ctx context.Context, s Submitter, campaignID uint64, address string) (*types.Receipt, error) {
	addr, err := ParseAddress("admin address", address)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, s, c.cfg.Fund, "add admin", nil, "addCampaignAdmin", new(big.Int).SetUint64(campaignID), addr)
}

// RemoveAdmin revokes admin rights on a campaign from address.
func (c *Client) RemoveAdmin(ctx context.Context, s Submitter, campaignID uint64, address string) (*types.Receipt, error) {
	addr, err := ParseAddress("admin address", address)
	if err != nil {
		return nil, err
	}
	return c.submit(ctx, s, c.cfg.Fund, "remove admin", nil, "removeCampaignAdmin", new(big.Int).SetUint64(campaignID), addr)
}

// WithdrawFees moves accumulated platform fees to recipient.
func (c *Client) WithdrawFees(ctx context.Context, s Submitter, recipient string, amount *big.Int) (*types.Receipt, error) {
	addr, err := ParseAddress("recipient", recipient)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, invalid("amount", "must be greater than zero")
	}
	return c.submit(ctx, s, c.cfg.Fund, "withdraw fees", nil, "withdrawFees", addr, amount)
}

// CreatedCampaignID extracts the id of a new campaign from the CampaignCreated event in receipt.
func CreatedCampaignID(receipt *types.Receipt) (uint64, bool) {
	if receipt == nil {
		return 0, false
	}
	for _, l := range receipt.Logs {
		if len(l.Topics) < 2 || l.Topics[0] != campaignCreatedTopic {
			continue
		}
		id := new(big.Int).SetBytes(l.Topics[1].Bytes())
		if !id.IsUint64() {
			return 0, false
		}
		return id.Uint64(), true
	}
	return 0, false
}

// ExplorerTxURL links a transaction on a block explorer rooted at base.
func ExplorerTxURL(base string, hash common.Hash) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/tx/" + hash.Hex()
}
