package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/strangelove-ventures/fundlens/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// variables used in retry attempts for contract reads
var (
	RtyAttNum = uint(3)
	RtyDel    = retry.Delay(time.Millisecond * 400)
	RtyErr    = retry.LastErrorOnly(true)
)

const defaultConcurrency = 16

// ClientConfig configures a Client.
type ClientConfig struct {
	Logger *zap.Logger
	// Fund is the campaign funding contract.
	Fund Contract
	// Token is the ERC-20 token voters spend. Only needed for Vote.
	Token Contract
	// FundAddress is the spender granted token allowances before a vote.
	FundAddress common.Address
	// Concurrency bounds the number of in-flight reads during a fan-out. Defaults to 16.
	Concurrency uint
	// Limiter optionally rate limits every contract read.
	Limiter *rate.Limiter
	// ReadAttempts is the number of tries per read. Defaults to RtyAttNum.
	ReadAttempts uint
	// CampaignCreationFee and ProjectCreationFee are sent as value with the creation calls.
	CampaignCreationFee *big.Int
	ProjectCreationFee  *big.Int
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Fund == nil {
		return errors.New("funding contract is required")
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.ReadAttempts == 0 {
		cfg.ReadAttempts = RtyAttNum
	}
	return nil
}

// Client provides typed access to the funding contract.
type Client struct {
	cfg ClientConfig
	log *zap.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		log: cfg.Logger.With(zap.String("sys", "chain")),
	}, nil
}

// read calls a view function on the funding contract, retrying transient failures.
func (c *Client) read(ctx context.Context, method string, args ...any) ([]any, error) {
	start := time.Now()
	out, err := retry.DoWithData(func() ([]any, error) {
		if c.cfg.Limiter != nil {
			if err := c.cfg.Limiter.Wait(ctx); err != nil {
				return nil, retry.Unrecoverable(err)
			}
		}
		return c.cfg.Fund.Read(ctx, method, args...)
	}, retry.Context(ctx), retry.Attempts(c.cfg.ReadAttempts), RtyDel, RtyErr, retry.DelayType(retry.BackOffDelay), retry.OnRetry(func(n uint, err error) {
		c.log.Debug(
			"Failed to read contract",
			zap.String("method", method),
			zap.Uint("attempt", n+1),
			zap.Error(err),
		)
	}))
	metrics.ChainReadDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ChainReadsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	metrics.ChainReadsTotal.WithLabelValues(method, "success").Inc()
	return out, nil
}

func (c *Client) readUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.read(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	d := decoder{out: out, method: method}
	n := d.big(0)
	return n, d.err
}

// forEachIndex runs fn for every index in [0, count) with at most Concurrency calls in
// flight. The first error cancels the remaining calls and is returned.
func (c *Client) forEachIndex(ctx context.Context, count uint64, fn func(ctx context.Context, i uint64) error) error {
	var (
		sem       = make(chan struct{}, c.cfg.Concurrency)
		eg, egCtx = errgroup.WithContext(ctx)
	)

	for i := uint64(0); i < count; i++ {
		i := i
		select {
		case sem <- struct{}{}:
		case <-egCtx.Done():
			return eg.Wait()
		}

		eg.Go(func() error {
			defer func() { <-sem }()
			return fn(egCtx, i)
		})
	}
	return eg.Wait()
}

// TryListCampaigns reads every campaign. A single failed read fails the whole batch.
func (c *Client) TryListCampaigns(ctx context.Context) ([]Campaign, error) {
	count, err := c.readUint(ctx, "getCampaignCount")
	if err != nil {
		return nil, err
	}
	if !count.IsUint64() {
		return nil, fmt.Errorf("campaign count %s out of range", count)
	}

	campaigns := make([]Campaign, count.Uint64())
	err = c.forEachIndex(ctx, count.Uint64(), func(ctx context.Context, i uint64) error {
		out, err := c.read(ctx, "getCampaign", new(big.Int).SetUint64(i))
		if err != nil {
			return err
		}
		campaigns[i], err = decodeCampaign(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

// ListCampaigns is TryListCampaigns that logs failures and returns an empty list instead.
func (c *Client) ListCampaigns(ctx context.Context) []Campaign {
	campaigns, err := c.TryListCampaigns(ctx)
	if err != nil {
		c.log.Warn("Failed to list campaigns", zap.Error(err))
		return []Campaign{}
	}
	return campaigns
}

// TryGetCampaign reads a single campaign.
func (c *Client) TryGetCampaign(ctx context.Context, campaignID uint64) (Campaign, error) {
	out, err := c.read(ctx, "getCampaign", new(big.Int).SetUint64(campaignID))
	if err != nil {
		return Campaign{}, err
	}
	return decodeCampaign(out)
}

// TryListProjects reads every project of a campaign. A single failed read fails the whole batch.
func (c *Client) TryListProjects(ctx context.Context, campaignID uint64) ([]Project, error) {
	id := new(big.Int).SetUint64(campaignID)
	count, err := c.readUint(ctx, "getProjectCount", id)
	if err != nil {
		return nil, err
	}
	if !count.IsUint64() {
		return nil, fmt.Errorf("project count %s out of range", count)
	}

	projects := make([]Project, count.Uint64())
	err = c.forEachIndex(ctx, count.Uint64(), func(ctx context.Context, i uint64) error {
		out, err := c.read(ctx, "getProject", id, new(big.Int).SetUint64(i))
		if err != nil {
			return err
		}
		projects[i], err = decodeProject(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// TryGetProject reads a single project of a campaign.
func (c *Client) TryGetProject(ctx context.Context, campaignID, projectID uint64) (Project, error) {
	out, err := c.read(ctx, "getProject", new(big.Int).SetUint64(campaignID), new(big.Int).SetUint64(projectID))
	if err != nil {
		return Project{}, err
	}
	return decodeProject(out)
}

// ListProjects is TryListProjects that logs failures and returns an empty list instead.
func (c *Client) ListProjects(ctx context.Context, campaignID uint64) []Project {
	projects, err := c.TryListProjects(ctx, campaignID)
	if err != nil {
		c.log.Warn("Failed to list projects", zap.Uint64("campaign_id", campaignID), zap.Error(err))
		return []Project{}
	}
	return projects
}

// TryGetSortedProjects returns the campaign's projects in the contract's own ranking order.
// The order decides payouts, so it is passed through untouched.
func (c *Client) TryGetSortedProjects(ctx context.Context, campaignID uint64) ([]Project, error) {
	_, ranked, err := c.TryGetCampaignProjects(ctx, campaignID)
	return ranked, err
}

// TryGetCampaignProjects returns every project of a campaign in index order together with the
// projects the contract ranks, in ranking order.
func (c *Client) TryGetCampaignProjects(ctx context.Context, campaignID uint64) (all, ranked []Project, err error) {
	out, err := c.read(ctx, "getSortedProjects", new(big.Int).SetUint64(campaignID))
	if err != nil {
		return nil, nil, err
	}
	d := decoder{out: out, method: "getSortedProjects"}
	ids := d.bigs(0)
	if d.err != nil {
		return nil, nil, d.err
	}

	all, err = c.TryListProjects(ctx, campaignID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint64]Project, len(all))
	for _, p := range all {
		byID[p.ID] = p
	}

	ranked = make([]Project, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id.Uint64()]
		if !id.IsUint64() || !ok {
			return nil, nil, fmt.Errorf("getSortedProjects returned unknown project %s for campaign %d", id, campaignID)
		}
		ranked = append(ranked, p)
	}
	return all, ranked, nil
}

// GetSortedProjects is TryGetSortedProjects that logs failures and returns an empty list instead.
func (c *Client) GetSortedProjects(ctx context.Context, campaignID uint64) []Project {
	projects, err := c.TryGetSortedProjects(ctx, campaignID)
	if err != nil {
		c.log.Warn("Failed to get sorted projects", zap.Uint64("campaign_id", campaignID), zap.Error(err))
		return []Project{}
	}
	return projects
}

// GetUserVoteHistory returns every vote cast by voter, or an empty list on error.
func (c *Client) GetUserVoteHistory(ctx context.Context, voter common.Address) []Vote {
	out, err := c.read(ctx, "getUserVoteHistory", voter)
	if err == nil {
		var votes []Vote
		if votes, err = decodeVoteHistory(voter, out); err == nil {
			return votes
		}
	}
	c.log.Warn("Failed to get user vote history", zap.String("voter", voter.Hex()), zap.Error(err))
	return []Vote{}
}

// GetUserVotesForProject returns the votes voter cast for a project, or zero on error.
func (c *Client) GetUserVotesForProject(ctx context.Context, campaignID, projectID uint64, voter common.Address) *big.Int {
	n, err := c.readUint(ctx, "getUserVotesForProject", new(big.Int).SetUint64(campaignID), new(big.Int).SetUint64(projectID), voter)
	if err != nil {
		c.log.Warn(
			"Failed to get user votes for project",
			zap.Uint64("campaign_id", campaignID),
			zap.Uint64("project_id", projectID),
			zap.String("voter", voter.Hex()),
			zap.Error(err),
		)
		return new(big.Int)
	}
	return n
}

// GetUserTotalVotesInCampaign returns the votes voter cast across a campaign, or zero on error.
func (c *Client) GetUserTotalVotesInCampaign(ctx context.Context, campaignID uint64, voter common.Address) *big.Int {
	n, err := c.readUint(ctx, "getUserTotalVotesInCampaign", new(big.Int).SetUint64(campaignID), voter)
	if err != nil {
		c.log.Warn(
			"Failed to get user total votes in campaign",
			zap.Uint64("campaign_id", campaignID),
			zap.String("voter", voter.Hex()),
			zap.Error(err),
		)
		return new(big.Int)
	}
	return n
}
