// Package session ties the contract client and a single transaction tracker together for one
// user. Write actions reset the tracker, run through it and re-read the campaign they touched
// once confirmed.
package session

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jonboulle/clockwork"
	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/chain"
	"github.com/strangelove-ventures/fundlens/metrics"
	"github.com/strangelove-ventures/fundlens/txstate"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

type Config struct {
	Logger *zap.Logger
	Client *chain.Client
	Tx     *txstate.Tracker
	Clock  clockwork.Clock
	// Decimals is the vote token's base unit scale.
	Decimals int32
	// Concurrency bounds how many campaigns are refreshed at once.
	Concurrency int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("chain client is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Tx == nil {
		tx, err := txstate.NewTracker(txstate.Config{Logger: cfg.Logger, Clock: cfg.Clock})
		if err != nil {
			return err
		}
		cfg.Tx = tx
	}
	if cfg.Decimals == 0 {
		cfg.Decimals = aggregate.DefaultTokenDecimals
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return nil
}

type Session struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		cfg: cfg,
		log: cfg.Logger.With(zap.String("sys", "session")),
	}, nil
}

func (s *Session) Client() *chain.Client {
	return s.cfg.Client
}

func (s *Session) Tx() *txstate.Tracker {
	return s.cfg.Tx
}

func (s *Session) Clock() clockwork.Clock {
	return s.cfg.Clock
}

func (s *Session) Decimals() int32 {
	return s.cfg.Decimals
}

// Refresh re-reads every campaign and builds its view. It returns an empty list when the
// campaigns could not be read.
func (s *Session) Refresh(ctx context.Context) []aggregate.CampaignView {
	views, err := s.TryRefresh(ctx)
	if err != nil {
		s.log.Warn("Failed to refresh campaigns", zap.Error(err))
		return []aggregate.CampaignView{}
	}
	return views
}

// TryRefresh is Refresh that reports the first read error instead of returning an empty list.
func (s *Session) TryRefresh(ctx context.Context) ([]aggregate.CampaignView, error) {
	start := time.Now()
	views, err := s.refresh(ctx)
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RefreshTotal.WithLabelValues("success").Inc()
	return views, nil
}

func (s *Session) refresh(ctx context.Context) ([]aggregate.CampaignView, error) {
	campaigns, err := s.cfg.Client.TryListCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]aggregate.CampaignView, len(campaigns))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency)
	for i, c := range campaigns {
		i, c := i, c
		eg.Go(func() error {
			view, err := s.BuildView(egCtx, c)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// RefreshCampaign re-reads one campaign and its projects.
func (s *Session) RefreshCampaign(ctx context.Context, campaignID uint64) (aggregate.CampaignView, error) {
	c, err := s.cfg.Client.TryGetCampaign(ctx, campaignID)
	if err != nil {
		return aggregate.CampaignView{}, err
	}
	return s.BuildView(ctx, c)
}

// BuildView reads the projects of an already read campaign and builds its view.
func (s *Session) BuildView(ctx context.Context, c chain.Campaign) (aggregate.CampaignView, error) {
	all, ranked, err := s.cfg.Client.TryGetCampaignProjects(ctx, c.ID)
	if err != nil {
		return aggregate.CampaignView{}, err
	}
	view, err := aggregate.BuildCampaignView(c, all, ranked, s.cfg.Clock.Now(), s.cfg.Decimals)
	if err != nil {
		// The view without a preview is still worth showing.
		s.log.Warn("Failed to compute distribution preview", zap.Uint64("campaign_id", c.ID), zap.Error(err))
	}
	return view, nil
}

// UserVotes collects the vote history of voter and the per-campaign leaderboard built from it.
func (s *Session) UserVotes(ctx context.Context, voter common.Address) ([]chain.Vote, []aggregate.LeaderboardEntry) {
	votes := s.cfg.Client.GetUserVoteHistory(ctx, voter)
	if len(votes) == 0 {
		return votes, []aggregate.LeaderboardEntry{}
	}
	campaigns := s.cfg.Client.ListCampaigns(ctx)
	return votes, aggregate.BuildLeaderboard(votes, campaigns)
}

// Result is the outcome of a write action.
type Result struct {
	Receipt *types.Receipt
	State   txstate.State
	// View is the re-read campaign. Nil when the action failed or the campaign could not be read.
	View *aggregate.CampaignView
}

// run resets the tracker, runs write and refreshes campaignID once the write is confirmed.
// campaignID may be resolved from the receipt by resolve, as with a newly created campaign.
func (s *Session) run(
	ctx context.Context,
	action string,
	campaignID uint64,
	resolve func(*types.Receipt) (uint64, bool),
	write func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error),
) (Result, error) {
	if err := s.cfg.Tx.Reset(); err != nil {
		return Result{State: s.cfg.Tx.State()}, err
	}

	receipt, err := write(ctx, s.cfg.Tx)
	res := Result{Receipt: receipt, State: s.cfg.Tx.State()}
	if err != nil {
		return res, err
	}

	if resolve != nil {
		id, ok := resolve(receipt)
		if !ok {
			s.log.Warn("Confirmed transaction has no campaign id", zap.String("action", action), zap.String("tx_hash", receipt.TxHash.Hex()))
			return res, nil
		}
		campaignID = id
	}

	view, err := s.RefreshCampaign(ctx, campaignID)
	if err != nil {
		s.log.Warn("Failed to refresh campaign after transaction", zap.String("action", action), zap.Uint64("campaign_id", campaignID), zap.Error(err))
		return res, nil
	}
	res.View = &view
	return res, nil
}

func (s *Session) CreateCampaign(ctx context.Context, in chain.CreateCampaignInput) (Result, error) {
	return s.run(ctx, "create campaign", 0, chain.CreatedCampaignID, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.CreateCampaign(ctx, sub, in)
	})
}

func (s *Session) UpdateCampaign(ctx context.Context, in chain.UpdateCampaignInput) (Result, error) {
	return s.run(ctx, "update campaign", in.CampaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.UpdateCampaign(ctx, sub, in)
	})
}

func (s *Session) SubmitProject(ctx context.Context, in chain.SubmitProjectInput) (Result, error) {
	return s.run(ctx, "submit project", in.CampaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.SubmitProject(ctx, sub, in)
	})
}

// UpdateProject reads the project first so that a name or description change on a project
// with votes fails locally instead of as a contract revert.
func (s *Session) UpdateProject(ctx context.Context, in chain.UpdateProjectInput) (Result, error) {
	return s.run(ctx, "update project", in.CampaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		current, err := s.cfg.Client.TryGetProject(ctx, in.CampaignID, in.ProjectID)
		if err != nil {
			return nil, err
		}
		if err := in.ValidateChange(current); err != nil {
			return nil, err
		}
		return s.cfg.Client.UpdateProject(ctx, sub, in)
	})
}

func (s *Session) ApproveProject(ctx context.Context, campaignID, projectID uint64) (Result, error) {
	return s.run(ctx, "approve project", campaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.ApproveProject(ctx, sub, campaignID, projectID)
	})
}

// Vote approves the token allowance and casts the vote as one action.
func (s *Session) Vote(ctx context.Context, in chain.VoteInput) (Result, error) {
	return s.run(ctx, "vote", in.CampaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.Vote(ctx, sub, in)
	})
}

func (s *Session) DistributeFunds(ctx context.Context, campaignID uint64) (Result, error) {
	return s.run(ctx, "distribute funds", campaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.DistributeFunds(ctx, sub, campaignID)
	})
}

func (s *Session) AddAdmin(ctx context.Context, campaignID uint64, address string) (Result, error) {
	return s.run(ctx, "add admin", campaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.AddAdmin(ctx, sub, campaignID, address)
	})
}

func (s *Session) RemoveAdmin(ctx context.Context, campaignID uint64, address string) (Result, error) {
	return s.run(ctx, "remove admin", campaignID, nil, func(ctx context.Context, sub chain.Submitter) (*types.Receipt, error) {
		return s.cfg.Client.RemoveAdmin(ctx, sub, campaignID, address)
	})
}

// WithdrawFees is not tied to a campaign, so nothing is refreshed afterwards.
func (s *Session) WithdrawFees(ctx context.Context, recipient string, amount *big.Int) (Result, error) {
	if err := s.cfg.Tx.Reset(); err != nil {
		return Result{State: s.cfg.Tx.State()}, err
	}
	receipt, err := s.cfg.Client.WithdrawFees(ctx, s.cfg.Tx, recipient, amount)
	return Result{Receipt: receipt, State: s.cfg.Tx.State()}, err
}
