package watcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/strangelove-ventures/fundlens/aggregate"
	"github.com/strangelove-ventures/fundlens/chain"
	"github.com/strangelove-ventures/fundlens/metrics"
	"github.com/strangelove-ventures/fundlens/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Watcher periodically re-reads every campaign of a funding contract and runs a set of actions
// against each refreshed view.
type Watcher struct {
	Session *session.Session

	log *zap.Logger
}

// CampaignAction is run for every campaign on each refresh.
type CampaignAction interface {
	Name() string
	Execute(ctx context.Context, w *Watcher, view aggregate.CampaignView) error
}

func NewWatcher(log *zap.Logger, s *session.Session) *Watcher {
	return &Watcher{
		Session: s,
		log:     log.With(zap.String("sys", "watcher")),
	}
}

// Logger returns the watcher's logger for use by actions.
func (w *Watcher) Logger() *zap.Logger {
	return w.log
}

// ForEachCampaign builds the view of each already read campaign using at most
// concurrentCampaigns goroutines and runs every action on it. Only the projects are read again,
// and those reads carry the chain client's own retries. Campaigns whose projects cannot be read
// are returned in ascending order; failing actions are only logged.
func (w *Watcher) ForEachCampaign(ctx context.Context, campaigns []chain.Campaign, actions []CampaignAction, concurrentCampaigns uint) ([]uint64, error) {
	if concurrentCampaigns == 0 {
		concurrentCampaigns = 1
	}
	var (
		mutex           sync.Mutex
		failedCampaigns = make([]uint64, 0)
		sem             = make(chan struct{}, concurrentCampaigns)
		eg, egCtx       = errgroup.WithContext(ctx)
	)

	for _, c := range campaigns {
		c := c
		if err := egCtx.Err(); err != nil {
			_ = eg.Wait()
			return nil, err
		}
		select {
		case sem <- struct{}{}:
		case <-egCtx.Done():
			_ = eg.Wait()
			return nil, egCtx.Err()
		}

		eg.Go(func() error {
			defer func() { <-sem }()

			view, err := w.Session.BuildView(egCtx, c)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				w.log.Info(
					"Failed to refresh campaign",
					zap.Uint64("campaign_id", c.ID),
					zap.Error(err),
				)
				mutex.Lock()
				failedCampaigns = append(failedCampaigns, c.ID)
				mutex.Unlock()
				return nil
			}

			for _, a := range actions {
				if err := a.Execute(egCtx, w, view); err != nil {
					w.log.Warn(
						"Failed to execute campaign action",
						zap.String("campaign_action_name", a.Name()),
						zap.Uint64("campaign_id", c.ID),
						zap.Error(err),
					)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(failedCampaigns, func(i, j int) bool { return failedCampaigns[i] < failedCampaigns[j] })
	return failedCampaigns, nil
}

// RefreshAll runs a single pass over every campaign the contract knows about.
func (w *Watcher) RefreshAll(ctx context.Context, actions []CampaignAction, concurrentCampaigns uint) error {
	start := time.Now()
	defer func() {
		metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}()

	campaigns, err := w.Session.Client().TryListCampaigns(ctx)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to list campaigns: %w", err)
	}

	failed, err := w.ForEachCampaign(ctx, campaigns, actions, concurrentCampaigns)
	if err != nil {
		metrics.RefreshTotal.WithLabelValues("error").Inc()
		return err
	}
	if len(failed) > 0 {
		metrics.RefreshTotal.WithLabelValues("partial").Inc()
		w.log.Warn("Some campaigns could not be refreshed", zap.Uint64s("campaign_ids", failed))
		return nil
	}

	metrics.RefreshTotal.WithLabelValues("success").Inc()
	w.log.Info("Refreshed campaigns", zap.Int("count", len(campaigns)))
	return nil
}

// Run refreshes every campaign immediately and then once per interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, actions []CampaignAction, concurrentCampaigns uint) error {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.Name())
	}
	w.log.Info(
		"Starting campaign watcher",
		zap.Duration("interval", interval),
		zap.Strings("actions", names),
	)

	ticker := w.Session.Clock().NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.RefreshAll(ctx, actions, concurrentCampaigns); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn("Failed to refresh campaigns", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}
