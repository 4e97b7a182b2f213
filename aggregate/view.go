package aggregate

import (
	"fmt"
	"math/big"
	"time"

	"github.com/strangelove-ventures/fundlens/chain"
	"github.com/strangelove-ventures/fundlens/distribution"
)

// CampaignView is everything derived for one campaign in a single read cycle.
type CampaignView struct {
	Campaign  chain.Campaign `json:"campaign" yaml:"campaign"`
	Status    Status         `json:"status" yaml:"status"`
	Remaining Remaining      `json:"remaining" yaml:"remaining"`
	// Deactivated is set when the admin switched the campaign off inside its voting window.
	// Status is still StatusEnded in that case.
	Deactivated bool         `json:"deactivated" yaml:"deactivated"`
	Stats       ProjectStats `json:"stats" yaml:"stats"`
	// Projects holds every project of the campaign in index order.
	Projects []chain.Project `json:"projects" yaml:"projects"`
	// Ranking holds the projects the contract ranks, in its ranking order.
	Ranking []chain.Project `json:"ranking" yaml:"ranking"`
	// Preview is the projected distribution of the current funds and votes. Nil when the
	// campaign data could not be turned into a valid calculation.
	Preview *distribution.Result `json:"preview,omitempty" yaml:"preview,omitempty"`
	// Reconciliation compares the preview with the funds each project received. Only set once
	// a distribution has paid anything out.
	Reconciliation *distribution.Reconciliation `json:"reconciliation,omitempty" yaml:"reconciliation,omitempty"`
}

// InputFromCampaign builds the distribution input for c from its projects in the contract's
// ranking order. Unapproved projects are not eligible and are dropped.
func InputFromCampaign(c chain.Campaign, sorted []chain.Project) distribution.Input {
	in := distribution.Input{
		TotalFunds:               c.TotalFunds,
		AdminFeePercentage:       c.AdminFeePercentage,
		UseQuadraticDistribution: c.UseQuadraticDistribution,
		MaxWinners:               c.MaxWinners,
		Projects:                 make([]distribution.Entry, 0, len(sorted)),
	}
	for _, p := range sorted {
		if !p.Approved {
			continue
		}
		in.Projects = append(in.Projects, distribution.Entry{ProjectID: p.ID, VoteCount: p.VoteCount})
	}
	return in
}

// FundsReceived collects the payouts recorded on each project. The second return value reports
// whether any project has been paid.
func FundsReceived(projects []chain.Project) (map[uint64]*big.Int, bool) {
	received := make(map[uint64]*big.Int, len(projects))
	paid := false
	for _, p := range projects {
		if p.FundsReceived == nil {
			continue
		}
		received[p.ID] = p.FundsReceived
		if p.FundsReceived.Sign() > 0 {
			paid = true
		}
	}
	return received, paid
}

// BuildCampaignView derives the view of c from all of its projects and the contract's ranking of
// them. The view is always returned; a non-nil error means the distribution preview was left out.
func BuildCampaignView(c chain.Campaign, all, ranked []chain.Project, now time.Time, decimals int32) (CampaignView, error) {
	n := now.Unix()
	view := CampaignView{
		Campaign:    c,
		Status:      DeriveStatus(c, now),
		Remaining:   TimeRemaining(c, now),
		Deactivated: !c.Active && n >= c.StartTime && n <= c.EndTime,
		Stats:       AggregateProjectStats(all, decimals),
		Projects:    all,
		Ranking:     ranked,
	}

	in := InputFromCampaign(c, ranked)
	preview, err := distribution.Compute(in)
	if err != nil {
		return view, fmt.Errorf("campaign %d: %w", c.ID, err)
	}
	view.Preview = &preview

	if received, paid := FundsReceived(all); paid {
		rec, err := distribution.Reconcile(in, received)
		if err != nil {
			return view, fmt.Errorf("campaign %d: %w", c.ID, err)
		}
		view.Reconciliation = &rec
	}
	return view, nil
}
