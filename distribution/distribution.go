// Package distribution computes how a campaign's funds are split between the platform, the
// campaign admin and the winning projects. The arithmetic mirrors the funding contract's
// distributeFunds call and is shown to users before it executes, so every step uses integer
// floor division on base token units.
package distribution

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// PlatformFeePercentage is the fixed platform cut taken from every campaign.
	PlatformFeePercentage = 15
	// MaxAdminFeePercentage is the highest admin fee a campaign can configure.
	MaxAdminFeePercentage = 30
)

var (
	ErrNegativeFunds    = errors.New("total funds must not be negative")
	ErrAdminFeeTooHigh  = fmt.Errorf("admin fee percentage must not exceed %d", MaxAdminFeePercentage)
	ErrNegativeVotes    = errors.New("vote count must not be negative")
	ErrDuplicateProject = errors.New("project appears more than once in ranking")
)

// Entry is one approved project in the chain's ranking order.
type Entry struct {
	ProjectID uint64
	VoteCount *big.Int
}

// Input is everything the calculation depends on. Projects must contain approved projects only,
// ranked in the order the contract uses for payouts.
type Input struct {
	TotalFunds               *big.Int
	AdminFeePercentage       uint64
	UseQuadraticDistribution bool
	// MaxWinners limits payouts to the top ranked projects. 0 means unlimited.
	MaxWinners uint64
	Projects   []Entry
}

// Validate reports inputs the contract would never produce.
func (in Input) Validate() error {
	if in.TotalFunds != nil && in.TotalFunds.Sign() < 0 {
		return ErrNegativeFunds
	}
	if in.AdminFeePercentage > MaxAdminFeePercentage {
		return ErrAdminFeeTooHigh
	}
	seen := make(map[uint64]struct{}, len(in.Projects))
	for _, p := range in.Projects {
		if p.VoteCount != nil && p.VoteCount.Sign() < 0 {
			return fmt.Errorf("project %d: %w", p.ProjectID, ErrNegativeVotes)
		}
		if _, ok := seen[p.ProjectID]; ok {
			return fmt.Errorf("project %d: %w", p.ProjectID, ErrDuplicateProject)
		}
		seen[p.ProjectID] = struct{}{}
	}
	return nil
}

// Share is the outcome for a single project.
type Share struct {
	ProjectID uint64
	// Rank is the 1-based position in the input ranking.
	Rank       int
	VoteCount  *big.Int
	Weight     *big.Int
	FundsShare *big.Int
	Winner     bool
}

// Result is the full breakdown of a distribution.
// PlatformFee + AdminFee + sum(FundsShare) + UnallocatedRemainder == TotalFunds.
type Result struct {
	TotalFunds    *big.Int
	PlatformFee   *big.Int
	AdminFee      *big.Int
	Distributable *big.Int
	TotalWeight   *big.Int
	Allocated     *big.Int
	// UnallocatedRemainder is the rounding dust left by floor division, or all of
	// Distributable when no project has votes. It is never assigned to a project here.
	UnallocatedRemainder *big.Int
	Quadratic            bool
	// Shares holds every input project in rank order, winners and non-winners alike.
	Shares []Share
}

// Share looks up the outcome for projectID.
func (r Result) Share(projectID uint64) (Share, bool) {
	for _, s := range r.Shares {
		if s.ProjectID == projectID {
			return s, true
		}
	}
	return Share{}, false
}

// Winners returns the shares of projects selected for payout, in rank order.
func (r Result) Winners() []Share {
	var winners []Share
	for _, s := range r.Shares {
		if s.Winner {
			winners = append(winners, s)
		}
	}
	return winners
}

// Compute runs the distribution:
//
//  1. platform fee = floor(total * 15 / 100)
//  2. admin fee = floor(total * adminFee / 100)
//  3. distributable = total - platform fee - admin fee
//  4. winners are the top MaxWinners ranked projects (all when 0) with votes > 0
//  5. weight is the vote count, or floor(sqrt(vote count)) when quadratic
//  6. share = floor(distributable * weight / total weight)
//  7. the remainder is reported, not assigned
func Compute(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	total := orZero(in.TotalFunds)
	platformFee := percentOf(total, PlatformFeePercentage)
	adminFee := percentOf(total, in.AdminFeePercentage)
	distributable := new(big.Int).Sub(total, platformFee)
	distributable.Sub(distributable, adminFee)

	res := Result{
		TotalFunds:    new(big.Int).Set(total),
		PlatformFee:   platformFee,
		AdminFee:      adminFee,
		Distributable: distributable,
		TotalWeight:   new(big.Int),
		Allocated:     new(big.Int),
		Quadratic:     in.UseQuadraticDistribution,
		Shares:        make([]Share, 0, len(in.Projects)),
	}

	for i, p := range in.Projects {
		votes := orZero(p.VoteCount)
		s := Share{
			ProjectID:  p.ProjectID,
			Rank:       i + 1,
			VoteCount:  new(big.Int).Set(votes),
			Weight:     new(big.Int),
			FundsShare: new(big.Int),
		}
		inCutoff := in.MaxWinners == 0 || uint64(i) < in.MaxWinners
		if inCutoff && votes.Sign() > 0 {
			s.Winner = true
			s.Weight = weight(votes, in.UseQuadraticDistribution)
			res.TotalWeight.Add(res.TotalWeight, s.Weight)
		}
		res.Shares = append(res.Shares, s)
	}

	if res.TotalWeight.Sign() > 0 {
		for i := range res.Shares {
			s := &res.Shares[i]
			if !s.Winner {
				continue
			}
			s.FundsShare.Mul(distributable, s.Weight)
			s.FundsShare.Quo(s.FundsShare, res.TotalWeight)
			res.Allocated.Add(res.Allocated, s.FundsShare)
		}
	}

	res.UnallocatedRemainder = new(big.Int).Sub(distributable, res.Allocated)
	return res, nil
}

// weight is the vote count under linear distribution and its integer square root under
// quadratic distribution.
func weight(votes *big.Int, quadratic bool) *big.Int {
	if quadratic {
		return new(big.Int).Sqrt(votes)
	}
	return new(big.Int).Set(votes)
}

// percentOf returns floor(v * pct / 100). v is never negative here.
func percentOf(v *big.Int, pct uint64) *big.Int {
	out := new(big.Int).Mul(v, new(big.Int).SetUint64(pct))
	return out.Quo(out, big.NewInt(100))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
