// Package aggregate turns raw campaign, project and vote records read from the funding contract
// into the derived views shown to users. Every function is a pure function of its inputs and
// the supplied time.
package aggregate

import (
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/strangelove-ventures/fundlens/chain"
)

// DefaultTokenDecimals is the base unit scale of the vote token.
const DefaultTokenDecimals = 18

// Status is the lifecycle stage of a campaign.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
)

// DeriveStatus returns the status of c at now. A campaign deactivated by its admin before its
// end time is reported as ended, the same as one that expired.
func DeriveStatus(c chain.Campaign, now time.Time) Status {
	n := now.Unix()
	switch {
	case n < c.StartTime:
		return StatusUpcoming
	case c.Active && n <= c.EndTime:
		return StatusActive
	default:
		return StatusEnded
	}
}

// Remaining is the time left until a campaign ends, truncated to whole minutes.
type Remaining struct {
	Days    int64 `json:"days" yaml:"days"`
	Hours   int64 `json:"hours" yaml:"hours"`
	Minutes int64 `json:"minutes" yaml:"minutes"`
}

// TimeRemaining splits the seconds between now and the campaign end into days, hours and
// minutes. It is zero once the end time has passed.
func TimeRemaining(c chain.Campaign, now time.Time) Remaining {
	secs := c.EndTime - now.Unix()
	if secs < 0 {
		secs = 0
	}
	return Remaining{
		Days:    secs / 86400,
		Hours:   secs % 86400 / 3600,
		Minutes: secs % 3600 / 60,
	}
}

// ProjectStats summarises the projects of one campaign.
type ProjectStats struct {
	Total    int `json:"total" yaml:"total"`
	Approved int `json:"approved" yaml:"approved"`
	Pending  int `json:"pending" yaml:"pending"`
	// TotalVotes is the sum of vote counts in whole token units.
	TotalVotes decimal.Decimal `json:"totalVotes" yaml:"total-votes"`
}

// AggregateProjectStats partitions projects by approval and sums their vote counts, scaled down
// by 10^decimals.
func AggregateProjectStats(projects []chain.Project, decimals int32) ProjectStats {
	stats := ProjectStats{Total: len(projects)}
	sum := new(big.Int)
	for _, p := range projects {
		if p.Approved {
			stats.Approved++
		} else {
			stats.Pending++
		}
		if p.VoteCount != nil {
			sum.Add(sum, p.VoteCount)
		}
	}
	stats.TotalVotes = ToUnits(sum, decimals)
	return stats
}

// ToUnits converts an amount in base units to whole token units.
func ToUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// LeaderboardEntry is the total a voter contributed to one campaign.
type LeaderboardEntry struct {
	CampaignID uint64   `json:"campaignId" yaml:"campaign-id"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Amount     *big.Int `json:"amount" yaml:"amount"`
	VoteCount  *big.Int `json:"voteCount" yaml:"vote-count"`
	Votes      int      `json:"votes" yaml:"votes"`
}

// BuildLeaderboard groups votes by campaign and orders the campaigns by the amount contributed,
// largest first. Campaigns with equal amounts keep the order in which they first appear in votes.
func BuildLeaderboard(votes []chain.Vote, campaigns []chain.Campaign) []LeaderboardEntry {
	names := make(map[uint64]string, len(campaigns))
	for _, c := range campaigns {
		names[c.ID] = c.Name
	}

	index := make(map[uint64]int)
	entries := make([]LeaderboardEntry, 0)
	for _, v := range votes {
		i, ok := index[v.CampaignID]
		if !ok {
			i = len(entries)
			index[v.CampaignID] = i
			entries = append(entries, LeaderboardEntry{
				CampaignID: v.CampaignID,
				Name:       names[v.CampaignID],
				Amount:     new(big.Int),
				VoteCount:  new(big.Int),
			})
		}
		e := &entries[i]
		if v.Amount != nil {
			e.Amount.Add(e.Amount, v.Amount)
		}
		if v.VoteCount != nil {
			e.VoteCount.Add(e.VoteCount, v.VoteCount)
		}
		e.Votes++
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Amount.Cmp(entries[j].Amount) > 0
	})
	return entries
}

// VoteSummary is the total of a voter's repeated votes for one project.
type VoteSummary struct {
	Amount    *big.Int `json:"amount" yaml:"amount"`
	VoteCount *big.Int `json:"voteCount" yaml:"vote-count"`
	Votes     int      `json:"votes" yaml:"votes"`
}

// UserVoteSummary sums the votes cast for projectID in campaignID.
func UserVoteSummary(votes []chain.Vote, campaignID, projectID uint64) VoteSummary {
	s := VoteSummary{Amount: new(big.Int), VoteCount: new(big.Int)}
	for _, v := range votes {
		if v.CampaignID != campaignID || v.ProjectID != projectID {
			continue
		}
		if v.Amount != nil {
			s.Amount.Add(s.Amount, v.Amount)
		}
		if v.VoteCount != nil {
			s.VoteCount.Add(s.VoteCount, v.VoteCount)
		}
		s.Votes++
	}
	return s
}
