package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Campaign is a funding round as stored by the funding contract.
type Campaign struct {
	ID                       uint64         `json:"id" yaml:"id"`
	Admin                    common.Address `json:"admin" yaml:"admin"`
	Name                     string         `json:"name" yaml:"name"`
	Description              string         `json:"description" yaml:"description"`
	Logo                     string         `json:"logo,omitempty" yaml:"logo,omitempty"`
	DemoVideo                string         `json:"demoVideo,omitempty" yaml:"demo-video,omitempty"`
	StartTime                int64          `json:"startTime" yaml:"start-time"`
	EndTime                  int64          `json:"endTime" yaml:"end-time"`
	AdminFeePercentage       uint64         `json:"adminFeePercentage" yaml:"admin-fee-percentage"`
	VoteMultiplier           uint64         `json:"voteMultiplier" yaml:"vote-multiplier"`
	MaxWinners               uint64         `json:"maxWinners" yaml:"max-winners"`
	UseQuadraticDistribution bool           `json:"useQuadraticDistribution" yaml:"use-quadratic-distribution"`
	Active                   bool           `json:"active" yaml:"active"`
	TotalFunds               *big.Int       `json:"totalFunds" yaml:"total-funds"`
}

// Project is an entry submitted into a campaign.
type Project struct {
	ID            uint64           `json:"id" yaml:"id"`
	CampaignID    uint64           `json:"campaignId" yaml:"campaign-id"`
	Owner         common.Address   `json:"owner" yaml:"owner"`
	Name          string           `json:"name" yaml:"name"`
	Description   string           `json:"description" yaml:"description"`
	GithubLink    string           `json:"githubLink,omitempty" yaml:"github-link,omitempty"`
	SocialLink    string           `json:"socialLink,omitempty" yaml:"social-link,omitempty"`
	TestingLink   string           `json:"testingLink,omitempty" yaml:"testing-link,omitempty"`
	Logo          string           `json:"logo,omitempty" yaml:"logo,omitempty"`
	DemoVideo     string           `json:"demoVideo,omitempty" yaml:"demo-video,omitempty"`
	Contracts     []common.Address `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	Approved      bool             `json:"approved" yaml:"approved"`
	VoteCount     *big.Int         `json:"voteCount" yaml:"vote-count"`
	FundsReceived *big.Int         `json:"fundsReceived" yaml:"funds-received"`
}

// Vote is a single token-weighted vote. VoteCount is Amount multiplied by the campaign's vote multiplier.
type Vote struct {
	Voter      common.Address `json:"voter" yaml:"voter"`
	CampaignID uint64         `json:"campaignId" yaml:"campaign-id"`
	ProjectID  uint64         `json:"projectId" yaml:"project-id"`
	Amount     *big.Int       `json:"amount" yaml:"amount"`
	VoteCount  *big.Int       `json:"voteCount" yaml:"vote-count"`
}

// decodeCampaign maps the outputs of getCampaign onto a Campaign.
func decodeCampaign(out []any) (Campaign, error) {
	d := decoder{out: out, method: "getCampaign"}
	c := Campaign{
		ID:                       d.uint64(0),
		Admin:                    d.address(1),
		Name:                     d.string(2),
		Description:              d.string(3),
		Logo:                     d.string(4),
		DemoVideo:                d.string(5),
		StartTime:                d.int64(6),
		EndTime:                  d.int64(7),
		AdminFeePercentage:       d.uint64(8),
		VoteMultiplier:           d.uint64(9),
		MaxWinners:               d.uint64(10),
		UseQuadraticDistribution: d.bool(11),
		Active:                   d.bool(12),
		TotalFunds:               d.big(13),
	}
	return c, d.err
}

// decodeProject maps the outputs of getProject onto a Project.
func decodeProject(out []any) (Project, error) {
	d := decoder{out: out, method: "getProject"}
	p := Project{
		ID:            d.uint64(0),
		CampaignID:    d.uint64(1),
		Owner:         d.address(2),
		Name:          d.string(3),
		Description:   d.string(4),
		GithubLink:    d.string(5),
		SocialLink:    d.string(6),
		TestingLink:   d.string(7),
		Logo:          d.string(8),
		DemoVideo:     d.string(9),
		Contracts:     d.addresses(10),
		Approved:      d.bool(11),
		VoteCount:     d.big(12),
		FundsReceived: d.big(13),
	}
	return p, d.err
}

// decodeVoteHistory maps the parallel arrays returned by getUserVoteHistory onto votes.
func decodeVoteHistory(voter common.Address, out []any) ([]Vote, error) {
	d := decoder{out: out, method: "getUserVoteHistory"}
	campaignIDs := d.bigs(0)
	projectIDs := d.bigs(1)
	amounts := d.bigs(2)
	voteCounts := d.bigs(3)
	if d.err != nil {
		return nil, d.err
	}
	n := len(campaignIDs)
	if len(projectIDs) != n || len(amounts) != n || len(voteCounts) != n {
		return nil, fmt.Errorf("getUserVoteHistory returned arrays of mismatched length")
	}

	votes := make([]Vote, 0, n)
	for i := 0; i < n; i++ {
		votes = append(votes, Vote{
			Voter:      voter,
			CampaignID: campaignIDs[i].Uint64(),
			ProjectID:  projectIDs[i].Uint64(),
			Amount:     amounts[i],
			VoteCount:  voteCounts[i],
		})
	}
	return votes, nil
}

// decoder reads typed values out of ABI-unpacked outputs, keeping the first error.
type decoder struct {
	out    []any
	method string
	err    error
}

func (d *decoder) at(i int) any {
	if d.err != nil {
		return nil
	}
	if i >= len(d.out) {
		d.err = fmt.Errorf("%s: expected at least %d outputs, got %d", d.method, i+1, len(d.out))
		return nil
	}
	return d.out[i]
}

func (d *decoder) fail(i int, want string, v any) {
	if d.err == nil {
		d.err = fmt.Errorf("%s: output %d is %T, expected %s", d.method, i, v, want)
	}
}

func (d *decoder) big(i int) *big.Int {
	v := d.at(i)
	if v == nil {
		return new(big.Int)
	}
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(n)
	case uint8:
		return new(big.Int).SetUint64(uint64(n))
	case uint64:
		return new(big.Int).SetUint64(n)
	case int64:
		return big.NewInt(n)
	case int:
		return big.NewInt(int64(n))
	}
	d.fail(i, "integer", v)
	return new(big.Int)
}

func (d *decoder) uint64(i int) uint64 {
	n := d.big(i)
	if d.err == nil && !n.IsUint64() {
		d.err = fmt.Errorf("%s: output %d does not fit in uint64", d.method, i)
	}
	return n.Uint64()
}

func (d *decoder) int64(i int) int64 {
	n := d.big(i)
	if d.err == nil && !n.IsInt64() {
		d.err = fmt.Errorf("%s: output %d does not fit in int64", d.method, i)
	}
	return n.Int64()
}

func (d *decoder) string(i int) string {
	v := d.at(i)
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(i, "string", v)
	}
	return s
}

func (d *decoder) bool(i int) bool {
	v := d.at(i)
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(i, "bool", v)
	}
	return b
}

func (d *decoder) address(i int) common.Address {
	v := d.at(i)
	if v == nil {
		return common.Address{}
	}
	a, ok := v.(common.Address)
	if !ok {
		d.fail(i, "address", v)
	}
	return a
}

func (d *decoder) addresses(i int) []common.Address {
	v := d.at(i)
	if v == nil {
		return nil
	}
	a, ok := v.([]common.Address)
	if !ok {
		d.fail(i, "address[]", v)
	}
	return a
}

func (d *decoder) bigs(i int) []*big.Int {
	v := d.at(i)
	if v == nil {
		return nil
	}
	b, ok := v.([]*big.Int)
	if !ok {
		d.fail(i, "uint256[]", v)
	}
	return b
}
