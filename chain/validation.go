package chain

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/strangelove-ventures/fundlens/distribution"
)

// MaxAdminFeePercentage is the highest admin fee the contract accepts.
const MaxAdminFeePercentage = distribution.MaxAdminFeePercentage

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNoSigner is returned by writes on a contract bound without a private key.
	ErrNoSigner = errors.New("no signer configured, writes are disabled")

	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidationError describes a rejected input field. It is produced before anything is sent
// to the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(reason, args...)}
}

// ParseAddress validates that s is 0x followed by 40 hex characters and converts it.
func ParseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return common.Address{}, invalid(field, "%q is not a 0x-prefixed 20 byte hex address", s)
	}
	return common.HexToAddress(s), nil
}

// CreateCampaignInput holds the user supplied fields of a new campaign.
type CreateCampaignInput struct {
	Name                     string
	Description              string
	Logo                     string
	DemoVideo                string
	StartTime                int64
	EndTime                  int64
	AdminFeePercentage       uint64
	MaxWinners               uint64
	UseQuadraticDistribution bool
}

func (in CreateCampaignInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if in.StartTime <= 0 {
		return invalid("start time", "must be a positive unix timestamp")
	}
	if in.EndTime <= in.StartTime {
		return invalid("end time", "must be after start time")
	}
	if in.AdminFeePercentage > MaxAdminFeePercentage {
		return invalid("admin fee percentage", "%d exceeds the maximum of %d", in.AdminFeePercentage, MaxAdminFeePercentage)
	}
	if in.AdminFeePercentage+distribution.PlatformFeePercentage > 100 {
		return invalid("admin fee percentage", "admin and platform fees exceed 100%%")
	}
	if err := validateURL("logo", in.Logo); err != nil {
		return err
	}
	return validateURL("demo video", in.DemoVideo)
}

// UpdateCampaignInput replaces the editable fields of an existing campaign.
type UpdateCampaignInput struct {
	CampaignID uint64
	CreateCampaignInput
}

// SubmitProjectInput holds the user supplied fields of a new project.
type SubmitProjectInput struct {
	CampaignID  uint64
	Name        string
	Description string
	GithubLink  string
	SocialLink  string
	TestingLink string
	Logo        string
	DemoVideo   string
	Contracts   []string
}

func (in SubmitProjectInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "must not be empty")
	}
	links := []struct{ field, value string }{
		{"github link", in.GithubLink},
		{"social link", in.SocialLink},
		{"testing link", in.TestingLink},
		{"logo", in.Logo},
		{"demo video", in.DemoVideo},
	}
	for _, l := range links {
		if err := validateURL(l.field, l.value); err != nil {
			return err
		}
	}
	_, err := in.contractAddresses()
	return err
}

func (in SubmitProjectInput) contractAddresses() ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(in.Contracts))
	for i, c := range in.Contracts {
		addr, err := ParseAddress(fmt.Sprintf("contract address %d", i), c)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// UpdateProjectInput replaces the editable fields of an existing project.
type UpdateProjectInput struct {
	ProjectID uint64
	SubmitProjectInput
}

// ValidateChange rejects edits to the name or description of a project that has already
// received votes. Links, media and contracts stay editable.
func (in UpdateProjectInput) ValidateChange(current Project) error {
	if current.VoteCount == nil || current.VoteCount.Sign() == 0 {
		return nil
	}
	if strings.TrimSpace(in.Name) != strings.TrimSpace(current.Name) {
		return invalid("name", "project %d has votes, its name can no longer change", current.ID)
	}
	if strings.TrimSpace(in.Description) != strings.TrimSpace(current.Description) {
		return invalid("description", "project %d has votes, its description can no longer change", current.ID)
	}
	return nil
}

// VoteInput is a vote of Amount tokens for a project.
type VoteInput struct {
	CampaignID uint64
	ProjectID  uint64
	Amount     *big.Int
}

func (in VoteInput) Validate() error {
	if in.Amount == nil || in.Amount.Sign() <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	return nil
}

// validateURL accepts an empty value or an absolute http(s) or ipfs URL.
func validateURL(field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	u, err := url.ParseRequestURI(v)
	if err != nil {
		return invalid(field, "%q is not a valid url", v)
	}
	switch u.Scheme {
	case "http", "https", "ipfs":
		return nil
	}
	return invalid(field, "unsupported url scheme %q", u.Scheme)
}
