// Package verify talks to the wallet verification service that gates voting.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/strangelove-ventures/fundlens/chain"
	"github.com/strangelove-ventures/fundlens/fetch"
	"go.uber.org/zap"
)

const (
	statusPath     = "/api/verify"
	goodDollarPath = "/api/verify-gooddollar"
)

// VerificationStatus is the service's view of a wallet.
type VerificationStatus struct {
	Wallet   string `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Verified bool   `json:"verified" yaml:"verified"`
	Status   string `json:"status,omitempty" yaml:"status,omitempty"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// GoodDollarRequest reports the outcome of a GoodDollar identity check for a wallet.
type GoodDollarRequest struct {
	Wallet             string `json:"wallet"`
	UserID             string `json:"userId"`
	VerificationStatus bool   `json:"verificationStatus"`
	// Root is the whitelisted root address when the wallet is connected to another identity.
	Root string `json:"root,omitempty"`
}

// GoodDollarResponse is the service's acknowledgement of a GoodDollarRequest.
type GoodDollarResponse struct {
	Success bool   `json:"success" yaml:"success"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

type Config struct {
	Logger  *zap.Logger
	BaseURL string
	Fetcher *fetch.Fetcher
	// Options applies to every call. Zero value means fetch.DefaultOptions.
	Options fetch.Options
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		return errors.New("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.NewFetcher(cfg.Logger, nil)
	}
	if cfg.Options == (fetch.Options{}) {
		cfg.Options = fetch.DefaultOptions()
	}
	return nil
}

// Client calls the verification service. Requests carry no credentials.
type Client struct {
	cfg  Config
	base string
	log  *zap.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		base: strings.TrimRight(cfg.BaseURL, "/"),
		log:  cfg.Logger.With(zap.String("sys", "verify")),
	}, nil
}

// Status asks whether wallet has been verified.
func (c *Client) Status(ctx context.Context, wallet string) (VerificationStatus, error) {
	addr, err := chain.ParseAddress("wallet", wallet)
	if err != nil {
		return VerificationStatus{}, err
	}

	q := url.Values{"wallet": []string{addr.Hex()}}
	resp, err := c.cfg.Fetcher.Get(ctx, c.base+statusPath+"?"+q.Encode(), c.cfg.Options)
	if err != nil {
		return VerificationStatus{}, fmt.Errorf("verification status for %s: %w", addr.Hex(), err)
	}

	var status VerificationStatus
	if err := resp.Decode(&status); err != nil {
		return VerificationStatus{}, err
	}
	if status.Wallet == "" {
		status.Wallet = addr.Hex()
	}
	c.log.Debug("Fetched verification status", zap.String("wallet", addr.Hex()), zap.Bool("verified", status.Verified))
	return status, nil
}

// SubmitGoodDollar posts the result of a GoodDollar check.
func (c *Client) SubmitGoodDollar(ctx context.Context, req GoodDollarRequest) (GoodDollarResponse, error) {
	addr, err := chain.ParseAddress("wallet", req.Wallet)
	if err != nil {
		return GoodDollarResponse{}, err
	}
	req.Wallet = addr.Hex()
	if req.Root != "" {
		root, err := chain.ParseAddress("root", req.Root)
		if err != nil {
			return GoodDollarResponse{}, err
		}
		req.Root = root.Hex()
	}
	if strings.TrimSpace(req.UserID) == "" {
		return GoodDollarResponse{}, &chain.ValidationError{Field: "user id", Reason: "must not be empty"}
	}

	resp, err := c.cfg.Fetcher.PostJSON(ctx, c.base+goodDollarPath, req, c.cfg.Options)
	if err != nil {
		return GoodDollarResponse{}, fmt.Errorf("gooddollar verification for %s: %w", addr.Hex(), err)
	}

	var out GoodDollarResponse
	if len(resp.Body) > 0 {
		if err := resp.Decode(&out); err != nil {
			return GoodDollarResponse{}, err
		}
	}
	c.log.Info(
		"Submitted GoodDollar verification",
		zap.String("wallet", addr.Hex()),
		zap.Bool("verification_status", req.VerificationStatus),
		zap.Bool("success", out.Success),
	)
	return out, nil
}
