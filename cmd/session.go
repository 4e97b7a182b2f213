package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strangelove-ventures/fundlens/chain"
	"github.com/strangelove-ventures/fundlens/session"
	"github.com/strangelove-ventures/fundlens/verify"
)

// networkSession is a session bound to a dialed RPC node.
type networkSession struct {
	*session.Session
	Network *NetworkConfig

	backend *ethclient.Client
}

func (n *networkSession) Close() {
	n.backend.Close()
}

// ExplorerURL links to hash on the network's block explorer. Empty when no explorer is configured.
func (n *networkSession) ExplorerURL(hash common.Hash) string {
	return chain.ExplorerTxURL(n.Network.Explorer, hash)
}

// newSession dials the selected network and binds the funding and token contracts.
// Writes need signer; the private key is read from FUNDLENS_PRIVATE_KEY.
func (a *appState) newSession(ctx context.Context, signer bool) (*networkSession, error) {
	network, err := a.Config.Network(a.Viper.GetString(flagNetwork))
	if err != nil {
		return nil, err
	}
	if err := network.Validate(); err != nil {
		return nil, err
	}

	log := a.Log.With(zap.String("network", network.Name))

	fundAddr, err := chain.ParseAddress("contract", network.Contract)
	if err != nil {
		return nil, err
	}
	campaignFee, projectFee, err := network.Fees()
	if err != nil {
		return nil, err
	}

	backend, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", network.RPCURL, err)
	}

	var opts *bind.TransactOpts
	if signer {
		if opts, err = a.signer(ctx, backend, network); err != nil {
			backend.Close()
			return nil, err
		}
		log.Debug("Signer configured", zap.String("from", opts.From.Hex()))
	}

	fund, err := chain.NewEVMContract(backend, fundAddr, chain.FundingABI, opts)
	if err != nil {
		backend.Close()
		return nil, err
	}

	cfg := chain.ClientConfig{
		Logger:              log,
		Fund:                fund,
		FundAddress:         fundAddr,
		Concurrency:         a.Config.Reads.Concurrency,
		ReadAttempts:        a.Config.Reads.Attempts,
		CampaignCreationFee: campaignFee,
		ProjectCreationFee:  projectFee,
	}
	if network.Token != "" {
		tokenAddr, err := chain.ParseAddress("token", network.Token)
		if err != nil {
			backend.Close()
			return nil, err
		}
		token, err := chain.NewEVMContract(backend, tokenAddr, chain.ERC20ABI, opts)
		if err != nil {
			backend.Close()
			return nil, err
		}
		cfg.Token = token
	}
	if r := a.Config.Reads.RateLimit; r > 0 {
		burst := a.Config.Reads.Burst
		if burst < 1 {
			burst = 1
		}
		cfg.Limiter = rate.NewLimiter(rate.Limit(r), burst)
	}

	client, err := chain.NewClient(cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}

	s, err := session.New(session.Config{
		Logger:      log,
		Client:      client,
		Decimals:    network.TokenDecimals,
		Concurrency: int(a.Config.Reads.Concurrency),
	})
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &networkSession{Session: s, Network: network, backend: backend}, nil
}

func (a *appState) signer(ctx context.Context, backend *ethclient.Client, network *NetworkConfig) (*bind.TransactOpts, error) {
	key := a.Viper.GetString(envPrivateKey)
	if key == "" {
		return nil, errors.New("FUNDLENS_PRIVATE_KEY is not set, it is required to send transactions")
	}

	chainID := big.NewInt(network.ChainID)
	if network.ChainID == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query chain id: %w", err)
		}
		chainID = id
	}
	return chain.NewSigner(key, chainID)
}

func (a *appState) newVerifyClient() (*verify.Client, error) {
	if a.Config.Verify.URL == "" {
		return nil, errors.New("verify url is not configured, set verify.url in the config")
	}
	return verify.NewClient(verify.Config{
		Logger:  a.Log,
		BaseURL: a.Config.Verify.URL,
		Options: a.Config.Verify.FetchOptions(),
	})
}
