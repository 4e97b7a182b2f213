package chain

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// FundingABI is the ABI of the campaign funding contract.
//
//go:embed abi/funding.json
var FundingABI string

// ERC20ABI is the subset of the ERC-20 ABI used for vote token allowances.
//
//go:embed abi/erc20.json
var ERC20ABI string

// receiptPollInterval is how often WaitForReceipt asks the node for a receipt.
var receiptPollInterval = time.Second

// Contract is the read/write primitive over a single deployed contract.
type Contract interface {
	// Read calls a view function and returns its unpacked outputs in declaration order.
	Read(ctx context.Context, method string, args ...any) ([]any, error)
	// Write signs and submits a transaction calling method, sending value wei when non-nil.
	Write(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error)
	// WaitForReceipt blocks until the transaction is mined or ctx is done.
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// EVMContract implements Contract over a JSON-RPC node using go-ethereum's ABI bindings.
type EVMContract struct {
	address common.Address
	backend *ethclient.Client
	bound   *bind.BoundContract
	signer  *bind.TransactOpts
}

// NewEVMContract binds the contract at address with the given ABI. signer may be nil, in which
// case the contract is read only and Write returns ErrNoSigner.
func NewEVMContract(backend *ethclient.Client, address common.Address, abiJSON string, signer *bind.TransactOpts) (*EVMContract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract abi: %w", err)
	}

	return &EVMContract{
		address: address,
		backend: backend,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		signer:  signer,
	}, nil
}

// NewSigner builds transact options from a hex encoded private key for the given chain.
func NewSigner(privateKeyHex string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return opts, nil
}

// Address returns the address the contract is bound to.
func (c *EVMContract) Address() common.Address {
	return c.address
}

func (c *EVMContract) Read(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

func (c *EVMContract) Write(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrNoSigner
	}

	opts := *c.signer
	opts.Context = ctx
	opts.Value = value

	tx, err := c.bound.Transact(&opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("transact %s: %w", method, err)
	}
	return tx.Hash(), nil
}

func (c *EVMContract) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
