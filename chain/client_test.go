package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockContract struct {
	ReadFunc           func(ctx context.Context, method string, args ...any) ([]any, error)
	WriteFunc          func(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error)
	WaitForReceiptFunc func(ctx context.Context, hash common.Hash) (*types.Receipt, error)

	mu     sync.Mutex
	writes []string
}

func (m *mockContract) Read(ctx context.Context, method string, args ...any) ([]any, error) {
	return m.ReadFunc(ctx, method, args...)
}

func (m *mockContract) Write(ctx context.Context, value *big.Int, method string, args ...any) (common.Hash, error) {
	m.mu.Lock()
	m.writes = append(m.writes, method)
	m.mu.Unlock()
	if m.WriteFunc == nil {
		return common.HexToHash("0x01"), nil
	}
	return m.WriteFunc(ctx, value, method, args...)
}

func (m *mockContract) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if m.WaitForReceiptFunc == nil {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
	}
	return m.WaitForReceiptFunc(ctx, hash)
}

func (m *mockContract) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

// directSubmitter runs send and wait without lifecycle tracking and fails on reverted receipts.
type directSubmitter struct{}

func (directSubmitter) Submit(
	ctx context.Context,
	_ string,
	send func(ctx context.Context) (common.Hash, error),
	wait func(ctx context.Context, hash common.Hash) (*types.Receipt, error),
) (*types.Receipt, error) {
	hash, err := send(ctx)
	if err != nil {
		return nil, err
	}
	receipt, err := wait(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, errors.New("transaction reverted")
	}
	return receipt, nil
}

func campaignOutputs(id uint64, name string) []any {
	return []any{
		new(big.Int).SetUint64(id),
		common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		name,
		"description",
		"",
		"",
		big.NewInt(1_700_000_000),
		big.NewInt(1_700_086_400),
		big.NewInt(5),
		big.NewInt(1),
		big.NewInt(0),
		false,
		true,
		big.NewInt(1000),
	}
}

func projectOutputs(campaignID, id uint64, votes int64) []any {
	return []any{
		new(big.Int).SetUint64(id),
		new(big.Int).SetUint64(campaignID),
		common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		"project",
		"description",
		"https://github.com/example/project",
		"",
		"",
		"",
		"",
		[]common.Address{},
		true,
		big.NewInt(votes),
		big.NewInt(0),
	}
}

func newTestClient(t *testing.T, fund, token Contract) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Logger:       zaptest.NewLogger(t),
		Fund:         fund,
		Token:        token,
		FundAddress:  common.HexToAddress("0x00000000000000000000000000000000000000ff"),
		Concurrency:  2,
		ReadAttempts: 1,
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validate(t *testing.T) {
	_, err := NewClient(ClientConfig{Fund: &mockContract{}})
	require.Error(t, err)

	_, err = NewClient(ClientConfig{Logger: zaptest.NewLogger(t)})
	require.Error(t, err)

	cfg := ClientConfig{Logger: zaptest.NewLogger(t), Fund: &mockContract{}}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint(defaultConcurrency), cfg.Concurrency)
	assert.Equal(t, RtyAttNum, cfg.ReadAttempts)
}

func TestListCampaigns(t *testing.T) {
	fund := &mockContract{
		ReadFunc: func(_ context.Context, method string, args ...any) ([]any, error) {
			switch method {
			case "getCampaignCount":
				return []any{big.NewInt(5)}, nil
			case "getCampaign":
				id := args[0].(*big.Int).Uint64()
				return campaignOutputs(id, "campaign"), nil
			}
			return nil, errors.New("unexpected method " + method)
		},
	}
	c := newTestClient(t, fund, nil)

	campaigns := c.ListCampaigns(context.Background())
	require.Len(t, campaigns, 5)
	for i, campaign := range campaigns {
		assert.Equal(t, uint64(i), campaign.ID)
		assert.Equal(t, "campaign", campaign.Name)
		assert.True(t, campaign.Active)
		assert.Equal(t, int64(1000), campaign.TotalFunds.Int64())
		assert.Equal(t, uint64(5), campaign.AdminFeePercentage)
	}
}

func TestListCampaigns_FailSoft(t *testing.T) {
	fund := &mockContract{
		ReadFunc: func(_ context.Context, method string, args ...any) ([]any, error) {
			switch method {
			case "getCampaignCount":
				return []any{big.NewInt(3)}, nil
			case "getCampaign":
				if args[0].(*big.Int).Uint64() == 1 {
					return nil, errors.New("node unavailable")
				}
				return campaignOutputs(args[0].(*big.Int).Uint64(), "campaign"), nil
			}
			return nil, errors.New("unexpected method " + method)
		},
	}
	c := newTestClient(t, fund, nil)

	_, err := c.TryListCampaigns(context.Background())
	require.ErrorContains(t, err, "node unavailable")

	campaigns := c.ListCampaigns(context.Background())
	require.NotNil(t, campaigns)
	assert.Empty(t, campaigns)
}

func TestRead_Retries(t *testing.T) {
	var calls int
	fund := &mockContract{
		ReadFunc: func(_ context.Context, method string, _ ...any) ([]any, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("temporary")
			}
			return []any{big.NewInt(0)}, nil
		},
	}
	c, err := NewClient(ClientConfig{Logger: zaptest.NewLogger(t), Fund: fund, ReadAttempts: 2})
	require.NoError(t, err)

	campaigns, err := c.TryListCampaigns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, campaigns)
	assert.Equal(t, 2, calls)
}

func TestGetSortedProjects_KeepsChainOrder(t *testing.T) {
	votes := map[uint64]int64{0: 10, 1: 50, 2: 30}
	fund := &mockContract{
		ReadFunc: func(_ context.Context, method string, args ...any) ([]any, error) {
			switch method {
			case "getSortedProjects":
				// Deliberately not sorted by votes.
				return []any{[]*big.Int{big.NewInt(2), big.NewInt(0), big.NewInt(1)}}, nil
			case "getProjectCount":
				return []any{big.NewInt(3)}, nil
			case "getProject":
				id := args[1].(*big.Int).Uint64()
				return projectOutputs(args[0].(*big.Int).Uint64(), id, votes[id]), nil
			}
			return nil, errors.New("unexpected method " + method)
		},
	}
	c := newTestClient(t, fund, nil)

	projects := c.GetSortedProjects(context.Background(), 4)
	require.Len(t, projects, 3)
	assert.Equal(t, []uint64{2, 0, 1}, []uint64{projects[0].ID, projects[1].ID, projects[2].ID})
	assert.Equal(t, uint64(4), projects[0].CampaignID)
}

func TestGetSortedProjects_UnknownID(t *testing.T) {
	fund := &mockContract{
		ReadFunc: func(_ context.Context, method string, args ...any) ([]any, error) {
			switch method {
			case "getSortedProjects":
				return []any{[]*big.Int{big.NewInt(9)}}, nil
			case "getProjectCount":
				return []any{big.NewInt(1)}, nil
			case "getProject":
				return projectOutputs(0, 0, 1), nil
			}
			return nil, errors.New("unexpected method " + method)
		},
	}
	c := newTestClient(t, fund, nil)

	_, err := c.TryGetSortedProjects(context.Background(), 0)
	require.ErrorContains(t, err, "unknown project 9")
	assert.Empty(t, c.GetSortedProjects(context.Background(), 0))
}

func TestGetUserVoteHistory(t *testing.T) {
	voter := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	t.Run("decodes parallel arrays", func(t *testing.T) {
		fund := &mockContract{
			ReadFunc: func(_ context.Context, method string, args ...any) ([]any, error) {
				require.Equal(t, "getUserVoteHistory", method)
				require.Equal(t, voter, args[0])
				return []any{
					[]*big.Int{big.NewInt(1), big.NewInt(1)},
					[]*big.Int{big.NewInt(0), big.NewInt(0)},
					[]*big.Int{big.NewInt(10), big.NewInt(5)},
					[]*big.Int{big.NewInt(20), big.NewInt(10)},
				}, nil
			},
		}
		votes := newTestClient(t, fund, nil).GetUserVoteHistory(context.Background(), voter)
		require.Len(t, votes, 2)
		assert.Equal(t, voter, votes[0].Voter)
		assert.Equal(t, int64(20), votes[0].VoteCount.Int64())
		assert.Equal(t, int64(5), votes[1].Amount.Int64())
	})

	t.Run("mismatched arrays fail soft", func(t *testing.T) {
		fund := &mockContract{
			ReadFunc: func(context.Context, string, ...any) ([]any, error) {
				return []any{
					[]*big.Int{big.NewInt(1)},
					[]*big.Int{},
					[]*big.Int{big.NewInt(10)},
					[]*big.Int{big.NewInt(20)},
				}, nil
			},
		}
		votes := newTestClient(t, fund, nil).GetUserVoteHistory(context.Background(), voter)
		require.NotNil(t, votes)
		assert.Empty(t, votes)
	})
}

func TestUserVoteTotals_ZeroOnError(t *testing.T) {
	fund := &mockContract{
		ReadFunc: func(context.Context, string, ...any) ([]any, error) {
			return nil, errors.New("execution reverted")
		},
	}
	c := newTestClient(t, fund, nil)
	voter := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	assert.Zero(t, c.GetUserVotesForProject(context.Background(), 0, 0, voter).Sign())
	assert.Zero(t, c.GetUserTotalVotesInCampaign(context.Background(), 0, voter).Sign())
}

func TestDecodeCampaign_TypeMismatch(t *testing.T) {
	out := campaignOutputs(1, "campaign")
	out[2] = 42
	_, err := decodeCampaign(out)
	require.ErrorContains(t, err, "output 2 is int, expected string")

	_, err = decodeCampaign(out[:3])
	require.ErrorContains(t, err, "expected at least")
}
