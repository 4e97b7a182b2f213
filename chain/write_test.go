package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func validCampaign() CreateCampaignInput {
	return CreateCampaignInput{
		Name:               "Builders round",
		Description:        "Funding for builders",
		Logo:               "ipfs://bafy",
		StartTime:          1_700_000_000,
		EndTime:            1_700_086_400,
		AdminFeePercentage: 5,
	}
}

func TestCreateCampaignInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateCampaignInput)
		field  string
	}{
		{"valid", func(*CreateCampaignInput) {}, ""},
		{"empty name", func(in *CreateCampaignInput) { in.Name = "  " }, "name"},
		{"missing start", func(in *CreateCampaignInput) { in.StartTime = 0 }, "start time"},
		{"end before start", func(in *CreateCampaignInput) { in.EndTime = in.StartTime }, "end time"},
		{"admin fee above max", func(in *CreateCampaignInput) { in.AdminFeePercentage = 31 }, "admin fee percentage"},
		{"admin fee at max", func(in *CreateCampaignInput) { in.AdminFeePercentage = 30 }, ""},
		{"bad logo url", func(in *CreateCampaignInput) { in.Logo = "not a url" }, "logo"},
		{"bad demo scheme", func(in *CreateCampaignInput) { in.DemoVideo = "ftp://example.com/v.mp4" }, "demo video"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCampaign()
			tt.mutate(&in)
			err := in.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSubmitProjectInput_Validate(t *testing.T) {
	in := SubmitProjectInput{
		CampaignID: 1,
		Name:       "Indexer",
		GithubLink: "https://github.com/example/indexer",
		Contracts:  []string{"0x00000000000000000000000000000000000000aa"},
	}
	require.NoError(t, in.Validate())

	in.Contracts = append(in.Contracts, "0x1234")
	err := in.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contract address 1", verr.Field)

	in.Contracts = nil
	in.SocialLink = "twitter"
	require.ErrorIs(t, in.Validate(), ErrValidation)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("admin", " 0x00000000000000000000000000000000000000aA ")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xaa"), addr)

	for _, bad := range []string{"", "0x", "00000000000000000000000000000000000000aa", "0xzz000000000000000000000000000000000000aa"} {
		_, err := ParseAddress("admin", bad)
		require.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestWrites_ValidateBeforeNetwork(t *testing.T) {
	fund := &mockContract{}
	token := &mockContract{}
	c := newTestClient(t, fund, token)
	ctx := context.Background()

	_, err := c.CreateCampaign(ctx, directSubmitter{}, CreateCampaignInput{})
	require.ErrorIs(t, err, ErrValidation)
	_, err = c.Vote(ctx, directSubmitter{}, VoteInput{Amount: big.NewInt(0)})
	require.ErrorIs(t, err, ErrValidation)
	_, err = c.AddAdmin(ctx, directSubmitter{}, 1, "nope")
	require.ErrorIs(t, err, ErrValidation)
	_, err = c.WithdrawFees(ctx, directSubmitter{}, "0x00000000000000000000000000000000000000aa", nil)
	require.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, fund.Writes())
	assert.Empty(t, token.Writes())
}

func TestCreateCampaign_SendsCreationFee(t *testing.T) {
	var got *big.Int
	fund := &mockContract{
		WriteFunc: func(_ context.Context, value *big.Int, method string, args ...any) (common.Hash, error) {
			got = value
			assert.Equal(t, "createCampaign", method)
			require.Len(t, args, 9)
			assert.Equal(t, "Builders round", args[0])
			assert.Equal(t, true, args[8])
			return common.HexToHash("0xabc"), nil
		},
	}
	c, err := NewClient(ClientConfig{
		Logger:              zaptest.NewLogger(t),
		Fund:                fund,
		CampaignCreationFee: big.NewInt(1e15),
	})
	require.NoError(t, err)

	in := validCampaign()
	in.UseQuadraticDistribution = true
	receipt, err := c.CreateCampaign(context.Background(), directSubmitter{}, in)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabc"), receipt.TxHash)
	assert.Equal(t, int64(1e15), got.Int64())
}

func TestVote_ApproveThenAct(t *testing.T) {
	in := VoteInput{CampaignID: 1, ProjectID: 2, Amount: big.NewInt(500)}

	t.Run("approval confirmed then vote", func(t *testing.T) {
		token := &mockContract{
			WriteFunc: func(_ context.Context, _ *big.Int, method string, args ...any) (common.Hash, error) {
				assert.Equal(t, "approve", method)
				assert.Equal(t, common.HexToAddress("0xff"), args[0])
				assert.Equal(t, int64(500), args[1].(*big.Int).Int64())
				return common.HexToHash("0x01"), nil
			},
		}
		fund := &mockContract{}
		c := newTestClient(t, fund, token)

		_, err := c.Vote(context.Background(), directSubmitter{}, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"approve"}, token.Writes())
		assert.Equal(t, []string{"vote"}, fund.Writes())
	})

	t.Run("approval rejected", func(t *testing.T) {
		token := &mockContract{
			WriteFunc: func(context.Context, *big.Int, string, ...any) (common.Hash, error) {
				return common.Hash{}, errors.New("user rejected transaction")
			},
		}
		fund := &mockContract{}
		c := newTestClient(t, fund, token)

		_, err := c.Vote(context.Background(), directSubmitter{}, in)
		require.ErrorContains(t, err, "user rejected transaction")
		assert.Empty(t, fund.Writes())
	})

	t.Run("approval reverted", func(t *testing.T) {
		token := &mockContract{
			WaitForReceiptFunc: func(context.Context, common.Hash) (*types.Receipt, error) {
				return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
			},
		}
		fund := &mockContract{}
		c := newTestClient(t, fund, token)

		_, err := c.Vote(context.Background(), directSubmitter{}, in)
		require.Error(t, err)
		assert.Empty(t, fund.Writes())
	})

	t.Run("no token contract", func(t *testing.T) {
		c := newTestClient(t, &mockContract{}, nil)
		_, err := c.Vote(context.Background(), directSubmitter{}, in)
		require.ErrorIs(t, err, ErrNoToken)
	})
}

func TestCreatedCampaignID(t *testing.T) {
	receipt := &types.Receipt{Logs: []*types.Log{
		{Topics: []common.Hash{common.HexToHash("0x1234")}},
		{Topics: []common.Hash{campaignCreatedTopic, common.BigToHash(big.NewInt(42)), common.HexToHash("0xaa")}},
	}}
	id, ok := CreatedCampaignID(receipt)
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)

	_, ok = CreatedCampaignID(&types.Receipt{})
	assert.False(t, ok)
	_, ok = CreatedCampaignID(nil)
	assert.False(t, ok)
}

func TestExplorerTxURL(t *testing.T) {
	hash := common.HexToHash("0x01")
	assert.Equal(t, "https://explorer.example/tx/"+hash.Hex(), ExplorerTxURL("https://explorer.example/", hash))
	assert.Empty(t, ExplorerTxURL("", hash))
}
