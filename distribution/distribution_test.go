package distribution

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(votes ...int64) []Entry {
	out := make([]Entry, 0, len(votes))
	for i, v := range votes {
		out = append(out, Entry{ProjectID: uint64(i), VoteCount: big.NewInt(v)})
	}
	return out
}

func shares(r Result) []int64 {
	out := make([]int64, 0, len(r.Shares))
	for _, s := range r.Shares {
		out = append(out, s.FundsShare.Int64())
	}
	return out
}

func requireConserved(t *testing.T, r Result) {
	t.Helper()
	sum := new(big.Int).Add(r.PlatformFee, r.AdminFee)
	for _, s := range r.Shares {
		sum.Add(sum, s.FundsShare)
	}
	sum.Add(sum, r.UnallocatedRemainder)
	require.Zero(t, sum.Cmp(r.TotalFunds), "fees + shares + remainder = %s, total = %s", sum, r.TotalFunds)
}

func TestCompute_Examples(t *testing.T) {
	tests := []struct {
		name          string
		in            Input
		platformFee   int64
		adminFee      int64
		distributable int64
		shares        []int64
		remainder     int64
	}{
		{
			name: "linear two projects",
			in: Input{
				TotalFunds:         big.NewInt(1000),
				AdminFeePercentage: 5,
				Projects:           entries(300, 100),
			},
			platformFee:   150,
			adminFee:      50,
			distributable: 800,
			shares:        []int64{600, 200},
		},
		{
			name: "quadratic flattens large leads",
			in: Input{
				TotalFunds:               big.NewInt(1000),
				AdminFeePercentage:       5,
				UseQuadraticDistribution: true,
				Projects:                 entries(900, 100),
			},
			platformFee:   150,
			adminFee:      50,
			distributable: 800,
			shares:        []int64{600, 200},
		},
		{
			name: "linear skew for the same votes",
			in: Input{
				TotalFunds:         big.NewInt(1000),
				AdminFeePercentage: 5,
				Projects:           entries(900, 100),
			},
			platformFee:   150,
			adminFee:      50,
			distributable: 800,
			shares:        []int64{720, 80},
		},
		{
			name: "no votes leaves everything unallocated",
			in: Input{
				TotalFunds:         big.NewInt(1000),
				AdminFeePercentage: 5,
				Projects:           entries(0, 0, 0),
			},
			platformFee:   150,
			adminFee:      50,
			distributable: 800,
			shares:        []int64{0, 0, 0},
			remainder:     800,
		},
		{
			name: "rounding dust is reported",
			in: Input{
				TotalFunds: big.NewInt(100),
				Projects:   entries(1, 1, 1),
			},
			platformFee:   15,
			adminFee:      0,
			distributable: 85,
			shares:        []int64{28, 28, 28},
			remainder:     1,
		},
		{
			name: "max winners truncates by rank",
			in: Input{
				TotalFunds: big.NewInt(1000),
				MaxWinners: 2,
				Projects:   entries(50, 30, 20),
			},
			platformFee:   150,
			distributable: 850,
			shares:        []int64{531, 318, 0},
			remainder:     1,
		},
		{
			name: "max winners counts zero vote projects inside the cutoff",
			in: Input{
				TotalFunds: big.NewInt(1000),
				MaxWinners: 2,
				Projects:   entries(50, 0, 20),
			},
			platformFee:   150,
			distributable: 850,
			shares:        []int64{850, 0, 0},
		},
		{
			name: "quadratic uses floor square root",
			in: Input{
				TotalFunds:               big.NewInt(1000),
				UseQuadraticDistribution: true,
				Projects:                 entries(99, 3),
			},
			platformFee:   150,
			distributable: 850,
			// weights 9 and 1
			shares: []int64{765, 85},
		},
		{
			name:          "empty campaign",
			in:            Input{},
			platformFee:   0,
			distributable: 0,
			shares:        []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Compute(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.platformFee, r.PlatformFee.Int64())
			assert.Equal(t, tt.adminFee, r.AdminFee.Int64())
			assert.Equal(t, tt.distributable, r.Distributable.Int64())
			assert.Equal(t, tt.shares, shares(r))
			assert.Equal(t, tt.remainder, r.UnallocatedRemainder.Int64())
			requireConserved(t, r)
		})
	}
}

func TestCompute_QuadraticWeights(t *testing.T) {
	r, err := Compute(Input{
		TotalFunds:               big.NewInt(1000),
		AdminFeePercentage:       5,
		UseQuadraticDistribution: true,
		Projects:                 entries(900, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), r.Shares[0].Weight.Int64())
	assert.Equal(t, int64(10), r.Shares[1].Weight.Int64())
	assert.Equal(t, int64(40), r.TotalWeight.Int64())
}

func TestCompute_WinnerSelection(t *testing.T) {
	votes := entries(10, 0, 7, 5, 3, 1)

	t.Run("unlimited includes every voting project", func(t *testing.T) {
		r, err := Compute(Input{TotalFunds: big.NewInt(10_000), Projects: votes})
		require.NoError(t, err)
		require.Len(t, r.Winners(), 5)
		for _, s := range r.Shares {
			assert.Equal(t, s.VoteCount.Sign() > 0, s.Winner, "project %d", s.ProjectID)
		}
	})

	for k := uint64(1); k <= 7; k++ {
		r, err := Compute(Input{TotalFunds: big.NewInt(10_000), MaxWinners: k, Projects: votes})
		require.NoError(t, err)
		assert.LessOrEqual(t, uint64(len(r.Winners())), k)
		for _, w := range r.Winners() {
			assert.LessOrEqual(t, uint64(w.Rank), k)
		}
	}
}

func TestCompute_RanksFollowInputOrder(t *testing.T) {
	// The chain may rank a lower vote count first; the calculator must not re-sort.
	in := Input{
		TotalFunds: big.NewInt(1000),
		MaxWinners: 1,
		Projects: []Entry{
			{ProjectID: 7, VoteCount: big.NewInt(10)},
			{ProjectID: 3, VoteCount: big.NewInt(90)},
		},
	}
	r, err := Compute(in)
	require.NoError(t, err)
	require.Len(t, r.Winners(), 1)
	assert.Equal(t, uint64(7), r.Winners()[0].ProjectID)
	s, ok := r.Share(3)
	require.True(t, ok)
	assert.Equal(t, 2, s.Rank)
	assert.Zero(t, s.FundsShare.Sign())
}

func TestCompute_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := rng.Intn(8)
		votes := make([]int64, n)
		for j := range votes {
			if rng.Intn(4) > 0 {
				votes[j] = rng.Int63n(1_000_000)
			}
		}
		in := Input{
			TotalFunds:               big.NewInt(rng.Int63n(1 << 50)),
			AdminFeePercentage:       uint64(rng.Intn(MaxAdminFeePercentage + 1)),
			UseQuadraticDistribution: rng.Intn(2) == 0,
			MaxWinners:               uint64(rng.Intn(4)),
			Projects:                 entries(votes...),
		}

		r, err := Compute(in)
		require.NoError(t, err)
		requireConserved(t, r)
		require.True(t, r.UnallocatedRemainder.Sign() >= 0)

		// Scaling every vote count by the same factor keeps the share ordering.
		scaled := in
		scaled.Projects = make([]Entry, len(in.Projects))
		for j, e := range in.Projects {
			scaled.Projects[j] = Entry{ProjectID: e.ProjectID, VoteCount: new(big.Int).Mul(e.VoteCount, big.NewInt(4))}
		}
		rs, err := Compute(scaled)
		require.NoError(t, err)
		for a := range r.Shares {
			for b := range r.Shares {
				if r.Shares[a].FundsShare.Cmp(r.Shares[b].FundsShare) > 0 {
					assert.True(t, rs.Shares[a].FundsShare.Cmp(rs.Shares[b].FundsShare) >= 0)
				}
			}
		}
	}
}

func TestCompute_QuadraticDiminishingReturns(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		// Perfect squares keep the integer square root exact.
		votes := make([]int64, 3)
		for j := range votes {
			k := rng.Int63n(1000) + 1
			votes[j] = k * k
		}
		base := Input{TotalFunds: big.NewInt(1_000_000_000), Projects: entries(votes...)}

		linear, err := Compute(base)
		require.NoError(t, err)
		base.UseQuadraticDistribution = true
		quadratic, err := Compute(base)
		require.NoError(t, err)

		top := 0
		for j := range votes {
			if votes[j] > votes[top] {
				top = j
			}
		}
		// The leader never gains from quadratic distribution.
		assert.True(t, quadratic.Shares[top].FundsShare.Cmp(linear.Shares[top].FundsShare) <= 0)

		// A project with fewer votes never receives more than one with more votes.
		for a := range votes {
			for b := range votes {
				if votes[a] < votes[b] {
					assert.True(t, quadratic.Shares[a].FundsShare.Cmp(quadratic.Shares[b].FundsShare) <= 0)
				}
			}
		}
	}
}

func TestInput_Validate(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		err  error
	}{
		{"negative funds", Input{TotalFunds: big.NewInt(-1)}, ErrNegativeFunds},
		{"admin fee too high", Input{AdminFeePercentage: 31}, ErrAdminFeeTooHigh},
		{"negative votes", Input{Projects: entries(-5)}, ErrNegativeVotes},
		{"duplicate project", Input{Projects: []Entry{{ProjectID: 1}, {ProjectID: 1}}}, ErrDuplicateProject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.in)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestReconcile(t *testing.T) {
	in := Input{
		TotalFunds:         big.NewInt(1000),
		AdminFeePercentage: 5,
		Projects:           entries(300, 100),
	}

	t.Run("matching payouts", func(t *testing.T) {
		rec, err := Reconcile(in, map[uint64]*big.Int{0: big.NewInt(600), 1: big.NewInt(200)})
		require.NoError(t, err)
		assert.True(t, rec.Matches)
		assert.Equal(t, int64(800), rec.TotalActual.Int64())
		for _, row := range rec.Rows {
			assert.Zero(t, row.Delta.Sign())
		}
	})

	t.Run("divergent payouts", func(t *testing.T) {
		rec, err := Reconcile(in, map[uint64]*big.Int{0: big.NewInt(601)})
		require.NoError(t, err)
		assert.False(t, rec.Matches)
		require.Len(t, rec.Rows, 2)
		assert.Equal(t, int64(1), rec.Rows[0].Delta.Int64())
		assert.Equal(t, int64(-200), rec.Rows[1].Delta.Int64())
		assert.Equal(t, int64(601), rec.TotalActual.Int64())
	})
}
