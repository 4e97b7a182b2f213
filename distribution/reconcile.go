package distribution

import "math/big"

// ReconciliationRow compares the projected payout of a project with what it actually received.
type ReconciliationRow struct {
	ProjectID uint64
	Rank      int
	Projected *big.Int
	Actual    *big.Int
	// Delta is Actual - Projected.
	Delta *big.Int
}

// Reconciliation is the "what actually happened" view of a distributed campaign.
type Reconciliation struct {
	Preview     Result
	Rows        []ReconciliationRow
	TotalActual *big.Int
	// Matches is true when every project received exactly its projected share.
	Matches bool
}

// Reconcile runs Compute over in, which should carry the final vote counts, and lines the
// projection up against fundsReceived as reported by the contract after distribution.
// Projects missing from fundsReceived are treated as having received nothing.
func Reconcile(in Input, fundsReceived map[uint64]*big.Int) (Reconciliation, error) {
	preview, err := Compute(in)
	if err != nil {
		return Reconciliation{}, err
	}

	rec := Reconciliation{
		Preview:     preview,
		Rows:        make([]ReconciliationRow, 0, len(preview.Shares)),
		TotalActual: new(big.Int),
		Matches:     true,
	}
	for _, s := range preview.Shares {
		actual := new(big.Int).Set(orZero(fundsReceived[s.ProjectID]))
		delta := new(big.Int).Sub(actual, s.FundsShare)
		if delta.Sign() != 0 {
			rec.Matches = false
		}
		rec.TotalActual.Add(rec.TotalActual, actual)
		rec.Rows = append(rec.Rows, ReconciliationRow{
			ProjectID: s.ProjectID,
			Rank:      s.Rank,
			Projected: new(big.Int).Set(s.FundsShare),
			Actual:    actual,
			Delta:     delta,
		})
	}
	return rec, nil
}
