package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SumEpsilon absorbs rounding when a total is split unevenly, e.g. 100.00
// split three ways as 33.34/33.33/33.33.
const SumEpsilon = 0.01

type Payment struct {
	ID          string
	LiabilityID *int64
	IncomeID    *int64
	Amount      float64
	PaymentDate time.Time
	Category    string
	Description *string

	Sources []PaymentSource

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// PaymentSource is one account's contribution within a split payment. It is
// created and deleted only together with its owning Payment.
type PaymentSource struct {
	ID        string
	PaymentID string
	AccountID int64
	Amount    float64
}

// SourcesTotal sums source amounts with exact decimal arithmetic so the
// invariant check is not subject to float accumulation drift.
func SourcesTotal(sources []PaymentSource) float64 {
	total := decimal.Zero
	for _, s := range sources {
		total = total.Add(decimal.NewFromFloat(s.Amount))
	}
	f, _ := total.Float64()
	return f
}

// SumMatches reports whether the source amounts add up to total within
// SumEpsilon.
func SumMatches(total float64, sources []PaymentSource) bool {
	diff := decimal.NewFromFloat(total).Sub(decimal.NewFromFloat(SourcesTotal(sources))).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(SumEpsilon))
}
