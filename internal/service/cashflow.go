package service

import (
	"context"
	"math"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"

	"github.com/shopspring/decimal"
)

// lookAheadDays is the fixed projection window for the minimum-required
// balance.
const lookAheadDays = 14

type AccountLister interface {
	List(ctx context.Context, ids []int64) ([]domain.Account, error)
}

type LiabilityLister interface {
	ListUnpaid(ctx context.Context) ([]domain.Liability, error)
}

type CashflowSnapshot struct {
	TotalAvailableFunds  float64    `json:"total_available_funds"`
	TotalAvailableCredit float64    `json:"total_available_credit"`
	TotalLiabilitiesDue  float64    `json:"total_liabilities_due"`
	NetPosition          float64    `json:"net_position"`
	NextBillDue          *time.Time `json:"next_bill_due"`
	DaysUntilNextBill    *int       `json:"days_until_next_bill"`
	MinimumRequired      float64    `json:"minimum_required"`
	ProjectedDeficit     *float64   `json:"projected_deficit"`
	Timestamp            time.Time  `json:"timestamp"`
}

// CashflowService composes account balances and unpaid liabilities into one
// consolidated position. It is a pure read: every call recomputes from
// current store state, nothing is cached.
type CashflowService struct {
	accounts    AccountLister
	liabilities LiabilityLister
	now         func() time.Time
}

func NewCashflowService(accounts AccountLister, liabilities LiabilityLister) *CashflowService {
	return &CashflowService{accounts: accounts, liabilities: liabilities, now: time.Now}
}

func (s *CashflowService) Snapshot(ctx context.Context) (*CashflowSnapshot, error) {
	accounts, err := s.accounts.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	liabilities, err := s.liabilities.ListUnpaid(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	funds := decimal.Zero
	credit := decimal.Zero
	for _, a := range accounts {
		if a.IsCredit() {
			if a.AvailableCredit != nil {
				credit = credit.Add(decimal.NewFromFloat(*a.AvailableCredit))
			} else {
				credit = credit.Add(decimal.NewFromFloat(a.CreditHeadroom()))
			}
			continue
		}
		funds = funds.Add(decimal.NewFromFloat(a.AvailableBalance))
	}

	totalDue := decimal.Zero
	minRequired := decimal.Zero
	horizon := now.AddDate(0, 0, lookAheadDays)
	var nextDue *time.Time
	for _, l := range liabilities {
		totalDue = totalDue.Add(decimal.NewFromFloat(l.Amount))
		if !l.DueDate.After(horizon) {
			minRequired = minRequired.Add(decimal.NewFromFloat(l.Amount))
		}
		due := l.DueDate
		if nextDue == nil || due.Before(*nextDue) {
			nextDue = &due
		}
	}

	snapshot := &CashflowSnapshot{
		TotalAvailableFunds:  toFloat(funds),
		TotalAvailableCredit: toFloat(credit),
		TotalLiabilitiesDue:  toFloat(totalDue),
		NetPosition:          toFloat(funds.Sub(totalDue)),
		MinimumRequired:      toFloat(minRequired),
		NextBillDue:          nextDue,
		Timestamp:            now,
	}

	if nextDue != nil {
		days := int(math.Ceil(nextDue.Sub(now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		snapshot.DaysUntilNextBill = &days
	}

	if deficit := minRequired.Sub(funds); deficit.IsPositive() {
		v := toFloat(deficit)
		snapshot.ProjectedDeficit = &v
	}

	return snapshot, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
