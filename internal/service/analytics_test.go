package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

type fakeTransactionStore struct {
	byAccount map[int64][]domain.Transaction
	transfers map[[2]int64]int
}

func (f *fakeTransactionStore) ListByAccounts(ctx context.Context, accountIDs []int64, since time.Time) (map[int64][]domain.Transaction, error) {
	out := make(map[int64][]domain.Transaction)
	for _, id := range accountIDs {
		out[id] = f.byAccount[id]
	}
	return out, nil
}

func (f *fakeTransactionStore) TransferCount(ctx context.Context, a, b int64) (int, error) {
	if a > b {
		a, b = b, a
	}
	return f.transfers[[2]int64{a, b}], nil
}

func tx(account int64, amount float64, desc, category string, day int) domain.Transaction {
	return domain.Transaction{
		AccountID:       account,
		Amount:          amount,
		Description:     desc,
		Category:        category,
		Type:            domain.TransactionDebit,
		TransactionDate: time.Date(2025, 6, day, 10, 0, 0, 0, time.UTC),
	}
}

func transferOut(account int64, amount float64, category string, counterparty int64) domain.Transaction {
	return domain.Transaction{
		AccountID:         account,
		Amount:            amount,
		Category:          category,
		Type:              domain.TransactionTransferOut,
		TransferAccountID: &counterparty,
		TransactionDate:   time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC),
	}
}

func points(account int64, balances ...float64) []domain.BalancePoint {
	out := make([]domain.BalancePoint, 0, len(balances))
	for i, b := range balances {
		out = append(out, domain.BalancePoint{
			AccountID:  account,
			Balance:    b,
			RecordedAt: time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func newAnalyticsFixture(accounts []domain.Account, txs *fakeTransactionStore, histories map[int64][]domain.BalancePoint) *AnalyticsService {
	store := &fakeAccountStore{accounts: accounts, histories: histories}
	svc := NewAnalyticsService(store, txs, store)
	svc.now = fixedNow
	return svc
}

func TestCorrelations(t *testing.T) {
	accounts := []domain.Account{
		{ID: 1, Type: domain.AccountChecking, AvailableBalance: 500},
		{ID: 2, Type: domain.AccountSavings, AvailableBalance: 500},
		{ID: 3, Type: domain.AccountChecking, AvailableBalance: 500},
	}
	txs := &fakeTransactionStore{
		byAccount: map[int64][]domain.Transaction{
			1: {tx(1, -20, "grocer", "food", 2), tx(1, -30, "pump", "gas", 3)},
			2: {tx(2, -25, "grocer", "food", 4)},
			3: {tx(3, -40, "cinema", "fun", 5)},
		},
		transfers: map[[2]int64]int{
			{1, 2}: 8,  // different types, frequent
			{1, 3}: 25, // same type, frequent; score saturates
			{2, 3}: 2,
		},
	}

	svc := newAnalyticsFixture(accounts, txs, nil)
	analysis, err := svc.CrossAccountAnalysis(context.Background(), nil)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}

	c12 := analysis.Correlations[1][2]
	if c12.RelationshipType != RelationshipComplementary {
		t.Fatalf("1-2 relationship = %s, want complementary", c12.RelationshipType)
	}
	if math.Abs(c12.CorrelationScore-0.8) > 1e-9 {
		t.Fatalf("1-2 score = %.2f, want 0.8", c12.CorrelationScore)
	}
	if len(c12.CommonCategories) != 1 || c12.CommonCategories[0] != "food" {
		t.Fatalf("1-2 common categories = %v, want [food]", c12.CommonCategories)
	}

	c13 := analysis.Correlations[1][3]
	if c13.RelationshipType != RelationshipSupplementary {
		t.Fatalf("1-3 relationship = %s, want supplementary", c13.RelationshipType)
	}
	if c13.CorrelationScore != 1 {
		t.Fatalf("1-3 score should saturate at 1, got %.2f", c13.CorrelationScore)
	}

	c23 := analysis.Correlations[2][3]
	if c23.RelationshipType != RelationshipIndependent {
		t.Fatalf("2-3 relationship = %s, want independent", c23.RelationshipType)
	}

	// pairs are keyed low id -> high id only
	if _, ok := analysis.Correlations[2][1]; ok {
		t.Fatal("reverse pair 2-1 should not be present")
	}
	if _, ok := analysis.Correlations[3]; ok {
		t.Fatal("highest id should not open a pair bucket")
	}
}

func TestTransferPatterns(t *testing.T) {
	accounts := []domain.Account{{ID: 1, Type: domain.AccountChecking, AvailableBalance: 500}}
	txs := &fakeTransactionStore{
		byAccount: map[int64][]domain.Transaction{
			1: {
				transferOut(1, 100, "savings", 2),
				transferOut(1, 300, "savings", 2),
				transferOut(1, 200, "investment", 3),
				tx(1, -50, "grocer", "food", 2), // not a transfer, ignored
			},
		},
	}

	svc := newAnalyticsFixture(accounts, txs, nil)
	analysis, err := svc.CrossAccountAnalysis(context.Background(), nil)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}

	if len(analysis.TransferPatterns) != 1 {
		t.Fatalf("expected one pattern, got %d", len(analysis.TransferPatterns))
	}
	p := analysis.TransferPatterns[0]
	if p.Frequency != 3 {
		t.Fatalf("frequency = %d, want 3", p.Frequency)
	}
	if p.AverageAmount != 200 {
		t.Fatalf("average = %.2f, want 200", p.AverageAmount)
	}
	if p.CategoryDistribution["savings"] != 2 || p.CategoryDistribution["investment"] != 1 {
		t.Fatalf("category distribution = %v", p.CategoryDistribution)
	}
}

func TestUsagePatterns(t *testing.T) {
	util := 0.0
	accounts := []domain.Account{
		{ID: 1, Type: domain.AccountChecking, AvailableBalance: 500},
		{ID: 2, Type: domain.AccountCredit, AvailableBalance: -250, TotalLimit: limit(1000)},
	}
	txs := &fakeTransactionStore{
		byAccount: map[int64][]domain.Transaction{
			1: {
				tx(1, -40, "grocer", "food", 1),
				tx(1, -40, "grocer", "food", 15),
				tx(1, -20, "pump", "gas", 15),
			},
		},
	}

	svc := newAnalyticsFixture(accounts, txs, nil)
	analysis, err := svc.CrossAccountAnalysis(context.Background(), nil)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}

	p := analysis.UsagePatterns[1]
	if math.Abs(p.AverageTransactionSize-100.0/3) > 1e-9 {
		t.Fatalf("average size = %.4f", p.AverageTransactionSize)
	}
	if len(p.CommonMerchants) != 2 || p.CommonMerchants[0] != "grocer" {
		t.Fatalf("merchants = %v, want grocer first", p.CommonMerchants)
	}
	if len(p.ActiveDaysOfMonth) != 2 || p.ActiveDaysOfMonth[0] != 1 || p.ActiveDaysOfMonth[1] != 15 {
		t.Fatalf("active days = %v, want [1 15]", p.ActiveDaysOfMonth)
	}
	if math.Abs(p.CategoryPreferences["food"]-0.8) > 1e-9 {
		t.Fatalf("food preference = %.4f, want 0.8", p.CategoryPreferences["food"])
	}
	if p.UtilizationRate != nil {
		t.Fatal("checking account should have no utilization rate")
	}

	credit := analysis.UsagePatterns[2]
	if credit.UtilizationRate == nil {
		t.Fatal("credit account should report utilization")
	}
	util = *credit.UtilizationRate
	if math.Abs(util-0.25) > 1e-9 {
		t.Fatalf("utilization = %.2f, want 0.25", util)
	}
}

func TestBalanceDistribution(t *testing.T) {
	accounts := []domain.Account{
		{ID: 1, Type: domain.AccountChecking, AvailableBalance: 750},
		{ID: 2, Type: domain.AccountSavings, AvailableBalance: 250},
		{ID: 3, Type: domain.AccountCredit, AvailableBalance: -100, TotalLimit: limit(1000)},
	}
	histories := map[int64][]domain.BalancePoint{
		1: points(1, 600, 700, 800, 900),
	}

	svc := newAnalyticsFixture(accounts, &fakeTransactionStore{}, histories)
	analysis, err := svc.CrossAccountAnalysis(context.Background(), nil)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}

	d := analysis.BalanceDistribution[1]
	if d.AverageBalance != 750 {
		t.Fatalf("mean = %.2f, want 750", d.AverageBalance)
	}
	wantSD := math.Sqrt((150*150 + 50*50 + 50*50 + 150*150) / 4.0)
	if math.Abs(d.BalanceVolatility-wantSD) > 1e-9 {
		t.Fatalf("stdev = %.4f, want %.4f", d.BalanceVolatility, wantSD)
	}
	if d.MinBalance != 600 || d.MaxBalance != 900 {
		t.Fatalf("min/max = %.0f/%.0f, want 600/900", d.MinBalance, d.MaxBalance)
	}
	if d.TypicalRange[0] != 750-wantSD || d.TypicalRange[1] != 750+wantSD {
		t.Fatalf("typical range = %v", d.TypicalRange)
	}
	if math.Abs(d.PercentageOfTotal-0.75) > 1e-9 {
		t.Fatalf("share = %.4f, want 0.75", d.PercentageOfTotal)
	}

	// credit account takes no share of the funds total
	if analysis.BalanceDistribution[3].PercentageOfTotal != 0 {
		t.Fatal("credit account should have zero share of non-credit total")
	}
}

func TestRiskAssessment(t *testing.T) {
	accounts := []domain.Account{
		{ID: 1, Type: domain.AccountChecking, AvailableBalance: 500},  // dips negative
		{ID: 2, Type: domain.AccountSavings, AvailableBalance: 80},    // low but positive
		{ID: 3, Type: domain.AccountCredit, AvailableBalance: -900, TotalLimit: limit(1000)},
		{ID: 4, Type: domain.AccountChecking, AvailableBalance: 5000}, // volatile
	}
	histories := map[int64][]domain.BalancePoint{
		1: points(1, 200, -50, 500),
		2: points(2, 90, 80, 85),
		3: points(3, -800, -900),
		4: points(4, 1000, 5000, 1000, 5000),
	}

	svc := newAnalyticsFixture(accounts, &fakeTransactionStore{}, histories)
	analysis, err := svc.CrossAccountAnalysis(context.Background(), nil)
	if err != nil {
		t.Fatalf("analysis: %v", err)
	}

	r1 := analysis.RiskAssessment[1]
	if r1.OverdraftRisk == nil || *r1.OverdraftRisk != 1.0 {
		t.Fatalf("negative 30d minimum should give overdraft risk 1.0, got %v", r1.OverdraftRisk)
	}
	if r1.CreditUtilizationRisk != nil {
		t.Fatal("checking account should have no credit utilization factor")
	}

	r2 := analysis.RiskAssessment[2]
	if r2.OverdraftRisk == nil || *r2.OverdraftRisk != 0.5 {
		t.Fatalf("sub-$100 minimum should give overdraft risk 0.5, got %v", r2.OverdraftRisk)
	}

	r3 := analysis.RiskAssessment[3]
	if r3.CreditUtilizationRisk == nil || *r3.CreditUtilizationRisk != 0.9 {
		t.Fatalf("credit utilization risk = %v, want 0.9", r3.CreditUtilizationRisk)
	}
	if r3.OverdraftRisk != nil {
		t.Fatal("credit account should have no overdraft factor")
	}
	// average over the three applicable factors only
	want := (*r3.CreditUtilizationRisk + r3.PaymentFailureRisk + r3.VolatilityScore) / 3
	if math.Abs(r3.OverallRiskScore-want) > 1e-9 {
		t.Fatalf("overall = %.4f, want %.4f", r3.OverallRiskScore, want)
	}

	r4 := analysis.RiskAssessment[4]
	if r4.PaymentFailureRisk != 0.5 {
		t.Fatalf("high volatility should raise payment failure risk to 0.5, got %.2f", r4.PaymentFailureRisk)
	}

	for id, r := range analysis.RiskAssessment {
		for name, v := range map[string]float64{
			"payment_failure": r.PaymentFailureRisk,
			"volatility":      r.VolatilityScore,
			"overall":         r.OverallRiskScore,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("account %d %s score %f outside [0,1]", id, name, v)
			}
		}
		if r.OverdraftRisk != nil && (*r.OverdraftRisk < 0 || *r.OverdraftRisk > 1) {
			t.Fatalf("account %d overdraft risk outside [0,1]", id)
		}
		if r.CreditUtilizationRisk != nil && (*r.CreditUtilizationRisk < 0 || *r.CreditUtilizationRisk > 1) {
			t.Fatalf("account %d utilization risk outside [0,1]", id)
		}
	}
}

func TestAnalysis_EmptyHistoryDegradesGracefully(t *testing.T) {
	accounts := []domain.Account{
		{ID: 1, Type: domain.AccountChecking, AvailableBalance: 100},
		{ID: 2, Type: domain.AccountSavings, AvailableBalance: 0},
	}

	svc := newAnalyticsFixture(accounts, &fakeTransactionStore{}, nil)
	analysis, err := svc.CrossAccountAnalysis(context.Background(), nil)
	if err != nil {
		t.Fatalf("no-data analysis should not error: %v", err)
	}

	p := analysis.UsagePatterns[1]
	if p.AverageTransactionSize != 0 || len(p.CommonMerchants) != 0 || len(p.ActiveDaysOfMonth) != 0 {
		t.Fatalf("expected zero-valued usage pattern, got %+v", p)
	}

	d := analysis.BalanceDistribution[2]
	if d.AverageBalance != 0 || d.BalanceVolatility != 0 {
		t.Fatalf("expected zero-valued distribution, got %+v", d)
	}

	r := analysis.RiskAssessment[1]
	if r.VolatilityScore != 0 {
		t.Fatalf("no history should give zero volatility score, got %f", r.VolatilityScore)
	}

	if analysis.Timestamp.IsZero() {
		t.Fatal("analysis must carry a timestamp")
	}
}
