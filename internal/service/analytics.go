package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/AstroMined/debtonator-sub002/internal/domain"
)

// analysisWindowDays is the trailing window for balance distribution and risk
// scoring.
const analysisWindowDays = 30

// lowBalanceFloor marks the balance under which overdraft risk is elevated.
const lowBalanceFloor = 100.0

// volatilityAlarm is the 30-day stdev above which payment failure risk is
// raised.
const volatilityAlarm = 1000.0

type TransactionStore interface {
	ListByAccounts(ctx context.Context, accountIDs []int64, since time.Time) (map[int64][]domain.Transaction, error)
	TransferCount(ctx context.Context, a, b int64) (int, error)
}

type BalanceHistoryStore interface {
	BalanceHistory(ctx context.Context, accountID int64, since time.Time) ([]domain.BalancePoint, error)
}

type RelationshipType string

const (
	RelationshipComplementary RelationshipType = "complementary"
	RelationshipSupplementary RelationshipType = "supplementary"
	RelationshipIndependent   RelationshipType = "independent"
)

// AccountCorrelation scores how strongly two accounts move together, based
// on transfer traffic between them. The score is a saturating normalization
// of transfer count, not a statistical Pearson coefficient.
type AccountCorrelation struct {
	CorrelationScore  float64          `json:"correlation_score"`
	TransferFrequency int              `json:"transfer_frequency"`
	CommonCategories  []string         `json:"common_categories"`
	RelationshipType  RelationshipType `json:"relationship_type"`
}

type TransferPattern struct {
	SourceAccountID      int64          `json:"source_account_id"`
	AverageAmount        float64        `json:"average_amount"`
	Frequency            int            `json:"frequency"`
	CategoryDistribution map[string]int `json:"category_distribution"`
}

type UsagePattern struct {
	AccountID              int64              `json:"account_id"`
	AverageTransactionSize float64            `json:"average_transaction_size"`
	CommonMerchants        []string           `json:"common_merchants"`
	ActiveDaysOfMonth      []int              `json:"active_days_of_month"`
	CategoryPreferences    map[string]float64 `json:"category_preferences"`
	UtilizationRate        *float64           `json:"utilization_rate,omitempty"`
}

type BalanceDistribution struct {
	AccountID         int64      `json:"account_id"`
	AverageBalance    float64    `json:"average_balance"`
	BalanceVolatility float64    `json:"balance_volatility"`
	MinBalance        float64    `json:"min_balance"`
	MaxBalance        float64    `json:"max_balance"`
	TypicalRange      [2]float64 `json:"typical_range"`
	PercentageOfTotal float64    `json:"percentage_of_total"`
}

// RiskAssessment holds the per-factor scores, each bounded to [0,1]. A nil
// factor does not apply to the account type and is excluded from the overall
// average rather than counted as zero.
type RiskAssessment struct {
	AccountID             int64    `json:"account_id"`
	OverdraftRisk         *float64 `json:"overdraft_risk,omitempty"`
	CreditUtilizationRisk *float64 `json:"credit_utilization_risk,omitempty"`
	PaymentFailureRisk    float64  `json:"payment_failure_risk"`
	VolatilityScore       float64  `json:"volatility_score"`
	OverallRiskScore      float64  `json:"overall_risk_score"`
}

type CrossAccountAnalysis struct {
	Correlations        map[int64]map[int64]AccountCorrelation `json:"correlations"`
	TransferPatterns    []TransferPattern                      `json:"transfer_patterns"`
	UsagePatterns       map[int64]UsagePattern                 `json:"usage_patterns"`
	BalanceDistribution map[int64]BalanceDistribution          `json:"balance_distribution"`
	RiskAssessment      map[int64]RiskAssessment               `json:"risk_assessment"`
	Timestamp           time.Time                              `json:"timestamp"`
}

// AnalyticsService derives descriptive statistics and heuristic risk signals
// from account history. Missing history is an expected state, not an error:
// accounts with no activity get zero-valued pattern objects.
type AnalyticsService struct {
	accounts     AccountLister
	transactions TransactionStore
	balances     BalanceHistoryStore
	now          func() time.Time
}

func NewAnalyticsService(accounts AccountLister, transactions TransactionStore, balances BalanceHistoryStore) *AnalyticsService {
	return &AnalyticsService{
		accounts:     accounts,
		transactions: transactions,
		balances:     balances,
		now:          time.Now,
	}
}

// CrossAccountAnalysis composes every analysis for the given accounts (all
// accounts when ids is empty) into one timestamped snapshot.
func (s *AnalyticsService) CrossAccountAnalysis(ctx context.Context, accountIDs []int64) (*CrossAccountAnalysis, error) {
	accounts, err := s.accounts.List(ctx, accountIDs)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -analysisWindowDays)

	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}

	txByAccount, err := s.transactions.ListByAccounts(ctx, ids, since)
	if err != nil {
		return nil, err
	}

	histories := make(map[int64][]domain.BalancePoint, len(accounts))
	for _, a := range accounts {
		points, err := s.balances.BalanceHistory(ctx, a.ID, since)
		if err != nil {
			return nil, err
		}
		histories[a.ID] = points
	}

	correlations, err := s.correlations(ctx, accounts, txByAccount)
	if err != nil {
		return nil, err
	}

	analysis := &CrossAccountAnalysis{
		Correlations:        correlations,
		TransferPatterns:    transferPatterns(accounts, txByAccount),
		UsagePatterns:       usagePatterns(accounts, txByAccount),
		BalanceDistribution: balanceDistributions(accounts, histories),
		RiskAssessment:      riskAssessments(accounts, histories),
		Timestamp:           now,
	}
	return analysis, nil
}

// correlations scores every unordered account pair, keyed idA -> idB with
// idA < idB so no pair appears twice.
func (s *AnalyticsService) correlations(ctx context.Context, accounts []domain.Account, txByAccount map[int64][]domain.Transaction) (map[int64]map[int64]AccountCorrelation, error) {
	out := make(map[int64]map[int64]AccountCorrelation)

	categories := make(map[int64]map[string]bool, len(accounts))
	for _, a := range accounts {
		set := make(map[string]bool)
		for _, tx := range txByAccount[a.ID] {
			if tx.Category != "" {
				set[tx.Category] = true
			}
		}
		categories[a.ID] = set
	}

	for i := 0; i < len(accounts); i++ {
		for j := i + 1; j < len(accounts); j++ {
			a, b := accounts[i], accounts[j]
			if a.ID > b.ID {
				a, b = b, a
			}

			transfers, err := s.transactions.TransferCount(ctx, a.ID, b.ID)
			if err != nil {
				return nil, err
			}

			var common []string
			for cat := range categories[a.ID] {
				if categories[b.ID][cat] {
					common = append(common, cat)
				}
			}
			sort.Strings(common)

			rel := RelationshipIndependent
			if transfers > 5 {
				if a.Type != b.Type {
					rel = RelationshipComplementary
				} else {
					rel = RelationshipSupplementary
				}
			}

			if out[a.ID] == nil {
				out[a.ID] = make(map[int64]AccountCorrelation)
			}
			out[a.ID][b.ID] = AccountCorrelation{
				CorrelationScore:  math.Min(float64(transfers)/10, 1),
				TransferFrequency: transfers,
				CommonCategories:  common,
				RelationshipType:  rel,
			}
		}
	}
	return out, nil
}

func transferPatterns(accounts []domain.Account, txByAccount map[int64][]domain.Transaction) []TransferPattern {
	out := make([]TransferPattern, 0, len(accounts))
	for _, a := range accounts {
		var outgoing []domain.Transaction
		for _, tx := range txByAccount[a.ID] {
			if tx.Type == domain.TransactionTransferOut {
				outgoing = append(outgoing, tx)
			}
		}

		pattern := TransferPattern{
			SourceAccountID:      a.ID,
			CategoryDistribution: map[string]int{},
		}
		if len(outgoing) > 0 {
			var sum float64
			for _, tx := range outgoing {
				sum += math.Abs(tx.Amount)
				pattern.CategoryDistribution[tx.Category]++
			}
			pattern.AverageAmount = sum / float64(len(outgoing))
			pattern.Frequency = len(outgoing)
		}
		out = append(out, pattern)
	}
	return out
}

func usagePatterns(accounts []domain.Account, txByAccount map[int64][]domain.Transaction) map[int64]UsagePattern {
	out := make(map[int64]UsagePattern, len(accounts))
	for _, a := range accounts {
		txs := txByAccount[a.ID]

		pattern := UsagePattern{
			AccountID:           a.ID,
			CommonMerchants:     []string{},
			ActiveDaysOfMonth:   []int{},
			CategoryPreferences: map[string]float64{},
		}

		if a.IsCredit() && a.TotalLimit != nil && *a.TotalLimit > 0 {
			util := math.Abs(a.AvailableBalance) / *a.TotalLimit
			pattern.UtilizationRate = &util
		}

		if len(txs) > 0 {
			var total float64
			descCounts := make(map[string]int)
			days := make(map[int]bool)
			categoryValue := make(map[string]float64)
			for _, tx := range txs {
				abs := math.Abs(tx.Amount)
				total += abs
				if tx.Description != "" {
					descCounts[tx.Description]++
				}
				days[tx.TransactionDate.Day()] = true
				if tx.Category != "" {
					categoryValue[tx.Category] += abs
				}
			}

			pattern.AverageTransactionSize = total / float64(len(txs))
			pattern.CommonMerchants = topDescriptions(descCounts, 10)

			for d := range days {
				pattern.ActiveDaysOfMonth = append(pattern.ActiveDaysOfMonth, d)
			}
			sort.Ints(pattern.ActiveDaysOfMonth)

			if total > 0 {
				for cat, v := range categoryValue {
					pattern.CategoryPreferences[cat] = v / total
				}
			}
		}

		out[a.ID] = pattern
	}
	return out
}

func balanceDistributions(accounts []domain.Account, histories map[int64][]domain.BalancePoint) map[int64]BalanceDistribution {
	totalNonCredit := 0.0
	for _, a := range accounts {
		if !a.IsCredit() {
			totalNonCredit += a.AvailableBalance
		}
	}

	out := make(map[int64]BalanceDistribution, len(accounts))
	for _, a := range accounts {
		dist := BalanceDistribution{AccountID: a.ID}

		balances := balanceValues(histories[a.ID])
		if len(balances) > 0 {
			mean := mean(balances)
			sd := stddev(balances)
			dist.AverageBalance = mean
			dist.BalanceVolatility = sd
			dist.MinBalance = minOf(balances)
			dist.MaxBalance = maxOf(balances)
			dist.TypicalRange = [2]float64{mean - sd, mean + sd}
		}

		if !a.IsCredit() && totalNonCredit != 0 {
			dist.PercentageOfTotal = a.AvailableBalance / totalNonCredit
		}

		out[a.ID] = dist
	}
	return out
}

func riskAssessments(accounts []domain.Account, histories map[int64][]domain.BalancePoint) map[int64]RiskAssessment {
	out := make(map[int64]RiskAssessment, len(accounts))
	for _, a := range accounts {
		risk := RiskAssessment{AccountID: a.ID}
		balances := balanceValues(histories[a.ID])

		sd := 0.0
		if len(balances) > 0 {
			sd = stddev(balances)
		}

		if !a.IsCredit() {
			v := 0.0
			if len(balances) > 0 {
				switch minBal := minOf(balances); {
				case minBal < 0:
					v = 1.0
				case minBal < lowBalanceFloor:
					v = 0.5
				}
			}
			risk.OverdraftRisk = &v
		}

		if a.IsCredit() && a.TotalLimit != nil && *a.TotalLimit > 0 {
			util := math.Min(math.Abs(a.AvailableBalance)/(*a.TotalLimit), 1)
			risk.CreditUtilizationRisk = &util
		}

		risk.PaymentFailureRisk = 0.2
		if sd > volatilityAlarm {
			risk.PaymentFailureRisk = 0.5
		}

		if len(balances) > 0 {
			maxAbs := 0.0
			for _, b := range balances {
				if abs := math.Abs(b); abs > maxAbs {
					maxAbs = abs
				}
			}
			if maxAbs > 0 {
				risk.VolatilityScore = math.Min(sd/maxAbs, 1)
			}
		}

		// Only factors that apply to the account type enter the average;
		// a missing factor shrinks the denominator instead of counting as
		// zero risk.
		factors := []float64{risk.PaymentFailureRisk, risk.VolatilityScore}
		if risk.OverdraftRisk != nil {
			factors = append(factors, *risk.OverdraftRisk)
		}
		if risk.CreditUtilizationRisk != nil {
			factors = append(factors, *risk.CreditUtilizationRisk)
		}
		risk.OverallRiskScore = mean(factors)

		out[a.ID] = risk
	}
	return out
}

func topDescriptions(counts map[string]int, n int) []string {
	type entry struct {
		desc  string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for d, c := range counts {
		entries = append(entries, entry{d, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].desc < entries[j].desc
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.desc)
	}
	return out
}

func balanceValues(points []domain.BalancePoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Balance)
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func minOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v < out {
			out = v
		}
	}
	return out
}

func maxOf(values []float64) float64 {
	out := values[0]
	for _, v := range values[1:] {
		if v > out {
			out = v
		}
	}
	return out
}
