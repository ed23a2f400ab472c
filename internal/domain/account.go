package domain

import "fmt"

// AccountType is a closed set; availability rules dispatch on it with an
// exhaustive switch rather than by looking behavior up by name.
type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountCredit   AccountType = "credit"
)

type Account struct {
	ID   int64
	Name string
	Type AccountType

	// AvailableBalance is the current balance. For credit accounts it is
	// negative (or zero) and represents the outstanding carried balance.
	AvailableBalance float64

	// TotalLimit and AvailableCredit are set for credit accounts only.
	TotalLimit      *float64
	AvailableCredit *float64
}

// IsCredit reports whether debits against this account consume credit
// headroom instead of funds.
func (a *Account) IsCredit() bool {
	return a.Type == AccountCredit
}

// CreditHeadroom returns remaining spendable credit for a credit account:
// total limit minus the absolute carried balance. Zero for non-credit types.
func (a *Account) CreditHeadroom() float64 {
	if a.Type != AccountCredit || a.TotalLimit == nil {
		return 0
	}
	carried := a.AvailableBalance
	if carried < 0 {
		carried = -carried
	}
	return *a.TotalLimit - carried
}

// CheckAvailability answers whether the account can cover a debit of amount.
// The returned error is typed (InsufficientFunds / InsufficientCredit) so the
// caller can surface it without inspecting account type again.
func (a *Account) CheckAvailability(amount float64) error {
	switch a.Type {
	case AccountChecking, AccountSavings:
		if a.AvailableBalance < amount {
			return NewInsufficientFundsError(fmt.Sprintf(
				"account %d has %.2f available, needs %.2f", a.ID, a.AvailableBalance, amount))
		}
		return nil
	case AccountCredit:
		headroom := a.CreditHeadroom()
		if a.AvailableCredit != nil {
			headroom = *a.AvailableCredit
		}
		if headroom < amount {
			return NewInsufficientCreditError(fmt.Sprintf(
				"account %d has %.2f credit available, needs %.2f", a.ID, headroom, amount))
		}
		return nil
	default:
		return NewValidationError("account_type", fmt.Sprintf("unknown account type %q", a.Type))
	}
}

// AccountTypeInfo describes one registered account type.
type AccountTypeInfo struct {
	Type        AccountType
	DisplayName string
	UsesCredit  bool
}

// AccountTypeRegistry is constructed once in main and injected where type
// lookups are needed; there is no package-level instance.
type AccountTypeRegistry struct {
	types map[AccountType]AccountTypeInfo
}

func NewAccountTypeRegistry() *AccountTypeRegistry {
	r := &AccountTypeRegistry{types: make(map[AccountType]AccountTypeInfo)}
	r.register(AccountTypeInfo{Type: AccountChecking, DisplayName: "Checking", UsesCredit: false})
	r.register(AccountTypeInfo{Type: AccountSavings, DisplayName: "Savings", UsesCredit: false})
	r.register(AccountTypeInfo{Type: AccountCredit, DisplayName: "Credit", UsesCredit: true})
	return r
}

func (r *AccountTypeRegistry) register(info AccountTypeInfo) {
	r.types[info.Type] = info
}

func (r *AccountTypeRegistry) Lookup(t AccountType) (AccountTypeInfo, bool) {
	info, ok := r.types[t]
	return info, ok
}

func (r *AccountTypeRegistry) Known(t AccountType) bool {
	_, ok := r.types[t]
	return ok
}
