package domain

import "testing"

func fptr(v float64) *float64 { return &v }

func TestCheckAvailability_Checking(t *testing.T) {
	a := &Account{ID: 1, Type: AccountChecking, AvailableBalance: 50}

	if err := a.CheckAvailability(50); err != nil {
		t.Fatalf("expected exact-balance debit to pass, got %v", err)
	}

	err := a.CheckAvailability(100)
	if err == nil {
		t.Fatal("expected insufficient funds error")
	}
	if kind, ok := KindOf(err); !ok || kind != KindInsufficientFunds {
		t.Fatalf("expected KindInsufficientFunds, got %v", err)
	}
}

func TestCheckAvailability_Credit(t *testing.T) {
	// carried balance -800 against a 1000 limit leaves 200 headroom
	a := &Account{ID: 2, Type: AccountCredit, AvailableBalance: -800, TotalLimit: fptr(1000)}

	if err := a.CheckAvailability(200); err != nil {
		t.Fatalf("expected debit within headroom to pass, got %v", err)
	}

	err := a.CheckAvailability(201)
	if err == nil {
		t.Fatal("expected insufficient credit error")
	}
	if kind, _ := KindOf(err); kind != KindInsufficientCredit {
		t.Fatalf("expected KindInsufficientCredit, got %v", err)
	}
}

func TestCheckAvailability_CreditPrefersStoredAvailable(t *testing.T) {
	a := &Account{ID: 3, Type: AccountCredit, AvailableBalance: -800, TotalLimit: fptr(1000), AvailableCredit: fptr(50)}

	if err := a.CheckAvailability(60); err == nil {
		t.Fatal("expected stored available credit to cap the debit")
	}
}

func TestSumMatches(t *testing.T) {
	sources := []PaymentSource{
		{AccountID: 1, Amount: 33.34},
		{AccountID: 2, Amount: 33.33},
		{AccountID: 3, Amount: 33.33},
	}
	if !SumMatches(100.00, sources) {
		t.Fatal("three-way split of 100 should satisfy the sum invariant")
	}

	if SumMatches(100.00, []PaymentSource{{AccountID: 1, Amount: 50}}) {
		t.Fatal("50 against 100 should violate the sum invariant")
	}

	// drift just past the epsilon
	if SumMatches(100.00, []PaymentSource{{AccountID: 1, Amount: 99.98}}) {
		t.Fatal("0.02 difference should exceed the epsilon")
	}
	if !SumMatches(100.00, []PaymentSource{{AccountID: 1, Amount: 99.99}}) {
		t.Fatal("0.01 difference should be within the epsilon")
	}
}

func TestAccountTypeRegistry(t *testing.T) {
	r := NewAccountTypeRegistry()

	info, ok := r.Lookup(AccountCredit)
	if !ok || !info.UsesCredit {
		t.Fatalf("expected credit type registered with UsesCredit, got %+v ok=%v", info, ok)
	}
	if r.Known("brokerage") {
		t.Fatal("unregistered type should not be known")
	}
}
