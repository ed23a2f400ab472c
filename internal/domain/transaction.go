package domain

import "time"

type TransactionType string

const (
	TransactionDebit       TransactionType = "debit"
	TransactionCredit      TransactionType = "credit"
	TransactionTransferIn  TransactionType = "transfer_in"
	TransactionTransferOut TransactionType = "transfer_out"
)

// Transaction is one row of an account's history, the raw material for the
// cross-account analytics engine.
type Transaction struct {
	ID          int64
	AccountID   int64
	Amount      float64
	Description string
	Category    string
	Type        TransactionType

	// TransferAccountID is the counterparty account for transfer rows.
	TransferAccountID *int64

	TransactionDate time.Time
}

// BalancePoint is a recorded balance observation used for the trailing
// 30-day distribution and risk windows.
type BalancePoint struct {
	AccountID  int64
	Balance    float64
	RecordedAt time.Time
}
