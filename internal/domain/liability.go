package domain

import "time"

// Liability is a bill owned by the liability subsystem; this core reads it
// for cashflow projection only.
type Liability struct {
	ID      int64
	Name    string
	Amount  float64
	DueDate time.Time
	Paid    bool
}
