package domain

import "fmt"

// ErrorKind is the closed set of failure categories the ledger core can
// report. The HTTP layer owns the mapping from kind to response status.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindReference
	KindInsufficientFunds
	KindInsufficientCredit
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReference:
		return "reference"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindInsufficientCredit:
		return "insufficient_credit"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the single typed error the service layer raises. Field is empty
// when the failure is not tied to one input field.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NewReferenceError(field, message string) *Error {
	return &Error{Kind: KindReference, Field: field, Message: message}
}

func NewInsufficientFundsError(message string) *Error {
	return &Error{Kind: KindInsufficientFunds, Message: message}
}

func NewInsufficientCreditError(message string) *Error {
	return &Error{Kind: KindInsufficientCredit, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf reports the ErrorKind of err when it is a *Error.
func KindOf(err error) (ErrorKind, bool) {
	e, ok := err.(*Error)
	if !ok {
		return 0, false
	}
	return e.Kind, true
}
