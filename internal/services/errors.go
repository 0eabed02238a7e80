package services

import (
	"errors"
	"fmt"

	"cashbook/internal/money"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrMovementNotFound       = errors.New("movement not found")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidKind            = errors.New("kind must be income or expense")
	ErrInvalidBusinessDate    = errors.New("business date must be YYYY-MM-DD")
	ErrReasonRequired         = errors.New("reversal reason is required")
	ErrAlreadyReversed        = errors.New("movement already reversed")
	ErrReversalOfReversal     = errors.New("cannot reverse a reversal")
	ErrDuplicateVoucher       = errors.New("voucher number already used")
	ErrConcurrentModification = errors.New("account was modified concurrently")
)

// InsufficientBalanceError carries the figures the UI shows the operator.
type InsufficientBalanceError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, need %s",
		money.FormatMinor(e.Balance), money.FormatMinor(e.Required))
}
