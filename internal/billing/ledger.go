package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"astra-agent/internal/store"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Ledger mediates all credit balance mutations. Deductions fail closed: a
// balance is never driven negative, and a failed deduction mutates nothing.
type Ledger struct {
	store *store.Store
	log   *zap.Logger
}

func NewLedger(st *store.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: st, log: log}
}

// Balance returns the current credit balance; store.ErrNotFound when the
// user has no profile.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.store.GetCredit(ctx, userID)
}

// Deduct removes amount from the balance. The user must have a profile and
// a balance of at least amount.
func (l *Ledger) Deduct(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.store.GetCredit(ctx, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientCredits, balance, amount)
	}
	if err := l.store.SetCredit(ctx, userID, balance-amount); err != nil {
		return err
	}
	l.log.Info("deducted credits", zap.String("user_id", userID),
		zap.Int("amount", amount), zap.Int("balance", balance-amount))
	return nil
}

// Increment adds amount to the balance, treating a missing profile as zero.
func (l *Ledger) Increment(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.store.GetCredit(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := l.store.SetCredit(ctx, userID, balance+amount); err != nil {
		return err
	}
	l.log.Info("incremented credits", zap.String("user_id", userID),
		zap.Int("amount", amount), zap.Int("balance", balance+amount))
	return nil
}
