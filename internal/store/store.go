// Package store provides the ledger persistence interfaces and
// implementations: PINs, balances, loans, and the transaction log.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/natnaelb/microloan-ussd/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when a debit would exceed the
	// caller's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLoanNotFound is returned when a repayment targets a loan that
	// does not exist for the caller.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrInvalidAmount is returned for non-positive amounts or repayments
	// beyond the outstanding balance.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Repository defines the ledger operations the menu engine depends on.
// Implementations must keep each caller's ledger consistent under
// concurrent access; multi-row effects are atomic.
type Repository interface {
	// GetPIN returns the caller's stored PIN, or "" for unknown callers.
	GetPIN(ctx context.Context, msisdn string) (string, error)

	// SetPIN stores or overwrites the caller's PIN.
	SetPIN(ctx context.Context, msisdn, pin string) error

	// GetBalance returns the caller's balance, zero for unseen callers.
	GetBalance(ctx context.Context, msisdn string) (decimal.Decimal, error)

	// AdjustBalance applies a signed delta to the caller's balance,
	// creating the balance record if needed.
	AdjustBalance(ctx context.Context, msisdn string, delta decimal.Decimal) error

	// Loans returns the caller's loans in creation order.
	Loans(ctx context.Context, msisdn string) ([]domain.Loan, error)

	// AddLoan books a new Active loan, credits the caller's balance by the
	// principal, and appends a disbursement note, atomically. The returned
	// loan carries its ledger id.
	AddLoan(ctx context.Context, msisdn string, loan domain.Loan) (domain.Loan, error)

	// RepayLoan applies a repayment to the identified loan, flips its
	// status to Repaid when the outstanding reaches zero, debits the
	// caller's balance, and appends a note, atomically. Returns the
	// updated loan.
	RepayLoan(ctx context.Context, msisdn string, loanID int64, amount decimal.Decimal) (domain.Loan, error)

	// Transfer atomically debits from and credits to by the same amount,
	// appending a note to both parties. Returns the sender's new balance.
	// Fails with ErrInsufficientFunds without any mutation when the sender
	// cannot cover the amount.
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error)

	// PurchaseAirtime atomically debits the caller and appends a note.
	// Returns the new balance, or ErrInsufficientFunds without mutation.
	PurchaseAirtime(ctx context.Context, msisdn string, amount decimal.Decimal) (decimal.Decimal, error)

	// AppendTransaction appends a history note for the caller.
	AppendTransaction(ctx context.Context, msisdn, note string) error

	// RecentTransactions returns the caller's last n notes in
	// chronological order.
	RecentTransactions(ctx context.Context, msisdn string, n int) ([]string, error)

	// SeedPINs inserts PINs for callers that have none. Existing PINs are
	// left untouched.
	SeedPINs(ctx context.Context, pins map[string]string) error

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the backing store.
	Close() error
}
