package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanActive LoanStatus = "Active"
	LoanRepaid LoanStatus = "Repaid"
)

// Loan is one booked loan on the ledger.
type Loan struct {
	ID        int64
	Bank      string
	Product   string
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Repaid    decimal.Decimal
	Status    LoanStatus
	CreatedAt time.Time
}

// Outstanding returns principal + interest - repaid.
func (l Loan) Outstanding() decimal.Decimal {
	return l.Principal.Add(l.Interest).Sub(l.Repaid)
}

// Repayable reports whether the loan still accepts repayments.
func (l Loan) Repayable() bool {
	return l.Status == LoanActive && l.Outstanding().IsPositive()
}
