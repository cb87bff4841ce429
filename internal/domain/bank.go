// Package domain holds the core types shared across the service.
package domain

import "github.com/shopspring/decimal"

// LoanProduct is an immutable catalog entry with eligibility bounds.
type LoanProduct struct {
	Name           string
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	MinCreditScore int
	Description    string
}

// InRange reports whether amount lies within the product's [min, max] bounds.
func (p LoanProduct) InRange(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(p.MinAmount) && amount.LessThanOrEqual(p.MaxAmount)
}

// Bank is an immutable catalog entry owning an ordered list of products.
type Bank struct {
	Name     string
	Products []LoanProduct
}
