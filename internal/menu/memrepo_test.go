package menu

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/store"
)

// memRepo is an in-memory Repository for engine tests, mirroring the
// sqlite store's semantics.
type memRepo struct {
	mu       sync.Mutex
	pins     map[string]string
	balances map[string]decimal.Decimal
	loans    map[string][]domain.Loan
	notes    map[string][]string
	nextID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		pins:     make(map[string]string),
		balances: make(map[string]decimal.Decimal),
		loans:    make(map[string][]domain.Loan),
		notes:    make(map[string][]string),
	}
}

func (m *memRepo) GetPIN(_ context.Context, msisdn string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pins[msisdn], nil
}

func (m *memRepo) SetPIN(_ context.Context, msisdn, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pins[msisdn] = pin
	return nil
}

func (m *memRepo) SeedPINs(_ context.Context, pins map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for msisdn, pin := range pins {
		if _, ok := m.pins[msisdn]; !ok {
			m.pins[msisdn] = pin
		}
	}
	return nil
}

func (m *memRepo) GetBalance(_ context.Context, msisdn string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[msisdn], nil
}

func (m *memRepo) AdjustBalance(_ context.Context, msisdn string, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[msisdn] = m.balances[msisdn].Add(delta)
	return nil
}

func (m *memRepo) Loans(_ context.Context, msisdn string) ([]domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Loan, len(m.loans[msisdn]))
	copy(out, m.loans[msisdn])
	return out, nil
}

func (m *memRepo) AddLoan(_ context.Context, msisdn string, loan domain.Loan) (domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan.Principal.IsNegative() || loan.Interest.IsNegative() {
		return domain.Loan{}, store.ErrInvalidAmount
	}
	m.nextID++
	loan.ID = m.nextID
	loan.Repaid = decimal.Zero
	loan.Status = domain.LoanActive
	m.loans[msisdn] = append(m.loans[msisdn], loan)
	m.balances[msisdn] = m.balances[msisdn].Add(loan.Principal)
	m.notes[msisdn] = append(m.notes[msisdn], "Loan disbursed: "+loan.Bank+" "+loan.Product+", amount "+loan.Principal.String())
	return loan, nil
}

func (m *memRepo) RepayLoan(_ context.Context, msisdn string, loanID int64, amount decimal.Decimal) (domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !amount.IsPositive() {
		return domain.Loan{}, store.ErrInvalidAmount
	}
	loans := m.loans[msisdn]
	for i := range loans {
		if loans[i].ID != loanID {
			continue
		}
		if amount.GreaterThan(loans[i].Outstanding()) {
			return domain.Loan{}, store.ErrInvalidAmount
		}
		loans[i].Repaid = loans[i].Repaid.Add(amount)
		if !loans[i].Outstanding().IsPositive() {
			loans[i].Status = domain.LoanRepaid
		}
		m.balances[msisdn] = m.balances[msisdn].Sub(amount)
		m.notes[msisdn] = append(m.notes[msisdn], "Loan repayment: "+loans[i].Bank+" "+loans[i].Product+", amount "+amount.String())
		return loans[i], nil
	}
	return domain.Loan{}, store.ErrLoanNotFound
}

func (m *memRepo) Transfer(_ context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !amount.IsPositive() {
		return decimal.Zero, store.ErrInvalidAmount
	}
	if m.balances[from].LessThan(amount) {
		return decimal.Zero, store.ErrInsufficientFunds
	}
	m.balances[from] = m.balances[from].Sub(amount)
	m.balances[to] = m.balances[to].Add(amount)
	m.notes[from] = append(m.notes[from], "Transfer of "+amount.String()+" to "+to)
	m.notes[to] = append(m.notes[to], "Transfer of "+amount.String()+" from "+from)
	return m.balances[from], nil
}

func (m *memRepo) PurchaseAirtime(_ context.Context, msisdn string, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !amount.IsPositive() {
		return decimal.Zero, store.ErrInvalidAmount
	}
	if m.balances[msisdn].LessThan(amount) {
		return decimal.Zero, store.ErrInsufficientFunds
	}
	m.balances[msisdn] = m.balances[msisdn].Sub(amount)
	m.notes[msisdn] = append(m.notes[msisdn], "Airtime purchase of "+amount.String())
	return m.balances[msisdn], nil
}

func (m *memRepo) AppendTransaction(_ context.Context, msisdn, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[msisdn] = append(m.notes[msisdn], note)
	return nil
}

func (m *memRepo) RecentTransactions(_ context.Context, msisdn string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	notes := m.notes[msisdn]
	if n < len(notes) {
		notes = notes[len(notes)-n:]
	}
	out := make([]string, len(notes))
	copy(out, notes)
	return out, nil
}

func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }
