package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/natnaelb/microloan-ussd/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	ledgerMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS pins (
		msisdn TEXT PRIMARY KEY,
		pin TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balances (
		msisdn TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		msisdn TEXT NOT NULL,
		bank TEXT NOT NULL,
		product TEXT NOT NULL,
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		repaid TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_msisdn ON loans(msisdn, id);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		msisdn TEXT NOT NULL,
		note TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_msisdn ON transactions(msisdn, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetPIN returns the caller's stored PIN, or "" for unknown callers.
func (s *SQLiteStore) GetPIN(ctx context.Context, msisdn string) (string, error) {
	var pin string
	err := s.db.QueryRowContext(ctx, `SELECT pin FROM pins WHERE msisdn = ?`, msisdn).Scan(&pin)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scan pin: %w", err)
	}
	return pin, nil
}

// SetPIN stores or overwrites the caller's PIN.
func (s *SQLiteStore) SetPIN(ctx context.Context, msisdn, pin string) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	query := `
	INSERT INTO pins (msisdn, pin, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(msisdn) DO UPDATE SET pin = excluded.pin, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, msisdn, pin, time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert pin: %w", err)
	}
	return nil
}

// SeedPINs inserts PINs for callers that have none.
func (s *SQLiteStore) SeedPINs(ctx context.Context, pins map[string]string) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	now := time.Now().Unix()
	for msisdn, pin := range pins {
		query := `INSERT INTO pins (msisdn, pin, updated_at) VALUES (?, ?, ?) ON CONFLICT(msisdn) DO NOTHING`
		if _, err := s.db.ExecContext(ctx, query, msisdn, pin, now); err != nil {
			return fmt.Errorf("seed pin for %s: %w", msisdn, err)
		}
	}
	return nil
}

// GetBalance returns the caller's balance, zero for unseen callers.
func (s *SQLiteStore) GetBalance(ctx context.Context, msisdn string) (decimal.Decimal, error) {
	return getBalance(ctx, s.db, msisdn)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBalance(ctx context.Context, q querier, msisdn string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT amount FROM balances WHERE msisdn = ?`, msisdn).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("scan balance: %w", err)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse stored balance %q: %w", raw, err)
	}
	return amount, nil
}

func setBalanceTx(ctx context.Context, tx *sql.Tx, msisdn string, amount decimal.Decimal) error {
	query := `
	INSERT INTO balances (msisdn, amount, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(msisdn) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, query, msisdn, amount.String(), time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func appendNoteTx(ctx context.Context, tx *sql.Tx, msisdn, note string) error {
	query := `INSERT INTO transactions (msisdn, note, created_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, msisdn, note, time.Now().Unix()); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// AdjustBalance applies a signed delta to the caller's balance.
func (s *SQLiteStore) AdjustBalance(ctx context.Context, msisdn string, delta decimal.Decimal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getBalance(ctx, tx, msisdn)
		if err != nil {
			return err
		}
		return setBalanceTx(ctx, tx, msisdn, current.Add(delta))
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Loans returns the caller's loans in creation order.
func (s *SQLiteStore) Loans(ctx context.Context, msisdn string) ([]domain.Loan, error) {
	query := `
		SELECT id, bank, product, principal, interest, repaid, status, created_at
		FROM loans WHERE msisdn = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, msisdn)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return loans, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (domain.Loan, error) {
	var loan domain.Loan
	var principal, interest, repaid, status string
	var createdAt int64

	if err := row.Scan(&loan.ID, &loan.Bank, &loan.Product, &principal, &interest, &repaid, &status, &createdAt); err != nil {
		return domain.Loan{}, fmt.Errorf("scan loan row: %w", err)
	}

	var err error
	if loan.Principal, err = decimal.NewFromString(principal); err != nil {
		return domain.Loan{}, fmt.Errorf("parse stored principal %q: %w", principal, err)
	}
	if loan.Interest, err = decimal.NewFromString(interest); err != nil {
		return domain.Loan{}, fmt.Errorf("parse stored interest %q: %w", interest, err)
	}
	if loan.Repaid, err = decimal.NewFromString(repaid); err != nil {
		return domain.Loan{}, fmt.Errorf("parse stored repaid %q: %w", repaid, err)
	}
	loan.Status = domain.LoanStatus(status)
	loan.CreatedAt = time.Unix(createdAt, 0)
	return loan, nil
}

// AddLoan books a new Active loan, credits the principal, and appends a
// disbursement note in one transaction.
func (s *SQLiteStore) AddLoan(ctx context.Context, msisdn string, loan domain.Loan) (domain.Loan, error) {
	if loan.Principal.IsNegative() || loan.Interest.IsNegative() {
		return domain.Loan{}, ErrInvalidAmount
	}

	loan.Repaid = decimal.Zero
	loan.Status = domain.LoanActive
	loan.CreatedAt = time.Now()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO loans (msisdn, bank, product, principal, interest, repaid, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msisdn, loan.Bank, loan.Product,
			loan.Principal.String(), loan.Interest.String(), loan.Repaid.String(),
			string(loan.Status), loan.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert loan: %w", err)
		}
		loan.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("loan insert id: %w", err)
		}

		current, err := getBalance(ctx, tx, msisdn)
		if err != nil {
			return err
		}
		if err := setBalanceTx(ctx, tx, msisdn, current.Add(loan.Principal)); err != nil {
			return err
		}

		note := fmt.Sprintf("Loan disbursed: %s %s, amount %s", loan.Bank, loan.Product, loan.Principal)
		return appendNoteTx(ctx, tx, msisdn, note)
	})
	if err != nil {
		return domain.Loan{}, err
	}
	return loan, nil
}

// RepayLoan applies a repayment to the loan and debits the balance in one
// transaction.
func (s *SQLiteStore) RepayLoan(ctx context.Context, msisdn string, loanID int64, amount decimal.Decimal) (domain.Loan, error) {
	if !amount.IsPositive() {
		return domain.Loan{}, ErrInvalidAmount
	}

	var updated domain.Loan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, bank, product, principal, interest, repaid, status, created_at
			FROM loans WHERE id = ? AND msisdn = ?`, loanID, msisdn)
		loan, err := scanLoan(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLoanNotFound
		}
		if err != nil {
			return err
		}

		if amount.GreaterThan(loan.Outstanding()) {
			return ErrInvalidAmount
		}

		loan.Repaid = loan.Repaid.Add(amount)
		if !loan.Outstanding().IsPositive() {
			loan.Status = domain.LoanRepaid
		}

		_, err = tx.ExecContext(ctx, `UPDATE loans SET repaid = ?, status = ? WHERE id = ?`,
			loan.Repaid.String(), string(loan.Status), loan.ID)
		if err != nil {
			return fmt.Errorf("update loan: %w", err)
		}

		current, err := getBalance(ctx, tx, msisdn)
		if err != nil {
			return err
		}
		if err := setBalanceTx(ctx, tx, msisdn, current.Sub(amount)); err != nil {
			return err
		}

		note := fmt.Sprintf("Loan repayment: %s %s, amount %s", loan.Bank, loan.Product, amount)
		if err := appendNoteTx(ctx, tx, msisdn, note); err != nil {
			return err
		}

		updated = loan
		return nil
	})
	if err != nil {
		return domain.Loan{}, err
	}
	return updated, nil
}

// Transfer atomically moves amount between two callers.
func (s *SQLiteStore) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var newBalance decimal.Decimal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sender, err := getBalance(ctx, tx, from)
		if err != nil {
			return err
		}
		if sender.LessThan(amount) {
			return ErrInsufficientFunds
		}

		recipient, err := getBalance(ctx, tx, to)
		if err != nil {
			return err
		}

		newBalance = sender.Sub(amount)
		if err := setBalanceTx(ctx, tx, from, newBalance); err != nil {
			return err
		}
		if err := setBalanceTx(ctx, tx, to, recipient.Add(amount)); err != nil {
			return err
		}

		if err := appendNoteTx(ctx, tx, from, fmt.Sprintf("Transfer of %s to %s", amount, to)); err != nil {
			return err
		}
		return appendNoteTx(ctx, tx, to, fmt.Sprintf("Transfer of %s from %s", amount, from))
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// PurchaseAirtime atomically debits the caller for an airtime purchase.
func (s *SQLiteStore) PurchaseAirtime(ctx context.Context, msisdn string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	var newBalance decimal.Decimal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getBalance(ctx, tx, msisdn)
		if err != nil {
			return err
		}
		if current.LessThan(amount) {
			return ErrInsufficientFunds
		}

		newBalance = current.Sub(amount)
		if err := setBalanceTx(ctx, tx, msisdn, newBalance); err != nil {
			return err
		}
		return appendNoteTx(ctx, tx, msisdn, fmt.Sprintf("Airtime purchase of %s", amount))
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// AppendTransaction appends a history note for the caller.
func (s *SQLiteStore) AppendTransaction(ctx context.Context, msisdn, note string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return appendNoteTx(ctx, tx, msisdn, note)
	})
}

// RecentTransactions returns the caller's last n notes, oldest first.
func (s *SQLiteStore) RecentTransactions(ctx context.Context, msisdn string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	query := `SELECT note FROM transactions WHERE msisdn = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, msisdn, n)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	// Rows came newest-first; flip to chronological order.
	for i, j := 0, len(notes)-1; i < j; i, j = i+1, j-1 {
		notes[i], notes[j] = notes[j], notes[i]
	}
	return notes, nil
}
