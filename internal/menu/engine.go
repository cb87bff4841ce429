// Package menu implements the USSD menu state machine. Each screen has a
// handler that maps the latest input token to the next screen, session
// mutations, ledger side effects, and the outbound reply.
package menu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/natnaelb/microloan-ussd/internal/catalog"
	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/store"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

// Universal navigation tokens.
const (
	tokenHome = "0"
	tokenBack = "99"
	tokenMore = "9"
)

const (
	msgEnterPIN         = "Enter your 4-digit PIN:"
	msgInvalidPINFormat = "Invalid PIN format. Enter your 4-digit PIN:"
	msgLockout          = "Too many incorrect PIN attempts. Session ended."
	msgGoodbye          = "Thank you for using Microloan USSD."
	msgSessionError     = "Session error. Please try again."

	homeMenuBody = "Welcome to Microloan USSD.\n" +
		"1. Apply for Loan\n" +
		"2. Check Loan Status\n" +
		"3. Repay Loan\n" +
		"4. Check Balance\n" +
		"5. Transaction History\n" +
		"6. Change PIN\n" +
		"7. Transfer Money\n" +
		"8. Buy Airtime\n" +
		"0. Exit"

	navFooter = "\n0. Home\n99. Back"
)

// Config is the policy the engine applies.
type Config struct {
	MaxPINAttempts int
	DefaultPIN     string // PIN for unknown callers; empty fails closed
	InterestRate   decimal.Decimal
	PageSize       int
	HistoryLimit   int
}

// Engine is the menu state machine. It is stateless itself; all
// conversation state lives in the session record, all ledger state behind
// the repository.
type Engine struct {
	repo store.Repository
	cat  *catalog.Catalog
	cfg  Config
}

// New creates an engine. Zero config fields get the reference defaults.
func New(repo store.Repository, cat *catalog.Catalog, cfg Config) *Engine {
	if cfg.MaxPINAttempts <= 0 {
		cfg.MaxPINAttempts = 3
	}
	if cfg.InterestRate.IsZero() {
		cfg.InterestRate = decimal.NewFromFloat(0.08)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 2
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	return &Engine{repo: repo, cat: cat, cfg: cfg}
}

// Handle computes one transition for the session given the latest input
// token. A Reply with End set is a terminal outcome; the caller is
// responsible for deleting the session. A returned error is an internal
// fault the caller must translate into a generic terminal reply.
func (e *Engine) Handle(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	switch sess.Screen {
	case domain.ScreenPIN:
		return e.handlePIN(ctx, sess, msisdn, input)
	case domain.ScreenHome:
		return e.handleHome(ctx, sess, msisdn, input)
	case domain.ScreenChooseBank:
		return e.handleChooseBank(sess, input)
	case domain.ScreenChooseProduct:
		return e.handleChooseProduct(sess, input)
	case domain.ScreenApplyAmount:
		return e.handleApplyAmount(sess, input)
	case domain.ScreenApplyConfirm:
		return e.handleApplyConfirm(ctx, sess, msisdn, input)
	case domain.ScreenLoanStatus:
		return e.handleLoanStatus(ctx, sess, msisdn, input)
	case domain.ScreenRepaySelect:
		return e.handleRepaySelect(sess, input)
	case domain.ScreenRepayAmount:
		return e.handleRepayAmount(ctx, sess, msisdn, input)
	case domain.ScreenChangePIN:
		return e.handleChangePIN(ctx, msisdn, input)
	case domain.ScreenTransferNumber:
		return e.handleTransferNumber(sess, input)
	case domain.ScreenTransferAmount:
		return e.handleTransferAmount(ctx, sess, msisdn, input)
	case domain.ScreenAirtimeAmount:
		return e.handleAirtimeAmount(ctx, sess, msisdn, input)
	default:
		slog.Error("Session reached unknown screen", "session_id", sess.ID, "screen", int(sess.Screen))
		return ussd.End(msgSessionError), nil
	}
}

// goHome returns the session to the home menu, dropping all flow state.
func goHome(sess *domain.Session) ussd.Reply {
	sess.Screen = domain.ScreenHome
	sess.ResetFlows()
	return ussd.Con(homeMenuBody)
}

// flowFault signals an internally inconsistent session, e.g. a wizard
// screen without its flow state.
func flowFault(sess *domain.Session) error {
	return fmt.Errorf("flow state missing on screen %s for session %s", sess.Screen, sess.ID)
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func hasMore(total, page, size int) bool {
	return (page+1)*size < total
}

func pageOf(loans []domain.Loan, page, size int) []domain.Loan {
	start := page * size
	if start >= len(loans) {
		return nil
	}
	end := start + size
	if end > len(loans) {
		end = len(loans)
	}
	return loans[start:end]
}
