package menu

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/store"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

// statusPageBody renders one page of the loan status list. Rows are
// numbered absolutely; "9. More" appears only while further pages remain.
func (e *Engine) statusPageBody(loans []domain.Loan, page int) string {
	var b strings.Builder
	b.WriteString("Your Loan Status:")
	for i, loan := range pageOf(loans, page, e.cfg.PageSize) {
		fmt.Fprintf(&b, "\n%d. %s, %s, Outstanding: %s",
			page*e.cfg.PageSize+i+1, loan.Bank, loan.Product, loan.Outstanding())
	}
	if hasMore(len(loans), page, e.cfg.PageSize) {
		b.WriteString("\n9. More")
	}
	b.WriteString(navFooter)
	return b.String()
}

func (e *Engine) handleLoanStatus(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	if sess.Status == nil {
		return ussd.Reply{}, flowFault(sess)
	}

	switch input {
	case tokenHome, tokenBack:
		return goHome(sess), nil
	}

	loans, err := e.repo.Loans(ctx, msisdn)
	if err != nil {
		return ussd.Reply{}, fmt.Errorf("load loans: %w", err)
	}
	if len(loans) == 0 {
		return ussd.End("You have no loans."), nil
	}

	if input == tokenMore && hasMore(len(loans), sess.Status.Page, e.cfg.PageSize) {
		sess.Status.Page++
	}
	// Any other input re-renders the current page.
	return ussd.Con(e.statusPageBody(loans, sess.Status.Page)), nil
}

// repayListBody renders one page of the repayable-loan selection list.
func (e *Engine) repayListBody(flow *domain.RepayFlow) string {
	var b strings.Builder
	b.WriteString("Select loan to repay:")
	for i, loan := range pageOf(flow.Loans, flow.Page, e.cfg.PageSize) {
		fmt.Fprintf(&b, "\n%d. %s - %s (Outstanding: %s)",
			flow.Page*e.cfg.PageSize+i+1, loan.Bank, loan.Product, loan.Outstanding())
	}
	if hasMore(len(flow.Loans), flow.Page, e.cfg.PageSize) {
		b.WriteString("\n9. More")
	}
	b.WriteString(navFooter)
	return b.String()
}

func (e *Engine) handleRepaySelect(sess *domain.Session, input string) (ussd.Reply, error) {
	if sess.Repay == nil {
		return ussd.Reply{}, flowFault(sess)
	}
	flow := sess.Repay

	switch input {
	case tokenHome, tokenBack:
		return goHome(sess), nil
	case tokenMore:
		if hasMore(len(flow.Loans), flow.Page, e.cfg.PageSize) {
			flow.Page++
		}
		return ussd.Con(e.repayListBody(flow)), nil
	}

	// Selection is relative to the rows on the current page.
	pageLoans := pageOf(flow.Loans, flow.Page, e.cfg.PageSize)
	if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(pageLoans) {
		selected := pageLoans[idx-1]
		flow.Selected = &selected
		sess.Screen = domain.ScreenRepayAmount
		return ussd.Con(fmt.Sprintf("Enter amount to repay (Outstanding: %s):%s",
			selected.Outstanding(), navFooter)), nil
	}
	return ussd.Con(e.repayListBody(flow)), nil
}

func (e *Engine) handleRepayAmount(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	if sess.Repay == nil || sess.Repay.Selected == nil {
		return ussd.Reply{}, flowFault(sess)
	}
	loan := sess.Repay.Selected
	outstanding := loan.Outstanding()

	switch input {
	case tokenHome:
		return goHome(sess), nil
	case tokenBack:
		sess.Repay.Selected = nil
		sess.Screen = domain.ScreenRepaySelect
		return ussd.Con(e.repayListBody(sess.Repay)), nil
	case "":
		return ussd.Con(fmt.Sprintf("Enter amount to repay (Outstanding: %s):%s",
			outstanding, navFooter)), nil
	}

	amount, err := decimal.NewFromString(input)
	if err != nil || !amount.IsPositive() || amount.GreaterThan(outstanding) {
		return ussd.Con(fmt.Sprintf("Invalid amount. Enter a number between 1 and %s:%s",
			outstanding, navFooter)), nil
	}

	updated, err := e.repo.RepayLoan(ctx, msisdn, loan.ID, amount)
	if errors.Is(err, store.ErrInvalidAmount) {
		// The snapshot can be stale when the ledger moved underneath us.
		return ussd.Con(fmt.Sprintf("Invalid amount. Enter a number between 1 and %s:%s",
			outstanding, navFooter)), nil
	}
	if err != nil {
		return ussd.Reply{}, fmt.Errorf("repay loan: %w", err)
	}

	return ussd.End(fmt.Sprintf("Repayment of %s for loan %s at %s successful. Outstanding: %s",
		amount, updated.Product, updated.Bank, updated.Outstanding())), nil
}
