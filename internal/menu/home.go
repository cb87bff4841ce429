package menu

import (
	"context"
	"fmt"
	"strings"

	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

func (e *Engine) handleHome(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	if !sess.Authenticated {
		// Inconsistent session; self-heal back to authentication.
		sess.Screen = domain.ScreenPIN
		sess.PINAttempts = 0
		return ussd.Con(msgEnterPIN), nil
	}

	switch input {
	case "":
		return ussd.Con(homeMenuBody), nil

	case "1":
		sess.Apply = &domain.ApplyFlow{}
		sess.Screen = domain.ScreenChooseBank
		return ussd.Con(e.bankListBody("Select Bank:")), nil

	case "2":
		loans, err := e.repo.Loans(ctx, msisdn)
		if err != nil {
			return ussd.Reply{}, fmt.Errorf("load loans: %w", err)
		}
		if len(loans) == 0 {
			return ussd.End("You have no loans."), nil
		}
		sess.Status = &domain.StatusFlow{}
		sess.Screen = domain.ScreenLoanStatus
		return ussd.Con(e.statusPageBody(loans, 0)), nil

	case "3":
		loans, err := e.repo.Loans(ctx, msisdn)
		if err != nil {
			return ussd.Reply{}, fmt.Errorf("load loans: %w", err)
		}
		repayable := make([]domain.Loan, 0, len(loans))
		for _, l := range loans {
			if l.Repayable() {
				repayable = append(repayable, l)
			}
		}
		if len(repayable) == 0 {
			return ussd.End("No active loans to repay."), nil
		}
		sess.Repay = &domain.RepayFlow{Loans: repayable}
		sess.Screen = domain.ScreenRepaySelect
		return ussd.Con(e.repayListBody(sess.Repay)), nil

	case "4":
		balance, err := e.repo.GetBalance(ctx, msisdn)
		if err != nil {
			return ussd.Reply{}, fmt.Errorf("load balance: %w", err)
		}
		return ussd.End("Your account balance is: " + balance.String()), nil

	case "5":
		notes, err := e.repo.RecentTransactions(ctx, msisdn, e.cfg.HistoryLimit)
		if err != nil {
			return ussd.Reply{}, fmt.Errorf("load transactions: %w", err)
		}
		if len(notes) == 0 {
			return ussd.End("No transactions found."), nil
		}
		return ussd.End("Transaction History:\n" + strings.Join(notes, "\n")), nil

	case "6":
		sess.Screen = domain.ScreenChangePIN
		return ussd.Con("Enter new 4-digit PIN:"), nil

	case "7":
		sess.Transfer = &domain.TransferFlow{}
		sess.Screen = domain.ScreenTransferNumber
		return ussd.Con("Enter recipient phone number:" + navFooter), nil

	case "8":
		sess.Screen = domain.ScreenAirtimeAmount
		return ussd.Con("Enter airtime amount:" + navFooter), nil

	case tokenHome:
		return ussd.End(msgGoodbye), nil

	default:
		return ussd.Con("Invalid choice.\n" + homeMenuBody), nil
	}
}
