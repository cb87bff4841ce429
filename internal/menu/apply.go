package menu

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

// bankListBody renders the bank selection list under the given header.
func (e *Engine) bankListBody(header string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, bank := range e.cat.Banks() {
		fmt.Fprintf(&b, "\n%d. %s", i+1, bank.Name)
	}
	b.WriteString(navFooter)
	return b.String()
}

func productListBody(header string, bank *domain.Bank) string {
	var b strings.Builder
	b.WriteString(header)
	for i, p := range bank.Products {
		fmt.Fprintf(&b, "\n%d. %s (Amount: %s-%s)", i+1, p.Name, p.MinAmount, p.MaxAmount)
	}
	b.WriteString(navFooter)
	return b.String()
}

func amountPromptBody(p *domain.LoanProduct) string {
	return fmt.Sprintf("Enter amount (range: %s-%s)%s", p.MinAmount, p.MaxAmount, navFooter)
}

func confirmPromptBody(flow *domain.ApplyFlow) string {
	return fmt.Sprintf("Confirm:\nProduct: %s\nAmount: %s\n1. Confirm\n0. Cancel\n99. Back",
		flow.Product.Name, flow.Amount)
}

func (e *Engine) handleChooseBank(sess *domain.Session, input string) (ussd.Reply, error) {
	if sess.Apply == nil {
		return ussd.Reply{}, flowFault(sess)
	}

	switch input {
	case tokenHome, tokenBack:
		// Back from the first wizard step is the home menu.
		return goHome(sess), nil
	}

	if idx, err := strconv.Atoi(input); err == nil {
		if bank, ok := e.cat.Bank(idx - 1); ok {
			sess.Apply.Bank = &bank
			sess.Screen = domain.ScreenChooseProduct
			return ussd.Con(productListBody("Choose a loan product:", &bank)), nil
		}
	}
	return ussd.Con(e.bankListBody("Invalid bank choice.")), nil
}

func (e *Engine) handleChooseProduct(sess *domain.Session, input string) (ussd.Reply, error) {
	if sess.Apply == nil || sess.Apply.Bank == nil {
		return ussd.Reply{}, flowFault(sess)
	}

	switch input {
	case tokenHome:
		return goHome(sess), nil
	case tokenBack:
		sess.Apply.Bank = nil
		sess.Screen = domain.ScreenChooseBank
		return ussd.Con(e.bankListBody("Select Bank:")), nil
	}

	bank := sess.Apply.Bank
	if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(bank.Products) {
		sess.Apply.Product = &bank.Products[idx-1]
		sess.Screen = domain.ScreenApplyAmount
		return ussd.Con(amountPromptBody(sess.Apply.Product)), nil
	}
	return ussd.Con(productListBody("Invalid choice.", bank)), nil
}

func (e *Engine) handleApplyAmount(sess *domain.Session, input string) (ussd.Reply, error) {
	if sess.Apply == nil || sess.Apply.Product == nil {
		return ussd.Reply{}, flowFault(sess)
	}
	product := sess.Apply.Product

	switch input {
	case tokenHome:
		return goHome(sess), nil
	case tokenBack:
		sess.Apply.Product = nil
		sess.Screen = domain.ScreenChooseProduct
		return ussd.Con(productListBody("Choose a loan product:", sess.Apply.Bank)), nil
	case "":
		return ussd.Con(amountPromptBody(product)), nil
	}

	if amount, err := decimal.NewFromString(input); err == nil && product.InRange(amount) {
		sess.Apply.Amount = amount
		sess.Screen = domain.ScreenApplyConfirm
		return ussd.Con(confirmPromptBody(sess.Apply)), nil
	}
	return ussd.Con(fmt.Sprintf("Invalid amount. Enter a number between %s and %s:%s",
		product.MinAmount, product.MaxAmount, navFooter)), nil
}

func (e *Engine) handleApplyConfirm(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	if sess.Apply == nil || sess.Apply.Bank == nil || sess.Apply.Product == nil {
		return ussd.Reply{}, flowFault(sess)
	}
	flow := sess.Apply

	switch input {
	case tokenHome:
		return goHome(sess), nil
	case tokenBack:
		sess.Screen = domain.ScreenApplyAmount
		return ussd.Con(amountPromptBody(flow.Product)), nil
	case "1":
		interest := flow.Product.MinAmount.Mul(e.cfg.InterestRate)
		loan := domain.Loan{
			Bank:      flow.Bank.Name,
			Product:   flow.Product.Name,
			Principal: flow.Amount,
			Interest:  interest,
		}
		if _, err := e.repo.AddLoan(ctx, msisdn, loan); err != nil {
			return ussd.Reply{}, fmt.Errorf("book loan: %w", err)
		}
		return ussd.End(fmt.Sprintf(
			"Application submitted!\nBank: %s\nProduct: %s\nAmount: %s\nStatus: Active. Amount credited to your balance.",
			flow.Bank.Name, flow.Product.Name, flow.Amount)), nil
	default:
		return ussd.Con("Invalid choice.\n1. Confirm\n0. Cancel\n99. Back"), nil
	}
}
