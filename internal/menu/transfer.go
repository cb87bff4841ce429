package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/store"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

func (e *Engine) handleTransferNumber(sess *domain.Session, input string) (ussd.Reply, error) {
	if sess.Transfer == nil {
		return ussd.Reply{}, flowFault(sess)
	}

	switch input {
	case tokenHome, tokenBack:
		return goHome(sess), nil
	case "":
		return ussd.Con("Enter recipient phone number:" + navFooter), nil
	}

	// Recipient identity is an opaque ledger key; no format validation.
	sess.Transfer.Recipient = input
	sess.Screen = domain.ScreenTransferAmount
	return ussd.Con("Enter amount to transfer:" + navFooter), nil
}

func (e *Engine) handleTransferAmount(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	if sess.Transfer == nil || sess.Transfer.Recipient == "" {
		return ussd.Reply{}, flowFault(sess)
	}

	switch input {
	case tokenHome:
		return goHome(sess), nil
	case tokenBack:
		sess.Transfer.Recipient = ""
		sess.Screen = domain.ScreenTransferNumber
		return ussd.Con("Enter recipient phone number:" + navFooter), nil
	case "":
		return ussd.Con("Enter amount to transfer:" + navFooter), nil
	}

	amount, err := decimal.NewFromString(input)
	if err != nil || !amount.IsPositive() {
		return ussd.Con("Invalid amount. Enter amount to transfer:" + navFooter), nil
	}

	recipient := sess.Transfer.Recipient
	newBalance, err := e.repo.Transfer(ctx, msisdn, recipient, amount)
	if errors.Is(err, store.ErrInsufficientFunds) {
		return ussd.End("Insufficient balance."), nil
	}
	if err != nil {
		return ussd.Reply{}, fmt.Errorf("transfer: %w", err)
	}

	return ussd.End(fmt.Sprintf("Transferred %s to %s. New balance: %s", amount, recipient, newBalance)), nil
}

func (e *Engine) handleAirtimeAmount(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	switch input {
	case tokenHome, tokenBack:
		return goHome(sess), nil
	case "":
		return ussd.Con("Enter airtime amount:" + navFooter), nil
	}

	amount, err := decimal.NewFromString(input)
	if err != nil || !amount.IsPositive() {
		return ussd.Con("Invalid amount. Enter airtime amount:" + navFooter), nil
	}

	newBalance, err := e.repo.PurchaseAirtime(ctx, msisdn, amount)
	if errors.Is(err, store.ErrInsufficientFunds) {
		return ussd.End("Insufficient balance."), nil
	}
	if err != nil {
		return ussd.Reply{}, fmt.Errorf("airtime purchase: %w", err)
	}

	return ussd.End(fmt.Sprintf("Airtime purchase of %s successful. New balance: %s", amount, newBalance)), nil
}
