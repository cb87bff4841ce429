package menu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/natnaelb/microloan-ussd/internal/domain"
	"github.com/natnaelb/microloan-ussd/internal/metrics"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

func (e *Engine) handlePIN(ctx context.Context, sess *domain.Session, msisdn, input string) (ussd.Reply, error) {
	if input == "" {
		return ussd.Con(msgEnterPIN), nil
	}
	if !isFourDigits(input) {
		return ussd.Con(msgInvalidPINFormat), nil
	}

	stored, err := e.repo.GetPIN(ctx, msisdn)
	if err != nil {
		return ussd.Reply{}, fmt.Errorf("load pin: %w", err)
	}
	if stored == "" {
		// Unknown caller: fall back to the configured default PIN. An
		// empty default fails closed.
		stored = e.cfg.DefaultPIN
	}

	if stored != "" && input == stored {
		sess.Authenticated = true
		sess.PINAttempts = 0
		sess.Screen = domain.ScreenHome
		return ussd.Con(homeMenuBody), nil
	}

	sess.PINAttempts++
	if sess.PINAttempts >= e.cfg.MaxPINAttempts {
		slog.Info("PIN attempts exhausted", "session_id", sess.ID, "msisdn", msisdn)
		metrics.PINLockouts.Inc()
		return ussd.End(msgLockout), nil
	}
	return ussd.Con(fmt.Sprintf("Incorrect PIN. Attempt %d of %d. Try again:", sess.PINAttempts, e.cfg.MaxPINAttempts)), nil
}

func (e *Engine) handleChangePIN(ctx context.Context, msisdn, input string) (ussd.Reply, error) {
	if input == "" {
		return ussd.Con("Enter new 4-digit PIN:"), nil
	}
	if !isFourDigits(input) {
		return ussd.Con("Invalid PIN format. Enter new 4-digit PIN:"), nil
	}

	if err := e.repo.SetPIN(ctx, msisdn, input); err != nil {
		return ussd.Reply{}, fmt.Errorf("store new pin: %w", err)
	}
	return ussd.End("PIN changed successfully."), nil
}
