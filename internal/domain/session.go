package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Screen identifies the state the menu machine is in for a session.
type Screen int

const (
	ScreenPIN Screen = iota
	ScreenHome
	ScreenChooseBank
	ScreenChooseProduct
	ScreenApplyAmount
	ScreenApplyConfirm
	ScreenLoanStatus
	ScreenRepaySelect
	ScreenRepayAmount
	ScreenChangePIN
	ScreenTransferNumber
	ScreenTransferAmount
	ScreenAirtimeAmount
)

// String returns the screen name for logging.
func (s Screen) String() string {
	switch s {
	case ScreenPIN:
		return "pin"
	case ScreenHome:
		return "home"
	case ScreenChooseBank:
		return "choose_bank"
	case ScreenChooseProduct:
		return "choose_product"
	case ScreenApplyAmount:
		return "apply_amount"
	case ScreenApplyConfirm:
		return "apply_confirm"
	case ScreenLoanStatus:
		return "loan_status"
	case ScreenRepaySelect:
		return "repay_select"
	case ScreenRepayAmount:
		return "repay_amount"
	case ScreenChangePIN:
		return "change_pin"
	case ScreenTransferNumber:
		return "transfer_number"
	case ScreenTransferAmount:
		return "transfer_amount"
	case ScreenAirtimeAmount:
		return "airtime_amount"
	default:
		return "unknown"
	}
}

// ApplyFlow holds the loan-application wizard state. Bank is set after the
// bank step, Product after the product step, Amount after the amount step.
type ApplyFlow struct {
	Bank    *Bank
	Product *LoanProduct
	Amount  decimal.Decimal
}

// StatusFlow holds the loan-status pagination offset.
type StatusFlow struct {
	Page int
}

// RepayFlow holds the repayment flow state. Loans is the snapshot of
// repayable loans taken when the flow started.
type RepayFlow struct {
	Loans    []Loan
	Page     int
	Selected *Loan
}

// TransferFlow holds the money-transfer flow state.
type TransferFlow struct {
	Recipient string
}

// Session is one stateful conversation, identified by a channel-supplied id.
// Flow state lives in typed sub-structs that exist only while the matching
// flow is active.
type Session struct {
	ID            string
	Screen        Screen
	Authenticated bool
	PINAttempts   int
	LastActivity  time.Time

	Apply    *ApplyFlow
	Status   *StatusFlow
	Repay    *RepayFlow
	Transfer *TransferFlow
}

// ResetFlows drops all per-flow scratch state, e.g. when returning home.
func (s *Session) ResetFlows() {
	s.Apply = nil
	s.Status = nil
	s.Repay = nil
	s.Transfer = nil
}
