package service

import (
	"strings"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// Intent is one validated request against the loan book. The set of
// implementations is closed: CreateLoanIntent, RecordPaymentIntent,
// RecordPenaltyIntent and EditTermsIntent.
type Intent interface {
	Validate() error
	isIntent()
}

// CreateLoanIntent opens a new loan.
type CreateLoanIntent struct {
	Name           string
	Contact        string
	Address        string
	Principal      decimal.Decimal
	TermMonths     int32
	InterestRate   decimal.Decimal
	InterestPeriod domain.InterestPeriod
	MonthlyPayment decimal.Decimal
	NextDueDate    *time.Time
}

// Validate requires the borrower fields. Numeric terms are taken as given.
func (i CreateLoanIntent) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return domain.ErrNameRequired
	}
	if strings.TrimSpace(i.Contact) == "" {
		return domain.ErrContactRequired
	}
	if strings.TrimSpace(i.Address) == "" {
		return domain.ErrAddressRequired
	}
	for _, field := range []string{i.Name, i.Contact, i.Address} {
		if len(strings.TrimSpace(field)) > domain.MaxBorrowerFieldLength {
			return domain.ErrBorrowerFieldTooLong
		}
	}
	return nil
}

// RecordPaymentIntent records a payment, optionally rolling the due date forward.
type RecordPaymentIntent struct {
	Amount         decimal.Decimal
	Date           *time.Time
	Note           string
	AdvanceDueDate bool
}

// Validate checks the payment amount range.
func (i RecordPaymentIntent) Validate() error {
	return ValidatePaymentAmount(i.Amount)
}

func (i RecordPaymentIntent) input() PaymentInput {
	return PaymentInput{
		Amount:         i.Amount,
		Date:           i.Date,
		Note:           i.Note,
		AdvanceDueDate: i.AdvanceDueDate,
	}
}

// RecordPenaltyIntent records a penalty. Any amount is accepted.
type RecordPenaltyIntent struct {
	Amount decimal.Decimal
	Reason string
}

// Validate always succeeds.
func (i RecordPenaltyIntent) Validate() error {
	return nil
}

// EditTermsIntent changes loan scalars and recomputes the balance.
type EditTermsIntent struct {
	Update TermsUpdate
}

// Validate rejects blank borrower fields when they are being changed.
func (i EditTermsIntent) Validate() error {
	if i.Update.Name != nil && strings.TrimSpace(*i.Update.Name) == "" {
		return domain.ErrNameRequired
	}
	if i.Update.Contact != nil && strings.TrimSpace(*i.Update.Contact) == "" {
		return domain.ErrContactRequired
	}
	if i.Update.Address != nil && strings.TrimSpace(*i.Update.Address) == "" {
		return domain.ErrAddressRequired
	}
	return nil
}

func (CreateLoanIntent) isIntent()    {}
func (RecordPaymentIntent) isIntent() {}
func (RecordPenaltyIntent) isIntent() {}
func (EditTermsIntent) isIntent()     {}
