package service

import (
	"strings"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)

	// MaxPaymentAmount is the largest single payment accepted.
	MaxPaymentAmount = decimal.NewFromInt(999_999_999)
)

const (
	// MaxPaymentScale is the most decimal places a payment amount may carry.
	MaxPaymentScale = 8

	// maxPaymentExponent is the smallest exponent whose every nonzero value
	// exceeds MaxPaymentAmount.
	maxPaymentExponent = 9
)

// MonthlyRate converts a nominal rate into a monthly percentage.
func MonthlyRate(interestRate decimal.Decimal, period domain.InterestPeriod) decimal.Decimal {
	if period == domain.InterestPeriodAnnually {
		return interestRate.Div(monthsPerYear)
	}
	return interestRate
}

// TotalInterest computes flat interest: principal * monthlyRate/100 * termMonths.
//
// When principal or termMonths is not positive the principal itself is returned,
// so callers adding this to principal count the principal twice. Existing
// balances depend on that, keep it.
func TotalInterest(principal, interestRate decimal.Decimal, termMonths int32, period domain.InterestPeriod) decimal.Decimal {
	if principal.LessThanOrEqual(decimal.Zero) || termMonths <= 0 {
		return principal
	}
	monthlyInterest := principal.Mul(MonthlyRate(interestRate, period).Div(hundred))
	return monthlyInterest.Mul(decimal.NewFromInt32(termMonths))
}

// InitialBalance is principal plus total interest, the balance of a new loan.
func InitialBalance(principal, interestRate decimal.Decimal, termMonths int32, period domain.InterestPeriod) decimal.Decimal {
	return principal.Add(TotalInterest(principal, interestRate, termMonths, period))
}

// TotalPayments sums payment amounts.
func TotalPayments(payments []domain.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// TotalPenalties sums penalty amounts.
func TotalPenalties(penalties []domain.Penalty) decimal.Decimal {
	total := decimal.Zero
	for _, p := range penalties {
		total = total.Add(p.Amount)
	}
	return total
}

// ComputeBalance derives the remaining balance from the loan terms and history,
// floored at zero.
func ComputeBalance(loan *domain.Loan) decimal.Decimal {
	interest := TotalInterest(loan.Principal, loan.InterestRate, loan.TermMonths, loan.InterestPeriod)
	balance := loan.Principal.
		Add(interest).
		Add(TotalPenalties(loan.Penalties)).
		Sub(TotalPayments(loan.Payments))
	return decimal.Max(decimal.Zero, balance)
}

// LoanSummary is the ledger breakdown behind a loan's remaining balance.
type LoanSummary struct {
	TotalInterest    decimal.Decimal
	TotalPayments    decimal.Decimal
	TotalPenalties   decimal.Decimal
	RemainingBalance decimal.Decimal
	Status           domain.LoanStatus
}

// Summarize recomputes the ledger breakdown of a loan.
func Summarize(loan *domain.Loan) LoanSummary {
	balance := ComputeBalance(loan)
	status := domain.LoanStatusActive
	if !balance.GreaterThan(decimal.Zero) {
		status = domain.LoanStatusSettled
	}
	return LoanSummary{
		TotalInterest:    TotalInterest(loan.Principal, loan.InterestRate, loan.TermMonths, loan.InterestPeriod),
		TotalPayments:    TotalPayments(loan.Payments),
		TotalPenalties:   TotalPenalties(loan.Penalties),
		RemainingBalance: balance,
		Status:           status,
	}
}

// ValidatePaymentAmount accepts 0 < amount <= MaxPaymentAmount with at most
// MaxPaymentScale decimal places. The exponent is checked before any comparison.
func ValidatePaymentAmount(amount decimal.Decimal) error {
	if exp := amount.Exponent(); exp < -MaxPaymentScale || exp >= maxPaymentExponent {
		return domain.ErrPaymentAmountInvalid
	}
	if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(MaxPaymentAmount) {
		return domain.ErrPaymentAmountInvalid
	}
	return nil
}

// AdvanceDueDate moves due forward by the number of whole installments the
// amount covers. It returns due unchanged and 0 when less than one installment
// is covered or monthlyPayment is not positive.
func AdvanceDueDate(due time.Time, amount, monthlyPayment decimal.Decimal) (time.Time, int64) {
	if !monthlyPayment.GreaterThan(decimal.Zero) || !amount.GreaterThan(decimal.Zero) {
		return due, 0
	}
	quotient, _ := amount.QuoRem(monthlyPayment, 0)
	months := quotient.IntPart()
	if months < 1 {
		return due, 0
	}
	// AddDate normalizes overflow: Jan 31 + 1 month is Mar 2 or 3.
	return due.AddDate(0, int(months), 0), months
}

// PaymentInput is a payment to record against a loan.
type PaymentInput struct {
	Amount         decimal.Decimal
	Date           *time.Time
	Note           string
	AdvanceDueDate bool
}

// PaymentResult is what ApplyPayment changed.
type PaymentResult struct {
	Payment          domain.Payment
	RemainingBalance decimal.Decimal
	Advance          *domain.AdvancePayment
}

// ApplyPayment appends a payment, recomputes the balance and, when asked,
// rolls the next due date forward. An invalid amount leaves the loan untouched.
func ApplyPayment(loan *domain.Loan, in PaymentInput, now time.Time) (*PaymentResult, error) {
	if err := ValidatePaymentAmount(in.Amount); err != nil {
		return nil, err
	}

	date := now
	if in.Date != nil {
		date = *in.Date
	}
	payment := domain.Payment{
		Amount: in.Amount,
		Date:   date,
		Note:   strings.TrimSpace(in.Note),
	}
	loan.Payments = append(loan.Payments, payment)
	loan.TotalPenalties = TotalPenalties(loan.Penalties)
	loan.RemainingBalance = ComputeBalance(loan)
	loan.UpdatedAt = now

	result := &PaymentResult{
		Payment:          payment,
		RemainingBalance: loan.RemainingBalance,
	}

	if in.AdvanceDueDate && loan.NextDueDate != nil {
		original := *loan.NextDueDate
		newDue, months := AdvanceDueDate(original, in.Amount, loan.MonthlyPayment)
		if months >= 1 {
			loan.NextDueDate = &newDue
			loan.LastAdvancePayment = &domain.AdvancePayment{
				Amount:          in.Amount,
				MonthsCovered:   months,
				Date:            date,
				OriginalDueDate: original,
				NewDueDate:      newDue,
			}
			result.Advance = loan.LastAdvancePayment
		}
	}

	return result, nil
}

// PenaltyInput is a penalty to record against a loan. Any amount is accepted.
type PenaltyInput struct {
	Amount decimal.Decimal
	Reason string
}

// PenaltyResult is what ApplyPenalty changed.
type PenaltyResult struct {
	Penalty          domain.Penalty
	RemainingBalance decimal.Decimal
	TotalPenalties   decimal.Decimal
}

// ApplyPenalty appends a penalty dated now and recomputes the running penalty
// total and the balance. A penalty may lift a settled loan back above zero.
func ApplyPenalty(loan *domain.Loan, in PenaltyInput, now time.Time) *PenaltyResult {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = domain.DefaultPenaltyReason
	}
	penalty := domain.Penalty{
		Amount: in.Amount,
		Reason: reason,
		Date:   now,
	}
	loan.Penalties = append(loan.Penalties, penalty)
	loan.TotalPenalties = TotalPenalties(loan.Penalties)
	loan.RemainingBalance = ComputeBalance(loan)
	loan.UpdatedAt = now

	return &PenaltyResult{
		Penalty:          penalty,
		RemainingBalance: loan.RemainingBalance,
		TotalPenalties:   loan.TotalPenalties,
	}
}

// TermsUpdate is a partial update of loan scalars. Nil fields keep their value.
type TermsUpdate struct {
	Name           *string
	Contact        *string
	Address        *string
	Principal      *decimal.Decimal
	TermMonths     *int32
	InterestRate   *decimal.Decimal
	InterestPeriod *domain.InterestPeriod
	MonthlyPayment *decimal.Decimal
	NextDueDate    *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u TermsUpdate) IsEmpty() bool {
	return u.Name == nil && u.Contact == nil && u.Address == nil &&
		u.Principal == nil && u.TermMonths == nil && u.InterestRate == nil &&
		u.InterestPeriod == nil && u.MonthlyPayment == nil && u.NextDueDate == nil
}

// ApplyTermsEdit merges the update into the loan and recomputes the balance
// from the unchanged payment and penalty history.
func ApplyTermsEdit(loan *domain.Loan, u TermsUpdate, now time.Time) decimal.Decimal {
	if u.Name != nil {
		loan.Name = strings.TrimSpace(*u.Name)
	}
	if u.Contact != nil {
		loan.Contact = strings.TrimSpace(*u.Contact)
	}
	if u.Address != nil {
		loan.Address = strings.TrimSpace(*u.Address)
	}
	if u.Principal != nil {
		loan.Principal = *u.Principal
	}
	if u.TermMonths != nil {
		loan.TermMonths = *u.TermMonths
	}
	if u.InterestRate != nil {
		loan.InterestRate = *u.InterestRate
	}
	if u.InterestPeriod != nil {
		loan.InterestPeriod = *u.InterestPeriod
	}
	if u.MonthlyPayment != nil {
		loan.MonthlyPayment = *u.MonthlyPayment
	}
	if u.NextDueDate != nil {
		due := *u.NextDueDate
		loan.NextDueDate = &due
	}

	loan.TotalPenalties = TotalPenalties(loan.Penalties)
	loan.RemainingBalance = ComputeBalance(loan)
	loan.UpdatedAt = now
	return loan.RemainingBalance
}
