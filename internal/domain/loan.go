package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrLoanNotFound = fmt.Errorf("loan %w", ErrNotFound)
)

// InterestPeriod says whether a loan's interest rate is already monthly or
// must be divided by 12 first.
type InterestPeriod string

const (
	InterestPeriodMonthly  InterestPeriod = "monthly"
	InterestPeriodAnnually InterestPeriod = "annually"
)

// ParseInterestPeriod maps free-form input to an InterestPeriod.
// Anything that is not an annual spelling is treated as monthly.
func ParseInterestPeriod(s string) InterestPeriod {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annually", "annual", "yearly":
		return InterestPeriodAnnually
	default:
		return InterestPeriodMonthly
	}
}

// LoanStatus is derived from the remaining balance and never stored.
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "active"
	LoanStatusSettled LoanStatus = "settled"
)

// DefaultPenaltyReason is used when a penalty is recorded without a reason.
const DefaultPenaltyReason = "Penalty"

// Payment is an append-only payment record.
type Payment struct {
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Note   string          `json:"note,omitempty"`
}

// Penalty is an append-only penalty record. Date is always server time.
type Penalty struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	Date   time.Time       `json:"date"`
}

// AdvancePayment is a display-only snapshot of the latest due-date rollforward.
type AdvancePayment struct {
	Amount          decimal.Decimal `json:"amount"`
	MonthsCovered   int64           `json:"monthsCovered"`
	Date            time.Time       `json:"date"`
	OriginalDueDate time.Time       `json:"originalDueDate"`
	NewDueDate      time.Time       `json:"newDueDate"`
}

// Loan is one borrower's credit account. It owns its payments and penalties.
type Loan struct {
	ID                 uuid.UUID       `json:"_id"`
	Name               string          `json:"name"`
	Contact            string          `json:"contact"`
	Address            string          `json:"address"`
	Principal          decimal.Decimal `json:"loanAmount"`
	TermMonths         int32           `json:"term"`
	InterestRate       decimal.Decimal `json:"interestRate"`
	InterestPeriod     InterestPeriod  `json:"interestType"`
	MonthlyPayment     decimal.Decimal `json:"monthlyPayment"`
	NextDueDate        *time.Time      `json:"nextDueDate,omitempty"`
	Payments           []Payment       `json:"payments"`
	Penalties          []Penalty       `json:"penalties"`
	TotalPenalties     decimal.Decimal `json:"totalPenalties"`
	RemainingBalance   decimal.Decimal `json:"remainingBalance"`
	LastAdvancePayment *AdvancePayment `json:"lastAdvancePayment,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Status returns settled once the remaining balance reaches zero.
func (l *Loan) Status() LoanStatus {
	if l.RemainingBalance.GreaterThan(decimal.Zero) {
		return LoanStatusActive
	}
	return LoanStatusSettled
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	c := *l
	c.Payments = append([]Payment(nil), l.Payments...)
	c.Penalties = append([]Penalty(nil), l.Penalties...)
	if l.NextDueDate != nil {
		due := *l.NextDueDate
		c.NextDueDate = &due
	}
	if l.LastAdvancePayment != nil {
		adv := *l.LastAdvancePayment
		c.LastAdvancePayment = &adv
	}
	return &c
}

// LoanMutation changes a loan in place. Returning an error aborts the write.
type LoanMutation func(loan *Loan) error

// LoanRemoval inspects the loan about to be deleted. Returning an error keeps it.
type LoanRemoval func(loan *Loan) error

// LoanRepository is the storage backend capability injected into the service.
//
// Mutate must provide read-modify-write atomicity per loan: the mutation sees a
// freshly read loan and no other write to the same loan interleaves before the
// result is persisted. Payments and penalties appended by the mutation are
// persisted; existing records are never rewritten.
//
// Delete gives the same guarantee: a non-nil fn sees the final state of the
// loan and no write to it lands between fn and the removal.
type LoanRepository interface {
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	List(ctx context.Context) ([]*Loan, error)
	Mutate(ctx context.Context, id uuid.UUID, fn LoanMutation) (*Loan, error)
	Delete(ctx context.Context, id uuid.UUID, fn LoanRemoval) error
	Ping(ctx context.Context) error
}

// LoanArchiver keeps a snapshot of a loan before it is deleted.
type LoanArchiver interface {
	Archive(ctx context.Context, loan *Loan) error
}
