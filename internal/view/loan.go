// Package view renders loans into the JSON shape shared by the HTTP API and
// live loan events.
package view

import (
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/dafibh/loanbook/loanbook-backend/internal/util"
	"github.com/shopspring/decimal"
)

// PaymentResponse represents a recorded payment
type PaymentResponse struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
	Note   string `json:"note,omitempty"`
}

// PenaltyResponse represents a recorded penalty
type PenaltyResponse struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
	Date   string `json:"date"`
}

// AdvancePaymentResponse describes the latest due date rollforward
type AdvancePaymentResponse struct {
	Amount          string `json:"amount"`
	MonthsCovered   int64  `json:"monthsCovered"`
	Date            string `json:"date"`
	OriginalDueDate string `json:"originalDueDate"`
	NewDueDate      string `json:"newDueDate"`
}

// LoanResponse represents a loan in API responses and event payloads
type LoanResponse struct {
	ID                 string                  `json:"_id"`
	Name               string                  `json:"name"`
	Contact            string                  `json:"contact"`
	Address            string                  `json:"address"`
	LoanAmount         string                  `json:"loanAmount"`
	Term               int32                   `json:"term"`
	InterestRate       string                  `json:"interestRate"`
	InterestType       string                  `json:"interestType"`
	MonthlyPayment     string                  `json:"monthlyPayment"`
	NextDueDate        *string                 `json:"nextDueDate,omitempty"`
	Payments           []PaymentResponse       `json:"payments"`
	Penalties          []PenaltyResponse       `json:"penalties"`
	TotalPenalties     string                  `json:"totalPenalties"`
	RemainingBalance   string                  `json:"remainingBalance"`
	LastAdvancePayment *AdvancePaymentResponse `json:"lastAdvancePayment,omitempty"`
	Status             string                  `json:"status"`
	Overdue            bool                    `json:"overdue"`
	CreatedAt          string                  `json:"createdAt"`
	UpdatedAt          string                  `json:"updatedAt"`
}

// DeletedLoanResponse is the payload of a loan deletion event
type DeletedLoanResponse struct {
	ID string `json:"_id"`
}

// Money formats an amount with two decimal places
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Timestamp formats an instant as RFC 3339 in UTC
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewLoanResponse renders a loan. now decides whether an active loan is overdue.
func NewLoanResponse(loan *domain.Loan, now time.Time) LoanResponse {
	status := loan.Status()
	resp := LoanResponse{
		ID:               loan.ID.String(),
		Name:             loan.Name,
		Contact:          loan.Contact,
		Address:          loan.Address,
		LoanAmount:       Money(loan.Principal),
		Term:             loan.TermMonths,
		InterestRate:     loan.InterestRate.String(),
		InterestType:     string(loan.InterestPeriod),
		MonthlyPayment:   Money(loan.MonthlyPayment),
		Payments:         make([]PaymentResponse, len(loan.Payments)),
		Penalties:        make([]PenaltyResponse, len(loan.Penalties)),
		TotalPenalties:   Money(loan.TotalPenalties),
		RemainingBalance: Money(loan.RemainingBalance),
		Status:           string(status),
		CreatedAt:        Timestamp(loan.CreatedAt),
		UpdatedAt:        Timestamp(loan.UpdatedAt),
	}

	if loan.NextDueDate != nil {
		due := util.FormatDate(*loan.NextDueDate)
		resp.NextDueDate = &due
		resp.Overdue = status == domain.LoanStatusActive && util.IsPastDue(*loan.NextDueDate, now)
	}

	for i, p := range loan.Payments {
		resp.Payments[i] = PaymentResponse{Amount: Money(p.Amount), Date: Timestamp(p.Date), Note: p.Note}
	}
	for i, p := range loan.Penalties {
		resp.Penalties[i] = PenaltyResponse{Amount: Money(p.Amount), Reason: p.Reason, Date: Timestamp(p.Date)}
	}

	if adv := loan.LastAdvancePayment; adv != nil {
		resp.LastAdvancePayment = &AdvancePaymentResponse{
			Amount:          Money(adv.Amount),
			MonthsCovered:   adv.MonthsCovered,
			Date:            Timestamp(adv.Date),
			OriginalDueDate: util.FormatDate(adv.OriginalDueDate),
			NewDueDate:      util.FormatDate(adv.NewDueDate),
		}
	}

	return resp
}
