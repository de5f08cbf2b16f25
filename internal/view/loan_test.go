package view

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dafibh/loanbook/loanbook-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testLoan(balance int64) *domain.Loan {
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.FixedZone("PHT", 8*3600))
	return &domain.Loan{
		ID:               uuid.MustParse("7d3c2a51-9a0e-4c1e-8f7b-2f1d3c4b5a69"),
		Name:             "Maria Santos",
		Principal:        decimal.NewFromInt(1000),
		TermMonths:       5,
		InterestRate:     decimal.RequireFromString("2.5"),
		InterestPeriod:   domain.InterestPeriodMonthly,
		MonthlyPayment:   decimal.NewFromInt(200),
		NextDueDate:      &due,
		Payments:         []domain.Payment{{Amount: decimal.NewFromInt(450), Date: due, Note: "cash"}},
		Penalties:        []domain.Penalty{},
		TotalPenalties:   decimal.Zero,
		RemainingBalance: decimal.NewFromInt(balance),
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

func TestNewLoanResponse(t *testing.T) {
	resp := NewLoanResponse(testLoan(675), time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC))

	if resp.ID != "7d3c2a51-9a0e-4c1e-8f7b-2f1d3c4b5a69" {
		t.Errorf("Unexpected id %s", resp.ID)
	}
	if resp.LoanAmount != "1000.00" || resp.RemainingBalance != "675.00" || resp.InterestRate != "2.5" {
		t.Errorf("Unexpected amounts %s %s %s", resp.LoanAmount, resp.RemainingBalance, resp.InterestRate)
	}
	if resp.NextDueDate == nil || *resp.NextDueDate != "2024-04-01" {
		t.Errorf("Unexpected due date %v", resp.NextDueDate)
	}
	if resp.Status != "active" || !resp.Overdue {
		t.Errorf("Expected active overdue loan, got %s overdue=%v", resp.Status, resp.Overdue)
	}
	if resp.CreatedAt != "2024-03-01T00:00:00Z" {
		t.Errorf("Expected UTC timestamp, got %s", resp.CreatedAt)
	}
	if len(resp.Payments) != 1 || resp.Payments[0].Amount != "450.00" || resp.Payments[0].Note != "cash" {
		t.Errorf("Unexpected payments %+v", resp.Payments)
	}
	if resp.Penalties == nil {
		t.Error("Expected empty penalties to render as a list")
	}
}

func TestNewLoanResponse_SettledIsNeverOverdue(t *testing.T) {
	resp := NewLoanResponse(testLoan(0), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	if resp.Status != "settled" || resp.Overdue {
		t.Errorf("Expected settled loan not overdue, got %s overdue=%v", resp.Status, resp.Overdue)
	}
}

func TestLoanResponse_JSON(t *testing.T) {
	data, err := json.Marshal(NewLoanResponse(testLoan(675), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"_id", "loanAmount", "remainingBalance", "status", "overdue", "payments"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected key %q in %s", key, data)
		}
	}
	if _, ok := fields["Principal"]; ok {
		t.Errorf("Unexpected domain field in %s", data)
	}
}
