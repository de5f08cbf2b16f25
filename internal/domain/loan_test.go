package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseInterestPeriod(t *testing.T) {
	tests := []struct {
		input string
		want  InterestPeriod
	}{
		{"annually", InterestPeriodAnnually},
		{" Annual ", InterestPeriodAnnually},
		{"yearly", InterestPeriodAnnually},
		{"monthly", InterestPeriodMonthly},
		{"", InterestPeriodMonthly},
		{"weekly", InterestPeriodMonthly},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInterestPeriod(tt.input))
		})
	}
}

func TestLoan_Status(t *testing.T) {
	loan := &Loan{RemainingBalance: decimal.NewFromInt(1)}
	assert.Equal(t, LoanStatusActive, loan.Status())

	loan.RemainingBalance = decimal.Zero
	assert.Equal(t, LoanStatusSettled, loan.Status())
}

func TestLoan_Clone_IsDeep(t *testing.T) {
	due := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	loan := &Loan{
		Name:        "Juan",
		NextDueDate: &due,
		Payments:    []Payment{{Amount: decimal.NewFromInt(10)}},
		Penalties:   []Penalty{{Amount: decimal.NewFromInt(5), Reason: "Late"}},
		LastAdvancePayment: &AdvancePayment{
			MonthsCovered: 1,
		},
	}

	clone := loan.Clone()
	clone.Payments = append(clone.Payments, Payment{Amount: decimal.NewFromInt(20)})
	clone.Penalties[0].Reason = "Changed"
	*clone.NextDueDate = due.AddDate(0, 1, 0)
	clone.LastAdvancePayment.MonthsCovered = 3

	assert.Len(t, loan.Payments, 1)
	assert.Equal(t, "Late", loan.Penalties[0].Reason)
	assert.Equal(t, due, *loan.NextDueDate)
	assert.Equal(t, int64(1), loan.LastAdvancePayment.MonthsCovered)
}

func TestLoan_Clone_Nil(t *testing.T) {
	var loan *Loan
	assert.Nil(t, loan.Clone())
}
