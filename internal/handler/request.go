package handler

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Bounds on accepted numeric input. Values outside them read as malformed so
// later arithmetic never sees an unbounded coefficient or scale.
const (
	maxNumberLength   = 40
	minNumberExponent = -8
	maxNumberExponent = 12
)

// Number is a lenient numeric field. It accepts a JSON number or a numeric
// string and never fails to decode: absent or malformed input reads as zero.
type Number struct {
	Value   decimal.Decimal
	Present bool // the key was sent with a non-null value
	Valid   bool // the value parsed as a finite number within the accepted bounds
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}
	n.Present = true

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	if len(raw) > maxNumberLength {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	if exp := d.Exponent(); exp < minNumberExponent || exp > maxNumberExponent {
		return nil
	}
	n.Value = d
	n.Valid = true
	return nil
}

// Decimal returns the parsed value, or zero when absent or malformed
func (n Number) Decimal() decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Value
}

// Int32 returns the integer part, clamped to the int32 range
func (n Number) Int32() int32 {
	v := n.Decimal().IntPart()
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}

// CreateLoanRequest represents the create loan request body
type CreateLoanRequest struct {
	Name           string  `json:"name"`
	Contact        string  `json:"contact"`
	Address        string  `json:"address"`
	LoanAmount     Number  `json:"loanAmount" swaggertype:"number"`
	Term           Number  `json:"term" swaggertype:"integer"`
	InterestRate   Number  `json:"interestRate" swaggertype:"number"`
	InterestType   string  `json:"interestType" enums:"monthly,annually"`
	NextDueDate    *string `json:"nextDueDate,omitempty" example:"2024-04-01"`
	MonthlyPayment Number  `json:"monthlyPayment" swaggertype:"number"`
}

// PaymentRequest is the payment part of an update request
type PaymentRequest struct {
	Amount Number  `json:"amount" swaggertype:"number"`
	Date   *string `json:"date,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// PenaltyRequest is the penalty part of an update request
type PenaltyRequest struct {
	Amount Number `json:"amount" swaggertype:"number"`
	Reason string `json:"reason,omitempty"`
}

// BorrowerUpdateRequest is a partial edit of loan details and terms.
// Keys that are not sent keep their current value.
type BorrowerUpdateRequest struct {
	Name           *string `json:"name,omitempty"`
	Contact        *string `json:"contact,omitempty"`
	Address        *string `json:"address,omitempty"`
	LoanAmount     Number  `json:"loanAmount" swaggertype:"number"`
	Term           Number  `json:"term" swaggertype:"integer"`
	InterestRate   Number  `json:"interestRate" swaggertype:"number"`
	InterestType   *string `json:"interestType,omitempty" enums:"monthly,annually"`
	NextDueDate    *string `json:"nextDueDate,omitempty"`
	MonthlyPayment Number  `json:"monthlyPayment" swaggertype:"number"`
}

// UpdateLoanRequest represents the update loan request body.
// Exactly one of payment, penalty or borrowerUpdate is applied, in that order of precedence.
type UpdateLoanRequest struct {
	Payment        *PaymentRequest        `json:"payment,omitempty"`
	UpdateDueDate  bool                   `json:"updateDueDate,omitempty"`
	Penalty        *PenaltyRequest        `json:"penalty,omitempty"`
	BorrowerUpdate *BorrowerUpdateRequest `json:"borrowerUpdate,omitempty"`
}
