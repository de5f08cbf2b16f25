package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EventType
		expected string
	}{
		{"created", EventTypeCreated, "created"},
		{"updated", EventTypeUpdated, "updated"},
		{"deleted", EventTypeDeleted, "deleted"},
		{"payment_recorded", EventTypePaymentRecorded, "payment_recorded"},
		{"penalty_recorded", EventTypePenaltyRecorded, "penalty_recorded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"_id":              "6f1c",
		"remainingBalance": "100.00",
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeLoan, payload)
	after := time.Now()

	assert.Equal(t, "loan.created", evt.Type)
	assert.Equal(t, EntityTypeLoan, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_JSON_Serialization(t *testing.T) {
	fixedTime := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	payload := map[string]interface{}{
		"_id":              "6f1c",
		"remainingBalance": "100.00",
	}

	evt := Event{
		Type:      "loan.payment_recorded",
		Entity:    EntityTypeLoan,
		Payload:   payload,
		Timestamp: fixedTime,
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Entity, decoded.Entity)
	assert.Equal(t, fixedTime.UTC(), decoded.Timestamp.UTC())

	decodedPayload, ok := decoded.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "6f1c", decodedPayload["_id"])
	assert.Equal(t, "100.00", decodedPayload["remainingBalance"])
}

func TestLoanEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"_id": "6f1c"}

	tests := []struct {
		name     string
		evt      Event
		expected string
	}{
		{"LoanCreated", LoanCreated(payload), "loan.created"},
		{"LoanUpdated", LoanUpdated(payload), "loan.updated"},
		{"LoanDeleted", LoanDeleted(payload), "loan.deleted"},
		{"LoanPaymentRecorded", LoanPaymentRecorded(payload), "loan.payment_recorded"},
		{"LoanPenaltyRecorded", LoanPenaltyRecorded(payload), "loan.penalty_recorded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.evt.Type)
			assert.Equal(t, EntityTypeLoan, tt.evt.Entity)
			assert.Equal(t, payload, tt.evt.Payload)
		})
	}
}

func TestSubscribed(t *testing.T) {
	loanID := uuid.New()

	data, err := Subscribed(loanID).ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"loan.subscribed"`)
	assert.Contains(t, string(data), `"loanId":"`+loanID.String()+`"`)

	data, err = Subscribed(uuid.Nil).ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"loanId":null`)
}
