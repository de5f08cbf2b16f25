package handler

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		present bool
		valid   bool
		value   string
	}{
		{"number", `{"n": 1500.5}`, true, true, "1500.5"},
		{"numeric string", `{"n": " 200 "}`, true, true, "200"},
		{"exponent", `{"n": 1e3}`, true, true, "1000"},
		{"absent", `{}`, false, false, "0"},
		{"null", `{"n": null}`, false, false, "0"},
		{"empty string", `{"n": ""}`, true, false, "0"},
		{"NaN string", `{"n": "NaN"}`, true, false, "0"},
		{"word", `{"n": "abc"}`, true, false, "0"},
		{"bool", `{"n": true}`, true, false, "0"},
		{"object", `{"n": {"x": 1}}`, true, false, "0"},
		{"eight decimals", `{"n": 0.00000001}`, true, true, "0.00000001"},
		{"tiny exponent", `{"n": 1e-2000000}`, true, false, "0"},
		{"huge exponent", `{"n": 1e2000000}`, true, false, "0"},
		{"huge exponent string", `{"n": "5E+999999999"}`, true, false, "0"},
		{"too many digits", `{"n": 12345678901234567890123456789012345678901}`, true, false, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				N Number `json:"n"`
			}
			require.NoError(t, json.Unmarshal([]byte(tt.input), &body))
			assert.Equal(t, tt.present, body.N.Present)
			assert.Equal(t, tt.valid, body.N.Valid)
			assert.Equal(t, tt.value, body.N.Decimal().String())
		})
	}
}

func TestNumber_Int32(t *testing.T) {
	var body struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12.9, "b": 99999999999, "c": "x"}`), &body))

	assert.Equal(t, int32(12), body.A.Int32())
	assert.Equal(t, int32(math.MaxInt32), body.B.Int32())
	assert.Equal(t, int32(0), body.C.Int32())
}

func TestUpdateLoanRequest_Decode(t *testing.T) {
	var req UpdateLoanRequest
	body := `{"payment": {"amount": "450", "note": "cash"}, "updateDueDate": true}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.NotNil(t, req.Payment)
	assert.True(t, req.UpdateDueDate)
	assert.Equal(t, "450", req.Payment.Amount.Decimal().String())
	assert.Nil(t, req.Penalty)
	assert.Nil(t, req.BorrowerUpdate)
}
