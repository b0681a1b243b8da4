package transaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Type is the categorical transaction type.
type Type string

const (
	Transfer Type = "TRANSFER"
	CashOut  Type = "CASH_OUT"
	Payment  Type = "PAYMENT"
	Debit    Type = "DEBIT"
)

// Types lists every supported transaction type. CASH_IN is deliberately absent:
// the classifier was trained without it and the encoding has no "other" bucket.
var Types = []Type{Transfer, CashOut, Payment, Debit}

// Domain limits for the numeric fields.
const (
	MinStep   = 1
	MaxStep   = 743
	MinAmount = 0.01
)

// ParseType converts a user-supplied string to a Type.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Types {
		if t == known {
			return t, nil
		}
	}
	return "", &ValidationError{Fields: []FieldError{{
		Field:   "type",
		Message: fmt.Sprintf("unknown transaction type %q", s),
	}}}
}

// Flag is a 0/1 pre-flag supplied by an upstream system. It decodes from a JSON
// boolean or from the integers 0 and 1.
type Flag bool

// UnmarshalJSON accepts true, false, 0 and 1.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("transaction: isFlaggedFraud must be 0, 1, true or false, got %s", data)
	}
	return nil
}

// Float returns 1.0 when the flag is set, 0.0 otherwise.
func (f Flag) Float() float64 {
	if f {
		return 1
	}
	return 0
}

// Input is one raw, user-facing transaction record.
// JSON names follow the column names of the training dataset.
type Input struct {
	Type             Type    `json:"type" validate:"required,oneof=TRANSFER CASH_OUT PAYMENT DEBIT"`
	Step             int     `json:"step" validate:"min=1,max=743"`
	Amount           float64 `json:"amount" validate:"gte=0.01"`
	OldBalanceOrigin float64 `json:"oldbalanceOrg" validate:"gte=0"`
	NewBalanceOrigin float64 `json:"newbalanceOrig" validate:"gte=0"`
	OldBalanceDest   float64 `json:"oldbalanceDest" validate:"gte=0"`
	NewBalanceDest   float64 `json:"newbalanceDest" validate:"gte=0"`
	IsFlaggedFraud   Flag    `json:"isFlaggedFraud"`
}

// Decode reads a single Input from JSON, rejecting unknown fields.
func Decode(data []byte) (Input, error) {
	var in Input
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("transaction: decode: %w", err)
	}
	return in, nil
}
