// Package features maps transaction records onto the classifier's input schema.
//
// The slot order is an external contract fixed at training time. The classifier
// sees no field names at inference, so reordering Order silently corrupts every
// prediction; changing it requires retraining, not editing.
package features

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"fraud-gate/pkg/transaction"

	"github.com/cespare/xxhash/v2"
)

// Size is the number of slots in a feature vector.
const Size = 11

// Slot indexes into a Vector.
const (
	SlotStep = iota
	SlotAmount
	SlotOldBalanceOrigin
	SlotNewBalanceOrigin
	SlotOldBalanceDest
	SlotNewBalanceDest
	SlotIsFlaggedFraud
	SlotCashOut
	SlotDebit
	SlotPayment
	SlotTransfer
)

// Order holds the slot names in the order the classifier was trained with.
var Order = [Size]string{
	"step",
	"amount",
	"oldbalanceOrg",
	"newbalanceOrig",
	"oldbalanceDest",
	"newbalanceDest",
	"isFlaggedFraud",
	"CASH_OUT",
	"DEBIT",
	"PAYMENT",
	"TRANSFER",
}

// oneHot pairs each category slot with the literal it matches.
var oneHot = [...]struct {
	slot int
	typ  transaction.Type
}{
	{SlotCashOut, transaction.CashOut},
	{SlotDebit, transaction.Debit},
	{SlotPayment, transaction.Payment},
	{SlotTransfer, transaction.Transfer},
}

// Vector is one model-facing row.
type Vector [Size]float64

// Encode converts in to its feature vector. It performs no validation and no
// scaling: numeric fields are copied verbatim and the transaction type is
// one-hot encoded by equality against each category literal.
func Encode(in transaction.Input) Vector {
	var v Vector
	v[SlotStep] = float64(in.Step)
	v[SlotAmount] = in.Amount
	v[SlotOldBalanceOrigin] = in.OldBalanceOrigin
	v[SlotNewBalanceOrigin] = in.NewBalanceOrigin
	v[SlotOldBalanceDest] = in.OldBalanceDest
	v[SlotNewBalanceDest] = in.NewBalanceDest
	v[SlotIsFlaggedFraud] = in.IsFlaggedFraud.Float()

	for _, c := range oneHot {
		if in.Type == c.typ {
			v[c.slot] = 1
		}
	}
	return v
}

// Slice returns a copy of the vector as a slice, the shape classifiers accept.
func (v Vector) Slice() []float64 {
	row := make([]float64, Size)
	copy(row, v[:])
	return row
}

// OneHot returns the category block in CASH_OUT, DEBIT, PAYMENT, TRANSFER order.
func (v Vector) OneHot() [4]float64 {
	return [4]float64{v[SlotCashOut], v[SlotDebit], v[SlotPayment], v[SlotTransfer]}
}

// Feature is a named slot value.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Named returns the vector as name/value pairs in slot order, for display.
func (v Vector) Named() []Feature {
	out := make([]Feature, Size)
	for i, name := range Order {
		out[i] = Feature{Name: name, Value: v[i]}
	}
	return out
}

// Key returns a stable digest of the vector's exact bit pattern.
func (v Vector) Key() string {
	var buf [Size * 8]byte
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(buf[:]))
	return hex.EncodeToString(sum[:])
}
