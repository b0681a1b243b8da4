package transaction

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInputContract is matched by every input validation failure.
var ErrInputContract = errors.New("transaction: input contract violation")

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that violates the input contract.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return ErrInputContract.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInputContract
}

// IsContractViolation reports whether err is an input validation failure.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrInputContract)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks in against the input contract. It is the caller's job to run
// it before encoding; the encoder itself assumes a valid record.
func Validate(in Input) error {
	var fields []FieldError
	seen := make(map[string]bool)

	add := func(field, msg string) {
		if seen[field] {
			return
		}
		seen[field] = true
		fields = append(fields, FieldError{Field: field, Message: msg})
	}

	// NaN slips past some comparisons and +Inf passes gte, so finiteness goes first.
	for _, f := range in.numeric() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			add(f.name, "must be a finite number")
		}
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			add(fe.Field(), describe(fe))
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

type namedValue struct {
	name  string
	value float64
}

// numeric returns the float fields with their JSON names, in declaration order.
func (in Input) numeric() []namedValue {
	return []namedValue{
		{"amount", in.Amount},
		{"oldbalanceOrg", in.OldBalanceOrigin},
		{"newbalanceOrig", in.NewBalanceOrigin},
		{"oldbalanceDest", in.OldBalanceDest},
		{"newbalanceDest", in.NewBalanceDest},
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
