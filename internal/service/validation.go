package service

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"societyhub/internal/errors"
)

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs v over s and reports every violated field at once.
func ValidateStruct(v *validator.Validate, s any) error {
	verr := &errors.ValidationError{}
	collectFieldErrors(v.Struct(s), verr)
	return verr.Err()
}

// collectFieldErrors appends every validator failure in err to verr.
func collectFieldErrors(err error, verr *errors.ValidationError) {
	var fes validator.ValidationErrors
	if !stderrors.As(err, &fes) {
		if err != nil {
			verr.Add("request", err.Error())
		}
		return
	}
	for _, fe := range fes {
		verr.Add(fieldPath(fe), describe(fe))
	}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " item(s) or characters"
	case "max":
		return "must have at most " + fe.Param() + " item(s) or characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "numeric":
		return "must be numeric"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// amountLimit is the first value a decimal(14,2) column cannot hold.
var amountLimit = decimal.New(1, 12)

// parseAmount parses a positive, finite decimal that fits decimal(14,2);
// problems are added to verr.
func parseAmount(field, raw string, verr *errors.ValidationError) decimal.Decimal {
	if strings.TrimSpace(raw) == "" {
		// reported by the required tag
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		verr.Add(field, "must be a finite number")
		return decimal.Zero
	}
	if !d.IsPositive() {
		verr.Add(field, "must be positive")
	}
	if !d.Equal(d.Round(2)) {
		verr.Add(field, "must have at most 2 decimal places")
	}
	if d.GreaterThanOrEqual(amountLimit) {
		verr.Add(field, "must be less than "+amountLimit.String())
	}
	return d
}
