// Package validation wires go-playground/validator for the domain records.
//
// Decimal fields are validated as float64 through a custom type func, so the
// usual numeric tags (gte, lte...) work on money. Failures are reported as a
// single *domain.ErrInvalidInput naming the offending field by its JSON path.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

func decimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// Struct validates s and returns the first violation as *domain.ErrInvalidInput.
func Struct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	return translate(err, "")
}

// Element validates one element of a collection, prefixing the field path.
func Element(prefix string, index int, s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	return translate(err, fmt.Sprintf("%s[%d]", prefix, index))
}

func translate(err error, prefix string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ErrInvalidInput{Field: prefix, Reason: err.Error()}
	}
	fe := verrs[0]

	// Drop the root struct name from the namespace: "UserProfile.essentials.rent" -> "essentials.rent".
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if prefix != "" {
		field = prefix + "." + field
	}
	return &domain.ErrInvalidInput{Field: field, Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email address"
	}
	return fmt.Sprintf("failed '%s' check", fe.Tag())
}
