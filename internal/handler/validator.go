package handler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
// Field names in errors follow the json (or query) tags so clients see the
// names they sent.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "query", "param"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})
	// max counts runes; bcrypt limits bytes
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i any) error {
	return rv.v.Struct(i)
}

// describeFieldErrors flattens validator errors into the field list and a
// single message for the error envelope.
func describeFieldErrors(ve validator.ValidationErrors) ([]string, string) {
	fields := make([]string, 0, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
		msgs = append(msgs, fe.Field()+" "+ruleMessage(fe))
	}
	return fields, strings.Join(msgs, "; ")
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "maxbytes":
		return fmt.Sprintf("must be at most %s bytes", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "failed validation: " + fe.Tag()
}
