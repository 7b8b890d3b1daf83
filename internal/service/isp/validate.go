package isp

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	validate  = newValidator()
	sanitizer = bluemonday.StrictPolicy()

	maxAmount = decimal.RequireFromString("999999.99")
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct tag validation and folds the result into a ValidationError.
func check(in any) *ValidationError {
	ve := &ValidationError{}
	err := validate.Struct(in)
	if err == nil {
		return ve
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		ve.add("_", err.Error())
		return ve
	}
	for _, fe := range errs {
		ve.add(fe.Field(), message(fe))
	}
	return ve
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "ip":
		return "must be a valid IP address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("may not be longer than %s characters", fe.Param())
		}
		return "may not be greater than " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "is invalid"
	}
}

// checkMoney enforces 0 <= d <= 999999.99.
func checkMoney(ve *ValidationError, field string, d *decimal.Decimal) {
	if d == nil {
		return
	}
	if d.IsNegative() {
		ve.add(field, "must be at least 0")
	} else if d.GreaterThan(maxAmount) {
		ve.add(field, "may not be greater than 999999.99")
	}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
}

// parseOptionalDate parses an already validated, possibly nil date.
func parseOptionalDate(s *string) *time.Time {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil
	}
	return &t
}

// cleanText strips markup and surrounding space; empty becomes nil.
// The result is plain text, entities decoded.
func cleanText(s *string) *string {
	if s == nil {
		return nil
	}
	out := strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(*s)))
	if out == "" {
		return nil
	}
	return &out
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := strings.TrimSpace(*s)
	if out == "" {
		return nil
	}
	return &out
}
