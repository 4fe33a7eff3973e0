// Package validate implements field-level form validation. Checks are pure:
// they return the failing code and message and leave displaying them to
// the caller.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/klabast/wb-services/plaza/internal/errors"
)

// Error codes
const (
	CodeEmptyField     = "EmptyField"
	CodeInvalidEmail   = "InvalidEmail"
	CodeOutOfRange     = "OutOfRange"
	CodeInvalidNumber  = "InvalidNumber"
	CodeInvalidDate    = "InvalidDate"
	CodeDateOutOfRange = "DateOutOfRange"
	CodeTooLong        = "TooLong"
	CodeInvalidChoice  = "InvalidChoice"
	CodeInvalidFormat  = "InvalidFormat"
)

// DateLayout is the accepted date format
const DateLayout = "2006-01-02"

// emailPattern: something@something.something with no whitespace
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// numberPattern accepts plain decimal notation only
var numberPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Range bounds a numeric field, inclusive
type Range struct {
	Min float64
	Max float64
}

// DefaultRange applies to numeric fields that declare no bounds
var DefaultRange = Range{Min: 0, Max: 150}

// DateRange bounds a date field, inclusive. Zero bounds are open.
type DateRange struct {
	Min time.Time
	Max time.Time
}

// Field declares a value and the constraints it must meet.
type Field struct {
	Name  string
	Label string
	Value string

	Required bool
	Email    bool

	// Numeric checks the value parses as a number within Range
	// (DefaultRange when nil). Integer additionally rejects fractions.
	Numeric bool
	Integer bool
	Range   *Range

	// Date checks the value is a calendar date within the range.
	Date *DateRange

	MaxLength int
	Choices   []string

	Pattern        *regexp.Regexp
	PatternMessage string
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Check validates one field. It returns nil when the field is valid.
func Check(f Field) *errors.FieldError {
	value := strings.TrimSpace(f.Value)

	if err := validation.Validate(value, rules(f)...); err != nil {
		fe := &errors.FieldError{Field: f.Name, Code: CodeInvalidFormat, Message: err.Error()}
		var verr validation.Error
		if errors.As(err, &verr) {
			fe.Code = verr.Code()
			fe.Message = verr.Message()
		}
		return fe
	}
	return nil
}

// rules builds the ozzo rule chain for f. Order decides which failure is
// reported when several apply.
func rules(f Field) []validation.Rule {
	var rs []validation.Rule

	if f.Required {
		rs = append(rs, validation.Required.ErrorObject(
			validation.NewError(CodeEmptyField, "This field is required")))
	}
	if f.Email {
		rs = append(rs, validation.Match(emailPattern).ErrorObject(
			validation.NewError(CodeInvalidEmail, "Please enter a valid email address")))
	}
	if f.Numeric || f.Integer || f.Range != nil {
		rs = append(rs, validation.By(numberRule(f)))
	}
	if f.Date != nil {
		rule := validation.Date(DateLayout).ErrorObject(
			validation.NewError(CodeInvalidDate, "Please enter a valid date"))
		if !f.Date.Min.IsZero() || !f.Date.Max.IsZero() {
			rule = rule.RangeErrorObject(validation.NewError(CodeDateOutOfRange, dateRangeMessage(f.label(), *f.Date)))
			if !f.Date.Min.IsZero() {
				rule = rule.Min(f.Date.Min)
			}
			if !f.Date.Max.IsZero() {
				rule = rule.Max(f.Date.Max)
			}
		}
		rs = append(rs, rule)
	}
	if f.MaxLength > 0 {
		rs = append(rs, validation.RuneLength(0, f.MaxLength).ErrorObject(
			validation.NewError(CodeTooLong, fmt.Sprintf("%s must be at most %d characters", f.label(), f.MaxLength))))
	}
	if len(f.Choices) > 0 {
		choices := make([]any, len(f.Choices))
		for i, c := range f.Choices {
			choices[i] = c
		}
		rs = append(rs, validation.In(choices...).ErrorObject(
			validation.NewError(CodeInvalidChoice, fmt.Sprintf("%s must be one of: %s", f.label(), strings.Join(f.Choices, ", ")))))
	}
	if f.Pattern != nil {
		msg := f.PatternMessage
		if msg == "" {
			msg = fmt.Sprintf("%s has an invalid format", f.label())
		}
		rs = append(rs, validation.Match(f.Pattern).ErrorObject(validation.NewError(CodeInvalidFormat, msg)))
	}
	return rs
}

func numberRule(f Field) validation.RuleFunc {
	bounds := DefaultRange
	if f.Range != nil {
		bounds = *f.Range
	}

	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if !numberPattern.MatchString(s) {
			return validation.NewError(CodeInvalidNumber, fmt.Sprintf("%s must be a number", f.label()))
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return validation.NewError(CodeInvalidNumber, fmt.Sprintf("%s must be a number", f.label()))
		}
		if f.Integer && n != float64(int64(n)) {
			return validation.NewError(CodeInvalidNumber, fmt.Sprintf("%s must be a whole number", f.label()))
		}
		if n < bounds.Min || n > bounds.Max {
			return validation.NewError(CodeOutOfRange,
				fmt.Sprintf("%s must be between %s and %s", f.label(), formatBound(bounds.Min), formatBound(bounds.Max)))
		}
		return nil
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func dateRangeMessage(label string, r DateRange) string {
	switch {
	case r.Min.IsZero():
		return fmt.Sprintf("%s must be on or before %s", label, r.Max.Format(DateLayout))
	case r.Max.IsZero():
		return fmt.Sprintf("%s must be on or after %s", label, r.Min.Format(DateLayout))
	}
	return fmt.Sprintf("%s must be between %s and %s", label, r.Min.Format(DateLayout), r.Max.Format(DateLayout))
}

// Form validates every field independently and returns a
// *errors.ValidationError listing all failures, or nil.
func Form(fields ...Field) error {
	var failed []errors.FieldError
	for _, f := range fields {
		if fe := Check(f); fe != nil {
			failed = append(failed, *fe)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.NewValidationError(failed...)
}

// Remaining returns how many characters are left before max; negative when
// value is already too long.
func Remaining(value string, max int) int {
	return max - utf8.RuneCountInString(value)
}

// RemainingLabel is the character counter text shown under a textarea
func RemainingLabel(value string, max int) string {
	n := Remaining(value, max)
	if n == 1 {
		return "1 character remaining"
	}
	return fmt.Sprintf("%d characters remaining", n)
}
