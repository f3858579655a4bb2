package flow

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ValidationError is bad user input at a dialog step. It is always recoverable:
// the user is re-prompted and the session does not advance.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Msg }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func textInput(in Input, field, msg string) (string, error) {
	if in.Kind != KindText {
		return "", invalid(field, msg)
	}
	s := strings.TrimSpace(in.Text)
	if s == "" {
		return "", invalid(field, msg)
	}
	return s, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(strings.TrimSpace(s))
}

// The label starts the user-facing message, e.g. "The selling price".
func positiveAmount(in Input, label string) (decimal.Decimal, error) {
	field, msg := strings.ToLower(label), label+" must be a positive number, e.g. 50 or 49.99."
	if in.Kind != KindText {
		return decimal.Zero, invalid(field, msg)
	}
	d, err := parseAmount(in.Text)
	if err != nil {
		return decimal.Zero, invalid(field, msg)
	}
	// Checked after rounding: 0.004 would otherwise be stored as 0.00.
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, invalid(field, msg)
	}
	return d, nil
}

func anyAmount(in Input, label string) (decimal.Decimal, error) {
	field, msg := strings.ToLower(label), label+" must be a number, e.g. 5, 0 or -2.5."
	if in.Kind != KindText {
		return decimal.Zero, invalid(field, msg)
	}
	d, err := parseAmount(in.Text)
	if err != nil {
		return decimal.Zero, invalid(field, msg)
	}
	return d.Round(2), nil
}

const maxQuantity = 1_000_000

func positiveInt(in Input, label string) (int, error) {
	field, msg := strings.ToLower(label), label+" must be a whole number greater than 0."
	if in.Kind != KindText {
		return 0, invalid(field, msg)
	}
	n, err := strconv.Atoi(strings.TrimSpace(in.Text))
	if err != nil || n <= 0 || n > maxQuantity {
		return 0, invalid(field, msg)
	}
	return n, nil
}

func phoneInput(in Input) (string, error) {
	const msg = "Send a phone number with 7 to 15 digits, e.g. +91 98765 43210."
	s, err := textInput(in, "phone", msg)
	if err != nil {
		return "", err
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return "", invalid("phone", msg)
		}
	}
	if digits < 7 || digits > 15 {
		return "", invalid("phone", msg)
	}
	return s, nil
}

// callbackArg returns the payload after prefix when in is a button press carrying it.
func callbackArg(in Input, prefix string) (string, bool) {
	if in.Kind != KindCallback || !strings.HasPrefix(in.Data, prefix) {
		return "", false
	}
	arg := strings.TrimPrefix(in.Data, prefix)
	return arg, arg != ""
}

func confirmAnswer(in Input) (bool, error) {
	switch {
	case in.Kind == KindCallback && in.Data == cbConfirmYes:
		return true, nil
	case in.Kind == KindCallback && in.Data == cbConfirmNo:
		return false, nil
	}
	return false, invalid("confirm", "Please press Yes or No.")
}

// LargestImage picks the biggest variant of a multi-resolution photo. Telegram
// lists the sizes in ascending order, so it is the last one.
func LargestImage(variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	return variants[len(variants)-1]
}
