package book

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// parseNumeric converts the native "num/denom" rational encoding into a
// decimal. A bare integer is accepted as denominator 1.
func parseNumeric(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	numStr, denomStr, found := strings.Cut(s, "/")
	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing numerator of %q: %w", s, err)
	}
	if !found {
		return decimal.NewFromInt(num), nil
	}

	denom, err := strconv.ParseInt(denomStr, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing denominator of %q: %w", s, err)
	}
	if denom == 0 {
		return decimal.Zero, fmt.Errorf("zero denominator in %q", s)
	}
	// Denominators are powers of ten in practice. Anything else cannot
	// round-trip through a decimal, so reject it on the way in.
	d := decimal.NewFromInt(num).Div(decimal.NewFromInt(denom))
	if !d.Mul(decimal.NewFromInt(denom)).Equal(decimal.NewFromInt(num)) {
		return decimal.Zero, fmt.Errorf("non-decimal denominator %d in %q", denom, s)
	}
	return d, nil
}

// marshalNumeric converts a decimal into "num/denom" form with the given
// denominator. The amount must be exactly representable.
func marshalNumeric(d decimal.Decimal, denom int) (string, error) {
	if denom <= 0 {
		denom = 1
	}
	num, err := numericNum(d, denom)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d/%d", num, denom), nil
}

// RoundTo rounds d to the nearest multiple of 1/denom.
func RoundTo(d decimal.Decimal, denom int) decimal.Decimal {
	f := decimal.NewFromInt(int64(denom))
	return d.Mul(f).Round(0).Div(f)
}

// numericNum returns the numerator of d at the given denominator.
func numericNum(d decimal.Decimal, denom int) (int64, error) {
	scaled := d.Mul(decimal.NewFromInt(int64(denom)))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s is not representable with denominator %d", d, denom)
	}
	return scaled.IntPart(), nil
}
