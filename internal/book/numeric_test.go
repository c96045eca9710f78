package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123400/100", "1234"},
		{"-50/100", "-0.5"},
		{"0/100", "0"},
		{"7/1", "7"},
		{"42", "42"},
		{"", "0"},
		{"15000/10000", "1.5"},
	}
	for _, tt := range tests {
		got, err := parseNumeric(tt.in)
		require.NoError(t, err, "parseNumeric(%q)", tt.in)
		assert.True(t, dec(tt.want).Equal(got), "parseNumeric(%q) = %s, want %s", tt.in, got, tt.want)
	}
}

func TestParseNumeric_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "1/0", "1/x", "x/100"} {
		_, err := parseNumeric(in)
		assert.Error(t, err, "parseNumeric(%q)", in)
	}
}

func TestParseNumeric_NonDecimalDenominator(t *testing.T) {
	// 1/3 has no finite decimal form; it must not round silently.
	_, err := parseNumeric("1/3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-decimal denominator")

	// Exactly representable fractions are fine even off a power of ten.
	got, err := parseNumeric("2/8")
	require.NoError(t, err)
	assert.True(t, dec("0.25").Equal(got))
}

func TestRoundTo(t *testing.T) {
	assert.True(t, dec("12.35").Equal(RoundTo(dec("12.3456"), 100)))
	assert.True(t, dec("-12.35").Equal(RoundTo(dec("-12.3456"), 100)))
	assert.True(t, dec("12.3456").Equal(RoundTo(dec("12.3456"), 10000)))
	assert.True(t, dec("7").Equal(RoundTo(dec("7"), 1)))
}

func TestMarshalNumeric(t *testing.T) {
	got, err := marshalNumeric(dec("1234.56"), 100)
	require.NoError(t, err)
	assert.Equal(t, "123456/100", got)

	got, err = marshalNumeric(dec("-0.5"), 100)
	require.NoError(t, err)
	assert.Equal(t, "-50/100", got)

	got, err = marshalNumeric(dec("0"), 100)
	require.NoError(t, err)
	assert.Equal(t, "0/100", got)
}

func TestMarshalNumeric_NotRepresentable(t *testing.T) {
	_, err := marshalNumeric(dec("0.123"), 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not representable")
}

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "-999999.99", "1500", "0"} {
		out, err := marshalNumeric(dec(s), 100)
		require.NoError(t, err)
		back, err := parseNumeric(out)
		require.NoError(t, err)
		assert.True(t, dec(s).Equal(back), "%s -> %s -> %s", s, out, back)
	}
}
