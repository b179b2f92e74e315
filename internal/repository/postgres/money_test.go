package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericStringToCents(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
	}{
		{"10.00", 1000},
		{"10", 1000},
		{"0.01", 1},
		{"123.45", 12345},
		{"-5.50", -550},
		{" 10.00 ", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cents, err := numericStringToCents(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.cents, cents)
		})
	}
}

func TestNumericStringToCents_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "10,00"} {
		_, err := numericStringToCents(in)
		assert.Error(t, err, in)
	}
}

func TestCentsToNumericString(t *testing.T) {
	tests := []struct {
		cents int64
		out   string
	}{
		{1000, "10.00"},
		{1, "0.01"},
		{12345, "123.45"},
		{-550, "-5.50"},
		{0, "0.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.out, centsToNumericString(tt.cents))
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 99, 100, 12345, -12345} {
		got, err := numericStringToCents(centsToNumericString(cents))
		require.NoError(t, err)
		assert.Equal(t, cents, got)
	}
}
