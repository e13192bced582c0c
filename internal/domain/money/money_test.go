package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromString(t *testing.T) {
	t.Run("valid decimal", func(t *testing.T) {
		a, err := NewFromString("1000.50")
		require.NoError(t, err)
		assert.Equal(t, "1000.5", a.String())
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := NewFromString("not-a-number")
		assert.Error(t, err)
	})
}

func TestAmount_Arithmetic(t *testing.T) {
	a := MustFromString("100.25")
	b := MustFromString("50.75")

	assert.True(t, a.Add(b).Equal(MustFromString("151.00")))
	assert.True(t, a.Sub(b).Equal(MustFromString("49.50")))
	assert.True(t, b.Sub(a).Equal(MustFromString("-49.50")))
	assert.True(t, b.Sub(a).Abs().Equal(MustFromString("49.50")))
	assert.True(t, a.Neg().Equal(MustFromString("-100.25")))
}

func TestAmount_Percent(t *testing.T) {
	amount := MustFromString("1000.00")

	fee := amount.Percent(decimal.NewFromFloat(2.0))
	assert.True(t, fee.Equal(MustFromString("20.00")))

	// Rounds to the smallest currency unit
	fee = MustFromString("999.99").Percent(decimal.NewFromFloat(2.5))
	assert.True(t, fee.Equal(MustFromString("25.00")))
}

func TestPercentageDifference(t *testing.T) {
	tests := []struct {
		name string
		diff string
		base string
		want string
	}{
		{"positive difference", "20.00", "1000.00", "2"},
		{"negative difference", "-60.00", "1000.00", "-6"},
		{"zero difference", "0.00", "1000.00", "0"},
		{"zero base zero diff", "0.00", "0.00", "0"},
		{"zero base nonzero diff", "15.00", "0.00", "100"},
		{"rounded to four places", "1.00", "3.00", "33.3333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentageDifference(MustFromString(tt.diff), MustFromString(tt.base))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"got %s, want %s", got.String(), tt.want)
		})
	}
}

func TestAmount_Round2(t *testing.T) {
	assert.True(t, MustFromString("10.005").Round2().Equal(MustFromString("10.01")))
	assert.True(t, MustFromString("10.004").Round2().Equal(MustFromString("10.00")))
}
