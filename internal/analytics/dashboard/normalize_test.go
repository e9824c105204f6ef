package dashboard

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	tests := map[string]int{
		"120":  120,
		" 7 ":  7,
		"12.0": 12,
		"":     0,
		"abc":  0,
		"NaN":  0,
		"1e40": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseInt(in), "input %q", in)
	}
}

func TestParseFloat(t *testing.T) {
	assert.Equal(t, 0.4235, ParseFloat("0.4235"))
	assert.Equal(t, 0.0, ParseFloat("abc"))
	assert.Equal(t, 0.0, ParseFloat(""))
	assert.Equal(t, 0.0, ParseFloat("+Inf"))
}

func TestParseDecimal(t *testing.T) {
	assert.True(t, decimal.RequireFromString("1234.56").Equal(ParseDecimal("1234.56")))
	assert.True(t, ParseDecimal("abc").IsZero())
	assert.True(t, ParseDecimal("").IsZero())
}

func TestGrowthPercent(t *testing.T) {
	assert.Equal(t, 50.0, GrowthPercent(150, 100))
	assert.Equal(t, -50.0, GrowthPercent(50, 100))
	assert.Equal(t, 0.0, GrowthPercent(50, 0))
	assert.Equal(t, 0.0, GrowthPercent(0, 0))
	assert.Equal(t, 33.33, GrowthPercent(4, 3))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 42.35, Percent(0.4235))
	assert.Equal(t, 100.0, Percent(1))
	assert.Equal(t, 0.0, Percent(0))
}
