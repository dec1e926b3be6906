package calc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestZeroSafe(t *testing.T) {
	zero := decimal.Zero
	assert.True(t, Div(decimal.NewFromInt(5), zero).IsZero())
	assert.True(t, ROAS(decimal.NewFromInt(5), zero).IsZero())
	assert.True(t, CPA(decimal.NewFromInt(100), 0).IsZero())
	assert.True(t, CartAverage(decimal.NewFromInt(100), 0).IsZero())
	assert.True(t, PercentInt(3, 0).IsZero())
}

func TestRatios(t *testing.T) {
	assert.Equal(t, "2.5", ROAS(decimal.NewFromInt(250), decimal.NewFromInt(100)).String())
	assert.Equal(t, "33.33", PercentInt(1, 3).String())
	assert.Equal(t, "33.33", CPA(decimal.NewFromInt(100), 3).String())
	assert.Equal(t, "100", PercentInt(4, 4).String())
}
