// Package calc holds the zero-safe ratios shared by the report tables.
package calc

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Div returns a/b, or 0 when b is 0.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// DivInt returns a/n, or 0 when n is 0.
func DivInt(a decimal.Decimal, n int) decimal.Decimal {
	return Div(a, decimal.NewFromInt(int64(n)))
}

// Percent returns part/whole*100 rounded to 2 places, or 0 when whole is 0.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	return Div(part, whole).Mul(hundred).Round(2)
}

// PercentInt is Percent for counts.
func PercentInt(part, whole int) decimal.Decimal {
	return Percent(decimal.NewFromInt(int64(part)), decimal.NewFromInt(int64(whole)))
}

// Round2 rounds to 2 decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ROAS is sales/spend.
func ROAS(sales, spend decimal.Decimal) decimal.Decimal {
	return Div(sales, spend).Round(2)
}

// CPA is spend per order.
func CPA(spend decimal.Decimal, orders int) decimal.Decimal {
	return DivInt(spend, orders).Round(2)
}

// CartAverage is sales per order.
func CartAverage(sales decimal.Decimal, orders int) decimal.Decimal {
	return DivInt(sales, orders).Round(2)
}
