package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseMoney parses a free-text amount such as "1,250.50" or "$80". Missing,
// blank, non-numeric and negative values all yield zero.
func ParseMoney(raw *string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	s := strings.TrimSpace(*raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return NonNegative(d)
}

// NonNegative clamps d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Ratio returns num/den*100 unrounded, or zero when den is not positive.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if !den.IsPositive() {
		return decimal.Zero
	}
	return num.Div(den).Mul(decimal.NewFromInt(100))
}

// Percent is Ratio rounded to one decimal place for display.
func Percent(num, den decimal.Decimal) decimal.Decimal {
	return Ratio(num, den).Round(1)
}
