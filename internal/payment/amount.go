package payment

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/class-enrollment/internal/apperr"
)

// maxMinorUnits bounds converted amounts well below int64 overflow and above
// any amount a processor accepts.
const maxMinorUnits = 100_000_000_000

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a price in major units to integer minor units
// (cents), rounding half away from zero.  The price must be finite and
// strictly positive, and must not round to zero.
func ToMinorUnits(price float64) (int64, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, apperr.New(apperr.KindInvalidInput, "price must be a finite number")
	}
	if price <= 0 {
		return 0, apperr.New(apperr.KindInvalidInput, "price must be greater than zero")
	}
	minor := decimal.NewFromFloat(price).Mul(hundred).Round(0)
	if minor.Sign() <= 0 {
		return 0, apperr.New(apperr.KindInvalidInput, "price is below the smallest chargeable unit")
	}
	if minor.GreaterThan(decimal.NewFromInt(maxMinorUnits)) {
		return 0, apperr.New(apperr.KindInvalidInput, "price is too large")
	}
	return minor.IntPart(), nil
}
