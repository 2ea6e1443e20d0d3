package detour

import (
	"github.com/shopspring/decimal"

	"github.com/example/carpool-matching/internal/models"
)

// PriceQuote is the fare split for one accepted pair. All amounts carry
// two decimal places.
type PriceQuote struct {
	Total           decimal.Decimal
	DriverPayout    decimal.Decimal
	PassengerCharge decimal.Decimal
	Premium         bool
}

// Quote computes the fare split for a trip of distanceMeters. The
// request's own unit price wins over the market policy when set. Distance
// is converted to decimal before any multiplication so repeated pricing of
// the same pair cannot drift.
func Quote(distanceMeters float64, requestUnitPrice decimal.Decimal, pol models.PricingPolicy, detourSec float64) PriceQuote {
	unit := requestUnitPrice
	if unit.IsZero() {
		unit = pol.UnitPricePerKm
	}
	km := decimal.NewFromFloat(distanceMeters).Div(decimal.NewFromInt(1000))
	total := km.Mul(unit).Round(2)

	payout := total.Sub(pol.DriverFee)
	if payout.IsNegative() {
		payout = decimal.Zero
	}
	charge := total.Add(pol.PassengerFee)

	premium := pol.ComfortDetourSec > 0 && detourSec > pol.ComfortDetourSec
	if premium {
		charge = charge.Add(total.Mul(pol.PremiumRate).Round(2))
	}

	return PriceQuote{
		Total:           total,
		DriverPayout:    payout.Round(2),
		PassengerCharge: charge.Round(2),
		Premium:         premium,
	}
}
