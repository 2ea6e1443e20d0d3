package detour

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/carpool-matching/internal/models"
)

func policy() models.PricingPolicy {
	return models.PricingPolicy{
		Market:           "default",
		UnitPricePerKm:   decimal.RequireFromString("0.50"),
		DriverFee:        decimal.RequireFromString("0.50"),
		PassengerFee:     decimal.RequireFromString("0.25"),
		PremiumRate:      decimal.RequireFromString("0.10"),
		ComfortDetourSec: 300,
	}
}

func TestQuote_FareSplit(t *testing.T) {
	// 10 km at 0.50/km
	q := Quote(10000, decimal.Zero, policy(), 100)
	if !q.Total.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("total = %s, want 5.00", q.Total)
	}
	if !q.DriverPayout.Equal(decimal.RequireFromString("4.50")) {
		t.Fatalf("payout = %s, want 4.50", q.DriverPayout)
	}
	if !q.PassengerCharge.Equal(decimal.RequireFromString("5.25")) {
		t.Fatalf("charge = %s, want 5.25", q.PassengerCharge)
	}
	if q.Premium {
		t.Fatal("no premium expected inside the comfort bound")
	}
}

func TestQuote_RequestUnitPriceWins(t *testing.T) {
	q := Quote(10000, decimal.RequireFromString("1.00"), policy(), 100)
	if !q.Total.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("total = %s, want 10.00", q.Total)
	}
}

func TestQuote_PayoutFlooredAtZero(t *testing.T) {
	pol := policy()
	pol.DriverFee = decimal.RequireFromString("100.00")
	q := Quote(1000, decimal.Zero, pol, 100)
	if !q.DriverPayout.Equal(decimal.Zero) {
		t.Fatalf("payout = %s, want 0", q.DriverPayout)
	}
}

func TestQuote_PremiumPastComfortBound(t *testing.T) {
	q := Quote(10000, decimal.Zero, policy(), 450) // past 300s comfort bound
	if !q.Premium {
		t.Fatal("expected premium surcharge")
	}
	// 5.00 + 0.25 fee + 10% of 5.00
	if !q.PassengerCharge.Equal(decimal.RequireFromString("5.75")) {
		t.Fatalf("charge = %s, want 5.75", q.PassengerCharge)
	}
}

func TestQuote_Deterministic(t *testing.T) {
	a := Quote(12345.678, decimal.Zero, policy(), 450)
	b := Quote(12345.678, decimal.Zero, policy(), 450)
	if !a.Total.Equal(b.Total) || !a.PassengerCharge.Equal(b.PassengerCharge) || !a.DriverPayout.Equal(b.DriverPayout) {
		t.Fatalf("repeated pricing differs: %+v vs %+v", a, b)
	}
}
