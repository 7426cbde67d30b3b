// Package pricing computes booking price breakdowns. Pure business logic:
// all amounts are whole currency units and nothing is stored.
package pricing

import "supperclub/internal/models"

const (
	// FallbackBasePrice applies to sessions missing from the table.
	FallbackBasePrice int64 = 99

	// Rates in basis points.
	ServiceFeeBps int64 = 500
	TaxBps        int64 = 1800
)

var basePrices = map[models.SessionType]int64{
	models.SessionBrunch:     89,
	models.SessionLunch:      99,
	models.SessionDinner:     149,
	models.SessionChefsTable: 249,
}

var addonPrices = map[models.Addon]int64{
	models.AddonNone:            0,
	models.AddonWinePairing:     120,
	models.AddonCelebrationCake: 60,
	models.AddonPrivateRoom:     200,
	models.AddonPhotographer:    150,
}

// BasePrice returns the per-guest price for a session.
func BasePrice(s models.SessionType) int64 {
	if price, ok := basePrices[s]; ok {
		return price
	}
	return FallbackBasePrice
}

// AddonPrice returns the flat price of an add-on; unknown add-ons cost nothing.
func AddonPrice(a models.Addon) int64 {
	return addonPrices[a]
}

// ComputePrice builds the breakdown for a session, guest count and add-on.
// Fee and tax are each rounded half-up before the total is summed. The guest
// count is clamped to 0..models.MaxGuests; GuestCount reports the priced value.
func ComputePrice(sessionType models.SessionType, guestCount int, addon models.Addon) models.PriceBreakdown {
	switch {
	case guestCount < 0:
		guestCount = 0
	case guestCount > models.MaxGuests:
		guestCount = models.MaxGuests
	}

	unit := BasePrice(sessionType)
	subtotal := unit * int64(guestCount)
	addonAmount := AddonPrice(addon)

	serviceFee := applyRate(subtotal, ServiceFeeBps)
	tax := applyRate(subtotal+addonAmount, TaxBps)

	return models.PriceBreakdown{
		SessionType: sessionType,
		UnitPrice:   unit,
		GuestCount:  guestCount,
		Subtotal:    subtotal,
		Addon:       addon,
		AddonAmount: addonAmount,
		ServiceFee:  serviceFee,
		Tax:         tax,
		Total:       subtotal + addonAmount + serviceFee + tax,
	}
}

// ForRecord prices a booking record.
func ForRecord(r models.BookingRecord) models.PriceBreakdown {
	return ComputePrice(r.SessionType, r.NumberOfGuests, r.Addon)
}

// applyRate returns round-half-up(amount * bps / 10000) for non-negative amounts.
func applyRate(amount, bps int64) int64 {
	return RoundHalfUp(amount*bps, 10000)
}

// RoundHalfUp divides num by den rounding halves away from zero.
func RoundHalfUp(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num < 0 {
		return -((-num*2 + den) / (2 * den))
	}
	return (num*2 + den) / (2 * den)
}
