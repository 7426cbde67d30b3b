package aggregate

import (
	"supperclub/internal/models"
	"supperclub/internal/pricing"
)

// Summary holds the dashboard tiles for a list of bookings.
type Summary struct {
	Bookings        int            `json:"bookings"`
	ActiveBookings  int            `json:"active_bookings"`
	Guests          int            `json:"guests"`
	VegGuests       int            `json:"veg_guests"`
	NonVegGuests    int            `json:"non_veg_guests"`
	VegShare        int            `json:"veg_share_percent"`
	ByStatus        map[string]int `json:"by_status"`
	ByPayment       map[string]int `json:"by_payment_status"`
	BySession       map[string]int `json:"by_session"`
	ExpectedRevenue int64          `json:"expected_revenue"`
	Utilization     int            `json:"utilization_percent"`
}

// Summarize computes dashboard tiles. Guest totals and revenue include only
// bookings that still occupy seats.
func Summarize(records []models.BookingRecord) Summary {
	s := Summary{
		Bookings:  len(records),
		ByStatus:  keyed(CountBy(records, func(r models.BookingRecord) models.BookingStatus { return r.Status })),
		ByPayment: keyed(CountBy(records, func(r models.BookingRecord) models.PaymentStatus { return r.PaymentStatus })),
		BySession: keyed(CountBy(records, func(r models.BookingRecord) models.SessionType { return r.SessionType })),
	}

	for _, r := range records {
		if !r.Status.Active() {
			continue
		}
		s.ActiveBookings++
		s.Guests += r.NumberOfGuests
		s.VegGuests += r.VegCount
		s.NonVegGuests += r.NonVegCount
		s.ExpectedRevenue += pricing.ForRecord(r).Total
	}
	s.VegShare = Percent(s.VegGuests, s.VegGuests+s.NonVegGuests)

	return s
}

type wireKey interface {
	comparable
	String() string
}

func keyed[K wireKey](counts map[K]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k.String()] += v
	}
	return out
}
