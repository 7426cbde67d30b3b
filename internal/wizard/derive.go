package wizard

import (
	"supperclub/internal/models"
	"supperclub/internal/validation"
)

// SubCount names one side of the dietary split.
type SubCount int

const (
	SubCountVeg SubCount = iota
	SubCountNonVeg
)

// DeriveSubCounts keeps a + b == total, treating a as the field the guest
// edited last. Negative inputs are clamped to zero rather than rejected.
func DeriveSubCounts(total, a, b int) (int, int) {
	total, a, b = clamp(total), clamp(a), clamp(b)

	switch {
	case a+b == total:
		return a, b
	case a > total:
		return total, 0
	default:
		return a, total - a
	}
}

// DeriveSubCountsFor applies DeriveSubCounts with the edited side first and
// returns the pair in (veg, nonVeg) order.
func DeriveSubCountsFor(edited SubCount, total, veg, nonVeg int) (int, int) {
	if edited == SubCountNonVeg {
		n, v := DeriveSubCounts(total, nonVeg, veg)
		return v, n
	}
	return DeriveSubCounts(total, veg, nonVeg)
}

// Normalize repairs externally supplied records whose split does not add up.
// The veg count is kept when both sides disagree with the total.
func Normalize(r models.BookingRecord) models.BookingRecord {
	r.NumberOfGuests = clamp(r.NumberOfGuests)
	r.VegCount, r.NonVegCount = DeriveSubCounts(r.NumberOfGuests, r.VegCount, r.NonVegCount)
	return r
}

// Apply returns r with the patch applied. When the patch touches any guest
// count the split is re-derived with the last edited side winning; a patch
// that only changes the total keeps the veg count.
func Apply(r models.BookingRecord, p models.Patch) models.BookingRecord {
	next := p.Overlay(r)
	if p.ContactNumber != nil {
		next.ContactNumber = validation.NormalizePhone(next.ContactNumber)
	}
	if !p.TouchesGuests() {
		return next
	}

	edited := SubCountVeg
	if p.VegCount == nil && p.NonVegCount != nil {
		edited = SubCountNonVeg
	}
	next.NumberOfGuests = clamp(next.NumberOfGuests)
	next.VegCount, next.NonVegCount = DeriveSubCountsFor(edited, next.NumberOfGuests, next.VegCount, next.NonVegCount)
	return next
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
