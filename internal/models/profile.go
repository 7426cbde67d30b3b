package models

import "time"

// Profile is what a returning guest's previous bookings tell us about them.
type Profile struct {
	GuestName     string    `json:"guest_name"`
	ContactNumber string    `json:"contact_number"`
	Email         string    `json:"email"`
	LastBookingAt time.Time `json:"last_booking_at"`
	BookingsCount int       `json:"bookings_count"`
}
