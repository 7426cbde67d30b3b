package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"supperclub/internal/models"
)

// FindProfileByContact returns the details of the latest booking made with
// the given phone number or e-mail, or nil when there is none.
func (db *DB) FindProfileByContact(ctx context.Context, contact string) (*models.Profile, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, nil
	}

	where := `contact_number = ?`
	if strings.Contains(contact, "@") {
		where = `lower(email) = lower(?)`
	}

	query := `SELECT guest_name, contact_number, email, created_at,
					 (SELECT COUNT(*) FROM bookings WHERE ` + where + `)
			  FROM bookings WHERE ` + where + `
			  ORDER BY created_at DESC LIMIT 1`

	var p models.Profile
	err := db.QueryRowContext(ctx, query, contact, contact).Scan(
		&p.GuestName, &p.ContactNumber, &p.Email, &p.LastBookingAt, &p.BookingsCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &p, nil
}
