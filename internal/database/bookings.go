package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"supperclub/internal/domain"
	"supperclub/internal/models"
	"supperclub/internal/wizard"

	"github.com/mattn/go-sqlite3"
)

var ErrDuplicateBooking = errors.New("booking already exists")

var _ domain.Repository = (*DB)(nil)

const bookingColumns = `id, date, session_type, guest_name, contact_number, email,
	number_of_guests, veg_count, non_veg_count, addon, payment_status,
	payment_method, status, notes, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateBooking inserts a new booking at version 1. The caller assigns the ID.
func (db *DB) CreateBooking(ctx context.Context, booking *models.BookingRecord) error {
	if booking.ID == "" {
		return errors.New("booking id is required")
	}

	now := time.Now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now
	booking.Version = 1

	query := `INSERT INTO bookings (` + bookingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, bookingArgs(booking)...)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrDuplicateBooking, booking.ID)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	db.logger.Debug().Str("booking_id", booking.ID).Str("date", booking.DateKey()).Msg("Booking created")
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.BookingRecord, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBooking applies patch to the booking if it is still at version.
// The dietary split is re-derived the same way the wizard does it.
func (db *DB) UpdateBooking(ctx context.Context, id string, version int64, patch models.Patch) (*models.BookingRecord, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	current, err := scanBooking(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if current.Version != version {
		return nil, ErrConcurrentModification
	}

	updated := wizard.Apply(*current, patch)
	updated.UpdatedAt = time.Now()
	updated.Version = version + 1

	update := `UPDATE bookings SET
				date = ?, session_type = ?, guest_name = ?, contact_number = ?, email = ?,
				number_of_guests = ?, veg_count = ?, non_veg_count = ?, addon = ?,
				payment_status = ?, payment_method = ?, status = ?, notes = ?,
				updated_at = ?, version = version + 1
			  WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, update,
		updated.DateKey(),
		updated.SessionType.String(),
		updated.GuestName,
		updated.ContactNumber,
		updated.Email,
		updated.NumberOfGuests,
		updated.VegCount,
		updated.NonVegCount,
		updated.Addon.String(),
		updated.PaymentStatus.String(),
		updated.PaymentMethod.String(),
		updated.Status.String(),
		updated.Notes,
		updated.UpdatedAt,
		id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking update: %w", err)
	}
	return &updated, nil
}

// GetBookingsByDateRange returns bookings with start <= date <= end, ordered
// by date and then creation time.
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.BookingRecord, error) {
	from, to := start.Format(models.DateLayout), end.Format(models.DateLayout)
	if from > to {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, from, to)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings
			  WHERE date >= ? AND date <= ? ORDER BY date ASC, created_at ASC`
	rows, err := db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.BookingRecord, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// GetBookedGuests sums guests of active bookings per date and session.
func (db *DB) GetBookedGuests(ctx context.Context, start, end time.Time) (map[string]map[models.SessionType]int, error) {
	query := `SELECT date, session_type, SUM(number_of_guests)
			  FROM bookings
			  WHERE date >= ? AND date <= ? AND status IN (?, ?)
			  GROUP BY date, session_type`
	rows, err := db.QueryContext(ctx, query,
		start.Format(models.DateLayout), end.Format(models.DateLayout),
		models.StatusPending.String(), models.StatusConfirmed.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked guests: %w", err)
	}
	defer rows.Close()

	booked := make(map[string]map[models.SessionType]int)
	for rows.Next() {
		var date, session string
		var guests int
		if err := rows.Scan(&date, &session, &guests); err != nil {
			return nil, fmt.Errorf("failed to scan booked guests: %w", err)
		}
		if booked[date] == nil {
			booked[date] = make(map[models.SessionType]int)
		}
		booked[date][models.ParseSessionType(session)] += guests
	}
	return booked, rows.Err()
}

func bookingArgs(b *models.BookingRecord) []any {
	return []any{
		b.ID,
		b.DateKey(),
		b.SessionType.String(),
		b.GuestName,
		b.ContactNumber,
		b.Email,
		b.NumberOfGuests,
		b.VegCount,
		b.NonVegCount,
		b.Addon.String(),
		b.PaymentStatus.String(),
		b.PaymentMethod.String(),
		b.Status.String(),
		b.Notes,
		b.CreatedAt,
		b.UpdatedAt,
		b.Version,
	}
}

func scanBooking(row rowScanner) (*models.BookingRecord, error) {
	var b models.BookingRecord
	var dateStr, session, addon, payment, method, status string
	err := row.Scan(
		&b.ID, &dateStr, &session, &b.GuestName, &b.ContactNumber, &b.Email,
		&b.NumberOfGuests, &b.VegCount, &b.NonVegCount, &addon, &payment,
		&method, &status, &b.Notes, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	b.Date, err = time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	b.SessionType = models.ParseSessionType(session)
	b.Addon = models.ParseAddon(addon)
	b.PaymentStatus = models.ParsePaymentStatus(payment)
	b.PaymentMethod = models.ParsePaymentMethod(method)
	b.Status = models.ParseBookingStatus(status)
	return &b, nil
}
