package models

import (
	"strings"
	"time"
)

// BookingRecord is a guest reservation. It holds no reference fields, so a
// copy is an independent snapshot and records can be passed by value.
type BookingRecord struct {
	ID             string        `json:"id,omitempty"`
	Date           time.Time     `json:"date"`
	SessionType    SessionType   `json:"session_type"`
	GuestName      string        `json:"guest_name"`
	ContactNumber  string        `json:"contact_number"`
	Email          string        `json:"email"`
	NumberOfGuests int           `json:"number_of_guests"`
	VegCount       int           `json:"veg_count"`
	NonVegCount    int           `json:"non_veg_count"`
	Addon          Addon         `json:"addon"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	Status         BookingStatus `json:"status"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at,omitempty"`
	Version        int64         `json:"version,omitempty"`
}

// DateKey returns the calendar day used for grouping and storage.
func (r BookingRecord) DateKey() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format(DateLayout)
}

// Field names a record field addressed by the step validator.
type Field string

const (
	FieldDate           Field = "date"
	FieldSessionType    Field = "sessionType"
	FieldGuestName      Field = "guestName"
	FieldContactNumber  Field = "contactNumber"
	FieldEmail          Field = "email"
	FieldNumberOfGuests Field = "numberOfGuests"
	FieldVegCount       Field = "vegCount"
	FieldNonVegCount    Field = "nonVegCount"
	FieldAddon          Field = "addon"
	FieldPaymentStatus  Field = "paymentStatus"
	FieldPaymentMethod  Field = "paymentMethod"
	FieldStatus         Field = "status"
)

// Value returns the wire value of a field and whether it is present.
// Empty strings, zero counts, zero dates and unknown enum arms are absent.
func (r BookingRecord) Value(f Field) (any, bool) {
	switch f {
	case FieldDate:
		return r.DateKey(), !r.Date.IsZero()
	case FieldSessionType:
		return r.SessionType.String(), r.SessionType.Known()
	case FieldGuestName:
		return r.GuestName, strings.TrimSpace(r.GuestName) != ""
	case FieldContactNumber:
		return r.ContactNumber, strings.TrimSpace(r.ContactNumber) != ""
	case FieldEmail:
		return r.Email, strings.TrimSpace(r.Email) != ""
	case FieldNumberOfGuests:
		return r.NumberOfGuests, r.NumberOfGuests != 0
	case FieldVegCount:
		return r.VegCount, true
	case FieldNonVegCount:
		return r.NonVegCount, true
	case FieldAddon:
		return r.Addon.String(), true
	case FieldPaymentStatus:
		return r.PaymentStatus.String(), r.PaymentStatus != PaymentUnknown
	case FieldPaymentMethod:
		return r.PaymentMethod.String(), r.PaymentMethod != MethodUnknown
	case FieldStatus:
		return r.Status.String(), r.Status != StatusUnknown
	default:
		return nil, false
	}
}

// Patch carries the fields a single edit changes. Nil fields are untouched.
type Patch struct {
	Date           *time.Time     `json:"date,omitempty"`
	SessionType    *SessionType   `json:"session_type,omitempty"`
	GuestName      *string        `json:"guest_name,omitempty"`
	ContactNumber  *string        `json:"contact_number,omitempty"`
	Email          *string        `json:"email,omitempty"`
	NumberOfGuests *int           `json:"number_of_guests,omitempty"`
	VegCount       *int           `json:"veg_count,omitempty"`
	NonVegCount    *int           `json:"non_veg_count,omitempty"`
	Addon          *Addon         `json:"addon,omitempty"`
	PaymentStatus  *PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod  *PaymentMethod `json:"payment_method,omitempty"`
	Status         *BookingStatus `json:"status,omitempty"`
	Notes          *string        `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Date == nil && p.SessionType == nil && p.GuestName == nil &&
		p.ContactNumber == nil && p.Email == nil && p.NumberOfGuests == nil &&
		p.VegCount == nil && p.NonVegCount == nil && p.Addon == nil &&
		p.PaymentStatus == nil && p.PaymentMethod == nil && p.Status == nil &&
		p.Notes == nil
}

// TouchesGuests reports whether the patch edits any guest count.
func (p Patch) TouchesGuests() bool {
	return p.NumberOfGuests != nil || p.VegCount != nil || p.NonVegCount != nil
}

// Overlay copies the non-nil patch fields onto r without any derivation.
func (p Patch) Overlay(r BookingRecord) BookingRecord {
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.SessionType != nil {
		r.SessionType = *p.SessionType
	}
	if p.GuestName != nil {
		r.GuestName = strings.TrimSpace(*p.GuestName)
	}
	if p.ContactNumber != nil {
		r.ContactNumber = strings.TrimSpace(*p.ContactNumber)
	}
	if p.Email != nil {
		r.Email = strings.TrimSpace(*p.Email)
	}
	if p.NumberOfGuests != nil {
		r.NumberOfGuests = *p.NumberOfGuests
	}
	if p.VegCount != nil {
		r.VegCount = *p.VegCount
	}
	if p.NonVegCount != nil {
		r.NonVegCount = *p.NonVegCount
	}
	if p.Addon != nil {
		r.Addon = *p.Addon
	}
	if p.PaymentStatus != nil {
		r.PaymentStatus = *p.PaymentStatus
	}
	if p.PaymentMethod != nil {
		r.PaymentMethod = *p.PaymentMethod
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	return r
}
