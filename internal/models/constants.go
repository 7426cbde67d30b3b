package models

import "strings"

// SessionType is the dining session a guest books. The zero value is the
// explicit unknown arm, so a typo'd key never silently maps to a real session.
type SessionType int

const (
	SessionUnknown SessionType = iota
	SessionBrunch
	SessionLunch
	SessionDinner
	SessionChefsTable
)

var sessionKeys = map[SessionType]string{
	SessionBrunch:     "brunch",
	SessionLunch:      "lunch",
	SessionDinner:     "dinner",
	SessionChefsTable: "chefs_table",
}

// SessionTypes lists every known session in display order.
var SessionTypes = []SessionType{SessionBrunch, SessionLunch, SessionDinner, SessionChefsTable}

func (s SessionType) String() string {
	if key, ok := sessionKeys[s]; ok {
		return key
	}
	return "unknown"
}

func (s SessionType) Known() bool {
	_, ok := sessionKeys[s]
	return ok
}

func ParseSessionType(raw string) SessionType {
	return parseKey(raw, sessionKeys, SessionUnknown)
}

func (s SessionType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SessionType) UnmarshalText(b []byte) error {
	*s = ParseSessionType(string(b))
	return nil
}

// Addon is an optional package priced independently of the session.
// AddonNone doubles as the unknown arm.
type Addon int

const (
	AddonNone Addon = iota
	AddonWinePairing
	AddonCelebrationCake
	AddonPrivateRoom
	AddonPhotographer
)

var addonKeys = map[Addon]string{
	AddonWinePairing:     "wine_pairing",
	AddonCelebrationCake: "celebration_cake",
	AddonPrivateRoom:     "private_room",
	AddonPhotographer:    "photographer",
}

var Addons = []Addon{AddonWinePairing, AddonCelebrationCake, AddonPrivateRoom, AddonPhotographer}

func (a Addon) String() string {
	if key, ok := addonKeys[a]; ok {
		return key
	}
	return "none"
}

func ParseAddon(raw string) Addon {
	return parseKey(raw, addonKeys, AddonNone)
}

func (a Addon) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Addon) UnmarshalText(b []byte) error {
	*a = ParseAddon(string(b))
	return nil
}

type PaymentStatus int

const (
	PaymentUnknown PaymentStatus = iota
	PaymentPending
	PaymentPaid
	PaymentPartiallyPaid
	PaymentRefunded
)

var paymentStatusKeys = map[PaymentStatus]string{
	PaymentPending:       "pending",
	PaymentPaid:          "paid",
	PaymentPartiallyPaid: "partially_paid",
	PaymentRefunded:      "refunded",
}

var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentPartiallyPaid, PaymentRefunded}

func (p PaymentStatus) String() string {
	if key, ok := paymentStatusKeys[p]; ok {
		return key
	}
	return "unknown"
}

func ParsePaymentStatus(raw string) PaymentStatus {
	return parseKey(raw, paymentStatusKeys, PaymentUnknown)
}

func (p PaymentStatus) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PaymentStatus) UnmarshalText(b []byte) error {
	*p = ParsePaymentStatus(string(b))
	return nil
}

type PaymentMethod int

const (
	MethodUnknown PaymentMethod = iota
	MethodCard
	MethodCash
	MethodBankTransfer
	MethodVoucher
)

var paymentMethodKeys = map[PaymentMethod]string{
	MethodCard:         "card",
	MethodCash:         "cash",
	MethodBankTransfer: "bank_transfer",
	MethodVoucher:      "voucher",
}

var PaymentMethods = []PaymentMethod{MethodCard, MethodCash, MethodBankTransfer, MethodVoucher}

func (m PaymentMethod) String() string {
	if key, ok := paymentMethodKeys[m]; ok {
		return key
	}
	return "unknown"
}

func ParsePaymentMethod(raw string) PaymentMethod {
	return parseKey(raw, paymentMethodKeys, MethodUnknown)
}

func (m PaymentMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *PaymentMethod) UnmarshalText(b []byte) error {
	*m = ParsePaymentMethod(string(b))
	return nil
}

// BookingStatus tracks a persisted booking. Unknown is only a transient
// value on drafts; submit defaults it to StatusPending.
type BookingStatus int

const (
	StatusUnknown BookingStatus = iota
	StatusPending
	StatusConfirmed
	StatusCancelled
	StatusCompleted
	StatusNoShow
)

var bookingStatusKeys = map[BookingStatus]string{
	StatusPending:   "pending",
	StatusConfirmed: "confirmed",
	StatusCancelled: "cancelled",
	StatusCompleted: "completed",
	StatusNoShow:    "no_show",
}

var BookingStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

func (s BookingStatus) String() string {
	if key, ok := bookingStatusKeys[s]; ok {
		return key
	}
	return "unknown"
}

// Active reports whether the booking still occupies seats.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func ParseBookingStatus(raw string) BookingStatus {
	return parseKey(raw, bookingStatusKeys, StatusUnknown)
}

func (s BookingStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *BookingStatus) UnmarshalText(b []byte) error {
	*s = ParseBookingStatus(string(b))
	return nil
}

func parseKey[E comparable](raw string, keys map[E]string, fallback E) E {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for value, key := range keys {
		if key == raw {
			return value
		}
	}
	return fallback
}

const (
	// DateLayout is the calendar-day wire format.
	DateLayout = "2006-01-02"

	// MinGuests и MaxGuests ограничивают число гостей в одной заявке
	MinGuests = 1
	MaxGuests = 12

	// DefaultMaxAdvanceDays количество дней, на которое можно бронировать вперед
	DefaultMaxAdvanceDays = 365

	// DefaultDraftTTL время жизни черновика мастера в секундах
	DefaultDraftTTL = 24 * 60 * 60 // 24 часа

	// RateLimitRequests количество запросов в окне
	RateLimitRequests = 20

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = 60 // 1 минута в секундах
)
