package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WizardStep is one named stage of a fixed step sequence.
type WizardStep struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

const (
	StepSession = "session"
	StepGuests  = "guests"
	StepPayment = "payment"
	StepReview  = "review"
)

// DefaultBookingSteps is the sequence used by the booking wizard.
var DefaultBookingSteps = []WizardStep{
	{Key: StepSession, Label: "Date & session"},
	{Key: StepGuests, Label: "Guest details"},
	{Key: StepPayment, Label: "Payment"},
	{Key: StepReview, Label: "Review"},
}

// WizardStatus is the lifecycle state of a wizard instance.
type WizardStatus string

const (
	WizardEditing    WizardStatus = "editing"
	WizardSubmitting WizardStatus = "submitting"
	WizardSubmitted  WizardStatus = "submitted"
	WizardClosed     WizardStatus = "closed"
)

// WizardSnapshot is the persisted form of an in-progress wizard (a draft).
type WizardSnapshot struct {
	DraftID   string        `json:"draft_id"`
	Step      int           `json:"step"`
	Highest   int           `json:"highest"`
	Status    WizardStatus  `json:"status"`
	Revision  uint64        `json:"revision"`
	Record    BookingRecord `json:"record"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Encode serialises the snapshot for key-value stores.
func (s *WizardSnapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func DecodeSnapshot(data []byte) (*WizardSnapshot, error) {
	var s WizardSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// PriceBreakdown is derived on demand from a record and never stored.
// Amounts are whole currency units.
type PriceBreakdown struct {
	SessionType SessionType `json:"session_type"`
	UnitPrice   int64       `json:"unit_price"`
	GuestCount  int         `json:"guest_count"`
	Subtotal    int64       `json:"subtotal"`
	Addon       Addon       `json:"addon"`
	AddonAmount int64       `json:"addon_amount"`
	ServiceFee  int64       `json:"service_fee"`
	Tax         int64       `json:"tax"`
	Total       int64       `json:"total"`
}

// SessionCapacity pairs booked seats with capacity for one date and session.
type SessionCapacity struct {
	Date        string      `json:"date"`
	SessionType SessionType `json:"session_type"`
	Booked      int         `json:"booked"`
	Capacity    int         `json:"capacity"`
}
