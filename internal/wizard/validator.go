package wizard

import (
	"errors"
	"fmt"
	"time"

	"supperclub/internal/models"
	"supperclub/internal/validation"
)

// StepRule lists the fields a step requires before the wizard may leave it.
type StepRule struct {
	Step     models.WizardStep
	Required []models.Field
}

// DefaultRules pairs DefaultBookingSteps with their required fields.
var DefaultRules = []StepRule{
	{Step: models.DefaultBookingSteps[0], Required: []models.Field{models.FieldDate, models.FieldSessionType}},
	{Step: models.DefaultBookingSteps[1], Required: []models.Field{models.FieldGuestName, models.FieldContactNumber, models.FieldEmail, models.FieldNumberOfGuests}},
	{Step: models.DefaultBookingSteps[2], Required: []models.Field{models.FieldPaymentStatus, models.FieldPaymentMethod}},
	{Step: models.DefaultBookingSteps[3]},
}

// Reason classifies a failed field.
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonInvalid Reason = "invalid"
)

// FieldError is one failed field of a step.
type FieldError struct {
	Field   models.Field `json:"field"`
	Label   string       `json:"label"`
	Reason  Reason       `json:"reason"`
	Message string       `json:"message,omitempty"`
}

// ValidationResult is the outcome of validating one step.
type ValidationResult struct {
	Step   int          `json:"step"`
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Failed reports whether field is among the failures.
func (r ValidationResult) Failed(field models.Field) (FieldError, bool) {
	for _, fe := range r.Errors {
		if fe.Field == field {
			return fe, true
		}
	}
	return FieldError{}, false
}

type ValidatorOption func(*Validator)

// WithClock sets the source of "today" for the booking date window.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithMaxAdvanceDays limits how far ahead a booking date may be.
func WithMaxAdvanceDays(days int) ValidatorOption {
	return func(v *Validator) {
		if days > 0 {
			v.maxAdvanceDays = days
		}
	}
}

// Validator checks a record against the rules of each step. Primitive
// checks are delegated to the field checker.
type Validator struct {
	rules          []StepRule
	checker        validation.FieldChecker
	now            func() time.Time
	maxAdvanceDays int
}

func NewValidator(rules []StepRule, checker validation.FieldChecker, opts ...ValidatorOption) *Validator {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	v := &Validator{
		rules:          rules,
		checker:        checker,
		now:            time.Now,
		maxAdvanceDays: models.DefaultMaxAdvanceDays,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Steps returns the ordered step sequence.
func (v *Validator) Steps() []models.WizardStep {
	steps := make([]models.WizardStep, len(v.rules))
	for i, rule := range v.rules {
		steps[i] = rule.Step
	}
	return steps
}

func (v *Validator) StepCount() int {
	return len(v.rules)
}

// RequiredFieldsForStep returns the fields step i requires. Out-of-range
// steps require nothing.
func (v *Validator) RequiredFieldsForStep(i int) []models.Field {
	if i < 0 || i >= len(v.rules) {
		return []models.Field{}
	}
	return append([]models.Field(nil), v.rules[i].Required...)
}

// ValidateStep reports whether every required field of step i is present and
// valid. The record is never modified.
func (v *Validator) ValidateStep(i int, r models.BookingRecord) ValidationResult {
	res := ValidationResult{Step: i, Valid: true}
	v.checkFields(&res, v.RequiredFieldsForStep(i), r, true)
	return res
}

// ValidateAll validates every step in order and returns the first failure,
// or a valid result for the last step.
func (v *Validator) ValidateAll(r models.BookingRecord) ValidationResult {
	for i := range v.rules {
		if res := v.ValidateStep(i, r); !res.Valid {
			return res
		}
	}
	return ValidationResult{Step: len(v.rules) - 1, Valid: true}
}

// ValidateRecord checks an already stored booking after an edit: the required
// fields of every step, the dietary split and the booking status. All failures
// are collected; Step is the first failing step. The booking date window is
// enforced only with checkDate, so bookings in the past stay editable.
func (v *Validator) ValidateRecord(r models.BookingRecord, checkDate bool) ValidationResult {
	res := ValidationResult{Step: -1, Valid: true}
	for i, rule := range v.rules {
		before := len(res.Errors)
		v.checkFields(&res, rule.Required, r, checkDate)
		if res.Step < 0 && len(res.Errors) > before {
			res.Step = i
		}
	}
	v.checkFields(&res, []models.Field{models.FieldStatus}, r, checkDate)
	if res.Step < 0 {
		res.Step = len(v.rules) - 1
	}
	return res
}

func (v *Validator) checkFields(res *ValidationResult, fields []models.Field, r models.BookingRecord, checkDate bool) {
	requireGuests := false
	for _, field := range fields {
		value, ok := r.Value(field)
		if !ok {
			res.add(field, ReasonMissing, "is required")
			continue
		}
		if v.checker != nil {
			if err := v.checker.CheckField(field, value); err != nil {
				res.add(field, ReasonInvalid, fieldMessage(err))
				continue
			}
		}
		switch field {
		case models.FieldDate:
			if !checkDate {
				continue
			}
			if msg := v.checkDateWindow(r.Date); msg != "" {
				res.add(field, ReasonInvalid, msg)
			}
		case models.FieldNumberOfGuests:
			requireGuests = true
		}
	}

	if requireGuests && r.VegCount+r.NonVegCount != r.NumberOfGuests {
		res.add(models.FieldVegCount, ReasonInvalid,
			fmt.Sprintf("dietary split %d+%d does not match %d guests", r.VegCount, r.NonVegCount, r.NumberOfGuests))
	}
}

func (v *Validator) checkDateWindow(date time.Time) string {
	now := v.now()
	key := date.Format(models.DateLayout)
	if key < now.Format(models.DateLayout) {
		return "date is in the past"
	}
	if key > now.AddDate(0, 0, v.maxAdvanceDays).Format(models.DateLayout) {
		return fmt.Sprintf("date is more than %d days ahead", v.maxAdvanceDays)
	}
	return ""
}

func (r *ValidationResult) add(field models.Field, reason Reason, msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{
		Field:   field,
		Label:   validation.FieldLabel(field),
		Reason:  reason,
		Message: msg,
	})
}

func fieldMessage(err error) string {
	var fe *validation.FieldError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}
