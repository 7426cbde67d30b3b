package wizard

import (
	"testing"
	"time"

	"supperclub/internal/models"
	"supperclub/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newTestValidator(opts ...ValidatorOption) *Validator {
	opts = append([]ValidatorOption{WithClock(clock)}, opts...)
	return NewValidator(DefaultRules, validation.MustDefault(), opts...)
}

func validRecord() models.BookingRecord {
	return models.BookingRecord{
		Date:           time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		SessionType:    models.SessionDinner,
		GuestName:      "Ada Lovelace",
		ContactNumber:  "+491701234567",
		Email:          "ada@example.com",
		NumberOfGuests: 4,
		VegCount:       1,
		NonVegCount:    3,
		PaymentStatus:  models.PaymentPending,
		PaymentMethod:  models.MethodCard,
	}
}

func TestRequiredFieldsForStep(t *testing.T) {
	v := newTestValidator()

	assert.Equal(t, []models.Field{models.FieldDate, models.FieldSessionType}, v.RequiredFieldsForStep(0))
	assert.Equal(t, []models.Field{models.FieldGuestName, models.FieldContactNumber, models.FieldEmail, models.FieldNumberOfGuests}, v.RequiredFieldsForStep(1))
	assert.Equal(t, []models.Field{models.FieldPaymentStatus, models.FieldPaymentMethod}, v.RequiredFieldsForStep(2))
	assert.Empty(t, v.RequiredFieldsForStep(3))
	assert.Empty(t, v.RequiredFieldsForStep(-1))
	assert.Empty(t, v.RequiredFieldsForStep(4))

	t.Run("ReturnsCopy", func(t *testing.T) {
		fields := v.RequiredFieldsForStep(0)
		fields[0] = models.FieldEmail
		assert.Equal(t, models.FieldDate, v.RequiredFieldsForStep(0)[0])
	})
}

func TestValidateStep(t *testing.T) {
	v := newTestValidator()

	t.Run("AllStepsValid", func(t *testing.T) {
		r := validRecord()
		for i := 0; i < v.StepCount(); i++ {
			res := v.ValidateStep(i, r)
			assert.True(t, res.Valid, "step %d: %+v", i, res.Errors)
		}
		assert.True(t, v.ValidateAll(r).Valid)
	})

	t.Run("MissingNameReported", func(t *testing.T) {
		custom := NewValidator([]StepRule{
			{Step: models.WizardStep{Key: "contact", Label: "Contact"}, Required: []models.Field{models.FieldGuestName, models.FieldEmail}},
		}, validation.MustDefault())

		res := custom.ValidateStep(0, models.BookingRecord{GuestName: "", Email: "a@b.com"})
		require.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, models.FieldGuestName, res.Errors[0].Field)
		assert.Equal(t, ReasonMissing, res.Errors[0].Reason)
		assert.Equal(t, "Guest name", res.Errors[0].Label)
	})

	t.Run("InvalidShape", func(t *testing.T) {
		r := validRecord()
		r.Email = "not-an-email"
		r.NumberOfGuests = 13
		r.VegCount, r.NonVegCount = 13, 0

		res := v.ValidateStep(1, r)
		require.False(t, res.Valid)
		fe, ok := res.Failed(models.FieldEmail)
		require.True(t, ok)
		assert.Equal(t, ReasonInvalid, fe.Reason)
		_, ok = res.Failed(models.FieldNumberOfGuests)
		assert.True(t, ok)
	})

	t.Run("UnknownSessionIsMissing", func(t *testing.T) {
		r := validRecord()
		r.SessionType = models.ParseSessionType("diner")
		res := v.ValidateStep(0, r)
		fe, ok := res.Failed(models.FieldSessionType)
		require.True(t, ok)
		assert.Equal(t, ReasonMissing, fe.Reason)
	})

	t.Run("PastDateRejected", func(t *testing.T) {
		r := validRecord()
		r.Date = fixedNow.AddDate(0, 0, -1)
		fe, ok := v.ValidateStep(0, r).Failed(models.FieldDate)
		require.True(t, ok)
		assert.Contains(t, fe.Message, "past")
	})

	t.Run("TodayAccepted", func(t *testing.T) {
		r := validRecord()
		r.Date = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
		assert.True(t, v.ValidateStep(0, r).Valid)
	})

	t.Run("TooFarAheadRejected", func(t *testing.T) {
		short := newTestValidator(WithMaxAdvanceDays(30))
		r := validRecord()
		r.Date = fixedNow.AddDate(0, 0, 31)
		_, ok := short.ValidateStep(0, r).Failed(models.FieldDate)
		assert.True(t, ok)

		r.Date = fixedNow.AddDate(0, 0, 30)
		assert.True(t, short.ValidateStep(0, r).Valid)
	})

	t.Run("BrokenSplitRejected", func(t *testing.T) {
		r := validRecord()
		r.VegCount = 3
		fe, ok := v.ValidateStep(1, r).Failed(models.FieldVegCount)
		require.True(t, ok)
		assert.Equal(t, ReasonInvalid, fe.Reason)
	})

	t.Run("DoesNotMutate", func(t *testing.T) {
		r := validRecord()
		r.GuestName = ""
		before := r
		_ = v.ValidateStep(1, r)
		assert.Equal(t, before, r)
	})

	t.Run("ValidateAllReturnsFirstFailure", func(t *testing.T) {
		r := validRecord()
		r.PaymentMethod = models.MethodUnknown
		res := v.ValidateAll(r)
		assert.False(t, res.Valid)
		assert.Equal(t, 2, res.Step)
	})
}

func TestValidateRecord(t *testing.T) {
	v := newTestValidator()
	stored := func() models.BookingRecord {
		r := validRecord()
		r.Status = models.StatusConfirmed
		return r
	}

	t.Run("Valid", func(t *testing.T) {
		res := v.ValidateRecord(stored(), true)
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
	})

	t.Run("CollectsEveryFailure", func(t *testing.T) {
		r := stored()
		r.NumberOfGuests = 500
		r.GuestName = ""
		r.Email = "not-an-email"
		r.PaymentStatus = models.PaymentUnknown

		res := v.ValidateRecord(r, false)
		assert.False(t, res.Valid)
		assert.Equal(t, 1, res.Step)
		for _, field := range []models.Field{models.FieldNumberOfGuests, models.FieldGuestName, models.FieldEmail, models.FieldPaymentStatus} {
			_, ok := res.Failed(field)
			assert.True(t, ok, "expected %s to fail", field)
		}
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		r := stored()
		r.Status = models.StatusUnknown
		fe, ok := v.ValidateRecord(r, false).Failed(models.FieldStatus)
		require.True(t, ok)
		assert.Equal(t, ReasonMissing, fe.Reason)
	})

	t.Run("DateWindowOptional", func(t *testing.T) {
		r := stored()
		r.Date = fixedNow.AddDate(0, 0, -10)
		assert.True(t, v.ValidateRecord(r, false).Valid)

		_, ok := v.ValidateRecord(r, true).Failed(models.FieldDate)
		assert.True(t, ok)
	})
}
