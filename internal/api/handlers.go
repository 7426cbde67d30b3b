package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"supperclub/internal/database"
	"supperclub/internal/models"
	"supperclub/internal/pricing"
	"supperclub/internal/service"
	"supperclub/internal/wizard"
)

const maxBodyBytes = 1 << 20

var errInvalidDate = errors.New("invalid date format; expected YYYY-MM-DD")

// patchRequest is the wire form of models.Patch: the date travels as
// YYYY-MM-DD rather than a timestamp.
type patchRequest struct {
	models.Patch
	Date *string `json:"date,omitempty"`
}

func (p patchRequest) toPatch() (models.Patch, error) {
	patch := p.Patch
	if p.Date != nil {
		date, err := time.Parse(models.DateLayout, strings.TrimSpace(*p.Date))
		if err != nil {
			return models.Patch{}, errInvalidDate
		}
		patch.Date = &date
	}
	return patch, nil
}

type bookingUpdateRequest struct {
	Version int64 `json:"version"`
	patchRequest
}

type quoteRequest struct {
	SessionType    models.SessionType `json:"session_type"`
	NumberOfGuests int                `json:"number_of_guests"`
	Addon          models.Addon       `json:"addon"`
}

type jumpRequest struct {
	Step *int `json:"step"`
}

type lookupRequest struct {
	Contact string `json:"contact"`
}

type lookupResponse struct {
	Wizard  service.WizardView `json:"wizard"`
	Profile *models.Profile    `json:"profile"`
}

type groupedResponse struct {
	GroupBy service.GroupBy                   `json:"group_by"`
	Keys    []string                          `json:"keys"`
	Groups  map[string][]models.BookingRecord `json:"groups"`
	Total   int                               `json:"total"`
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if !body.SessionType.Known() {
		writeError(w, http.StatusBadRequest, "unknown session_type")
		return
	}
	if body.NumberOfGuests < models.MinGuests || body.NumberOfGuests > models.MaxGuests {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("number_of_guests must be between %d and %d", models.MinGuests, models.MaxGuests))
		return
	}
	writeJSON(w, http.StatusOK, pricing.ComputePrice(body.SessionType, body.NumberOfGuests, body.Addon))
}

func (s *HTTPServer) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	var body patchRequest
	if !decodeBody(w, r, &body, true) {
		return
	}
	patch, err := body.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := s.wizards.Start(r.Context(), s.auth.clientKey(r), patch)
	if err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.wizards.Get(r.Context(), r.PathValue("id"))
	s.writeWizard(w, view, err)
}

func (s *HTTPServer) handleWizardUpdate(w http.ResponseWriter, r *http.Request) {
	var body patchRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	patch, err := body.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.wizards.Update(r.Context(), r.PathValue("id"), patch)
	s.writeWizard(w, view, err)
}

func (s *HTTPServer) handleWizardClose(w http.ResponseWriter, r *http.Request) {
	if err := s.wizards.Close(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleWizardNext(w http.ResponseWriter, r *http.Request) {
	view, err := s.wizards.Next(r.Context(), r.PathValue("id"))
	s.writeWizard(w, view, err)
}

func (s *HTTPServer) handleWizardPrevious(w http.ResponseWriter, r *http.Request) {
	view, err := s.wizards.Previous(r.Context(), r.PathValue("id"))
	s.writeWizard(w, view, err)
}

func (s *HTTPServer) handleWizardJump(w http.ResponseWriter, r *http.Request) {
	var body jumpRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Step == nil {
		writeError(w, http.StatusBadRequest, "step is required")
		return
	}
	view, err := s.wizards.JumpTo(r.Context(), r.PathValue("id"), *body.Step)
	s.writeWizard(w, view, err)
}

func (s *HTTPServer) handleWizardSubmit(w http.ResponseWriter, r *http.Request) {
	view, err := s.wizards.Submit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleWizardLookup(w http.ResponseWriter, r *http.Request) {
	var body lookupRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if strings.TrimSpace(body.Contact) == "" {
		writeError(w, http.StatusBadRequest, "contact is required")
		return
	}
	view, profile, err := s.wizards.Lookup(r.Context(), r.PathValue("id"), body.Contact)
	if err != nil {
		s.writeServiceError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Wizard: view, Profile: profile})
}

func (s *HTTPServer) handleBookingsList(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	by, err := service.ParseGroupBy(strings.TrimSpace(r.URL.Query().Get("group_by")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groups, err := s.bookings.Grouped(r.Context(), from, to, by)
	if err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, groupedResponse{
		GroupBy: by,
		Keys:    groups.Keys,
		Groups:  groups.Buckets,
		Total:   groups.Size(),
	})
}

func (s *HTTPServer) handleBookingGet(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingUpdate(w http.ResponseWriter, r *http.Request) {
	var body bookingUpdateRequest
	if !decodeBody(w, r, &body, false) {
		return
	}
	if body.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version is required")
		return
	}
	patch, err := body.toPatch()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.bookings.Update(r.Context(), r.PathValue("id"), body.Version, patch)
	if err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	summary, err := s.bookings.Summary(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) writeWizard(w http.ResponseWriter, view service.WizardView, err error) {
	if err != nil {
		s.writeServiceError(w, err, &view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type errorResponse struct {
	Error     string              `json:"error"`
	Retryable bool                `json:"retryable,omitempty"`
	Errors    []wizard.FieldError `json:"errors,omitempty"`
	Wizard    *service.WizardView `json:"wizard,omitempty"`
}

// writeServiceError maps domain errors to status codes. The wizard view is
// echoed back when there is one, so clients can redraw the current step.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error, view *service.WizardView) {
	if view != nil && view.DraftID == "" {
		view = nil
	}
	resp := errorResponse{Error: err.Error(), Wizard: view}

	var validationErr *wizard.ValidationError
	var persistenceErr *wizard.PersistenceError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
		resp.Error = "validation failed"
		resp.Errors = validationErr.Result.Errors
	case errors.As(err, &persistenceErr):
		status = http.StatusServiceUnavailable
		resp.Retryable = persistenceErr.Retryable()
	case errors.Is(err, wizard.ErrLookupUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrDraftNotFound), errors.Is(err, database.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, wizard.ErrStepLocked),
		errors.Is(err, wizard.ErrNotOnLastStep),
		errors.Is(err, wizard.ErrSubmitInProgress),
		errors.Is(err, wizard.ErrAlreadySubmitted),
		errors.Is(err, wizard.ErrClosed),
		errors.Is(err, wizard.ErrStaleLookup),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrDuplicateBooking):
		status = http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, database.ErrInvalidRange), errors.Is(err, service.ErrInvalidGrouping):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, resp)
}

// decodeBody reads a JSON body into dst. With optional set an empty body is
// accepted and leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parseRange reads from/to (YYYY-MM-DD). A missing to means a single day.
func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return time.Time{}, time.Time{}, false
	}
	from, err := time.Parse(models.DateLayout, fromStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}

	to := from
	if toStr := strings.TrimSpace(q.Get("to")); toStr != "" {
		to, err = time.Parse(models.DateLayout, toStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
			return time.Time{}, time.Time{}, false
		}
	}
	return from, to, true
}
