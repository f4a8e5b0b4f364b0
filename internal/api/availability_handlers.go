package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/auth"
	"github.com/hackgods/therapy-booking/internal/availability"
	"github.com/hackgods/therapy-booking/internal/calendar"
)

type availabilityHandlers struct {
	svc AvailabilityService
	log zerolog.Logger
}

func (h *availabilityHandlers) listSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get("start_date"), q.Get("end_date")
	if rawStart == "" || rawEnd == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "start_date and end_date are required")
		return
	}

	start, err := calendar.ParseDate(rawStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", "start_date must be a date (YYYY-MM-DD)")
		return
	}
	end, err := calendar.ParseDate(rawEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", "end_date must be a date (YYYY-MM-DD)")
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), start, end)
	if err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{StartDate: start, EndDate: end, Slots: slots})
}

// listAvailabilities shows admins every window so deactivated ones can be
// switched back on; patients only see what generates slots.
func (h *availabilityHandlers) listAvailabilities(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	list := h.svc.ListActiveAvailabilities
	if caller.IsAdmin() {
		list = h.svc.ListAvailabilities
	}

	windows, err := list(r.Context())
	if err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}
	if windows == nil {
		windows = []availability.WeeklyAvailability{}
	}
	writeJSON(w, http.StatusOK, windows)
}

func (h *availabilityHandlers) createAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	a, err := h.svc.CreateAvailability(r.Context(), req.toAvailability())
	if err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

func (h *availabilityHandlers) updateAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_availability_id", "id must be a valid UUID")
		return
	}

	var req UpdateAvailabilityRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	a, err := h.svc.UpdateAvailability(r.Context(), id, req.toPatch())
	if err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *availabilityHandlers) deleteAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_availability_id", "id must be a valid UUID")
		return
	}

	if err := h.svc.DeleteAvailability(r.Context(), id); err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *availabilityHandlers) listExceptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := optionalDateQuery(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "from must be a date (YYYY-MM-DD)")
		return
	}
	to, err := optionalDateQuery(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "to must be a date (YYYY-MM-DD)")
		return
	}

	list, err := h.svc.ListExceptions(r.Context(), from, to)
	if err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []availability.ScheduleException{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *availabilityHandlers) createException(w http.ResponseWriter, r *http.Request) {
	var req ExceptionRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	e, err := h.svc.CreateException(r.Context(), req.toException())
	if err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (h *availabilityHandlers) deleteException(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_exception_id", "id must be a valid UUID")
		return
	}

	if err := h.svc.DeleteException(r.Context(), id); err != nil {
		handleAvailabilityError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
