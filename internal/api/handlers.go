package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-booking/internal/auth"
	"github.com/hackgods/therapy-booking/internal/booking"
	"github.com/hackgods/therapy-booking/internal/calendar"
)

type bookingHandlers struct {
	svc BookingService
	log zerolog.Logger
}

func (h *bookingHandlers) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	var req CreateBookingRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), caller.ID, req.toNewBooking())
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *bookingHandlers) createForPatient(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	var req AdminCreateBookingRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	nb := req.toNewBooking()
	nb.PatientID = uuid.MustParse(req.PatientID)

	b, err := h.svc.CreateBookingForPatient(r.Context(), caller.ID, nb)
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *bookingHandlers) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return
	}

	b, err := h.svc.GetBooking(r.Context(), id, caller)
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *bookingHandlers) update(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return
	}

	var req UpdateBookingRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	b, err := h.svc.UpdateBooking(r.Context(), id, caller, req.toPatch())
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *bookingHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
		return
	}

	var req CancelBookingRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	b, err := h.svc.CancelBooking(r.Context(), id, caller, req.reason())
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *bookingHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())

	list, err := h.svc.ListMyBookings(r.Context(), caller.ID)
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, BookingListResponse{Bookings: list, Count: len(list)})
}

func (h *bookingHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := booking.ListFilter{Status: booking.Status(q.Get("status"))}

	var err error
	if filter.From, err = optionalDateQuery(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "from must be a date (YYYY-MM-DD)")
		return
	}
	if filter.To, err = optionalDateQuery(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "to must be a date (YYYY-MM-DD)")
		return
	}
	if raw := q.Get("patient_id"); raw != "" {
		id, ok := parseUUIDParam(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "patient_id must be a valid UUID")
			return
		}
		filter.PatientID = id
	}

	list, err := h.svc.ListBookings(r.Context(), filter)
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, BookingListResponse{Bookings: list, Count: len(list)})
}

func optionalDateQuery(s string) (calendar.Date, error) {
	if s == "" {
		return calendar.Date{}, nil
	}
	return calendar.ParseDate(s)
}
