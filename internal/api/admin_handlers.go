package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type adminHandlers struct {
	bookings BookingService
	patients PatientService
	settings SettingsService
	log      zerolog.Logger
}

func (h *adminHandlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.bookings.DashboardStats(r.Context())
	if err != nil {
		handleBookingError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *adminHandlers) listPatients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.patients.Search(r.Context(), q.Get("search"), limit)
	if err != nil {
		handlePatientError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, PatientListResponse{Patients: list, Count: len(list)})
}

func (h *adminHandlers) deletePatient(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
		return
	}

	if err := h.patients.Delete(r.Context(), id); err != nil {
		handlePatientError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Current(r.Context())
	if err != nil {
		handleSettingsError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, current)
}

func (h *adminHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	updated, err := h.settings.Update(r.Context(), req.toPatch())
	if err != nil {
		handleSettingsError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
