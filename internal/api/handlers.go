package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinhub/scheduling-engine/internal/schedule"
)

func availableSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verr := schedule.NewValidationError()
		professionalID := parseUUIDParam(r, "professional_id", verr)
		from := parseDateParam(r, "start_date", verr)
		to := parseDateParam(r, "end_date", verr)
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		slots, prof, err := svc.AvailableSlots(r.Context(), professionalID, from, to)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := AvailableSlotsResponse{
			Slots:        make([]SlotResponse, 0, len(slots)),
			Professional: toProfessionalResponse(prof),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, toSlotResponse(s))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func professionalScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verr := schedule.NewValidationError()
		professionalID := parseUUIDParam(r, "professional_id", verr)
		from := parseDateParam(r, "start_date", verr)
		to := parseDateParam(r, "end_date", verr)
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		appts, err := svc.Schedule(r.Context(), professionalID, from, to)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, map[string]any{"appointments": resp})
	}
}

func patientAppointmentsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verr := schedule.NewValidationError()
		patientID := parseUUIDParam(r, "patient_id", verr)

		var f schedule.AppointmentFilter
		if v := r.URL.Query().Get("status"); v != "" {
			status := schedule.AppointmentStatus(v)
			f.Status = &status
		}
		if v := r.URL.Query().Get("from_date"); v != "" {
			if d, err := time.Parse(dateLayout, v); err == nil {
				f.FromDate = &d
			} else {
				verr.Add("from_date", "must be YYYY-MM-DD")
			}
		}
		if v := r.URL.Query().Get("to_date"); v != "" {
			if d, err := time.Parse(dateLayout, v); err == nil {
				f.ToDate = &d
			} else {
				verr.Add("to_date", "must be YYYY-MM-DD")
			}
		}
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		limit, offset := pageParams(r)
		appts, total, err := svc.PatientAppointments(r.Context(), patientID, f, limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		data := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			data = append(data, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, newPageResponse(data, total, limit, offset))
	}
}

func professionalsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ptype *schedule.ProfessionalType
		if v := r.URL.Query().Get("type"); v != "" {
			t := schedule.ProfessionalType(v)
			ptype = &t
		}

		limit, offset := pageParams(r)
		profs, total, err := svc.Professionals(r.Context(), ptype, limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		data := make([]ProfessionalResponse, 0, len(profs))
		for i := range profs {
			data = append(data, toProfessionalResponse(&profs[i]))
		}

		writeJSON(w, http.StatusOK, newPageResponse(data, total, limit, offset))
	}
}

func cancelAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		verr := schedule.NewValidationError()
		in := schedule.CancelInput{
			AppointmentID: id,
			CancelledBy:   schedule.CancelActor(req.CancelledBy),
			Reason:        req.Reason,
		}
		in.PatientID = parseOptionalUUID(req.PatientID, "patient_id", verr)
		in.ProfessionalID = parseOptionalUUID(req.ProfessionalID, "professional_id", verr)
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		result, err := svc.CancelAppointment(r.Context(), in)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		// Business-rule rejections still answer 200; callers branch on the
		// success field.
		writeJSON(w, http.StatusOK, CancelAppointmentResponse{
			Success: result.Success,
			Message: result.Message,
		})
	}
}

// handleServiceError maps domain errors onto the HTTP taxonomy.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *schedule.ValidationError

	switch {
	case errors.As(err, &verr):
		writeFieldErrors(w, verr.Fields)
	case errors.Is(err, schedule.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
	case errors.Is(err, schedule.ErrBlockOverlap):
		writeError(w, http.StatusConflict, "block_overlap", err.Error())
	case errors.Is(err, schedule.ErrProfessionalInactive):
		writeError(w, http.StatusPreconditionFailed, "professional_inactive", err.Error())
	case errors.Is(err, schedule.ErrOwnershipMismatch):
		writeError(w, http.StatusBadRequest, "ownership_mismatch", err.Error())
	default:
		writeInternalError(w, zerolog.Ctx(r.Context()), err)
	}
}

// Param helpers. Each records its failure on the shared ValidationError so
// the response enumerates every bad field at once.

func parseUUIDParam(r *http.Request, name string, verr *schedule.ValidationError) uuid.UUID {
	v := r.URL.Query().Get(name)
	if v == "" {
		verr.Add(name, "is required")
		return uuid.Nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		verr.Add(name, "must be a valid UUID")
		return uuid.Nil
	}
	return id
}

func parseDateParam(r *http.Request, name string, verr *schedule.ValidationError) time.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		verr.Add(name, "is required")
		return time.Time{}
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		verr.Add(name, "must be YYYY-MM-DD")
		return time.Time{}
	}
	return d
}

func parseOptionalUUID(v *string, name string, verr *schedule.ValidationError) *uuid.UUID {
	if v == nil {
		return nil
	}
	id, err := uuid.Parse(*v)
	if err != nil {
		verr.Add(name, "must be a valid UUID")
		return nil
	}
	return &id
}

func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 1 {
		if limit <= 0 {
			limit = 20
		}
		offset = (page - 1) * limit
	} else {
		offset, _ = strconv.Atoi(q.Get("offset"))
	}
	return limit, offset
}
