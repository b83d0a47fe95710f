package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinhub/scheduling-engine/internal/schedule"
)

func listBlocksHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := routeUUID(w, r, "id")
		if !ok {
			return
		}

		verr := schedule.NewValidationError()
		from := parseDateParam(r, "start_date", verr)
		to := parseDateParam(r, "end_date", verr)
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		blocks, err := svc.ListBlocks(r.Context(), professionalID, from, to)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]BlockResponse, 0, len(blocks))
		for i := range blocks {
			resp = append(resp, toBlockResponse(&blocks[i]))
		}

		writeJSON(w, http.StatusOK, map[string]any{"blocks": resp})
	}
}

func createBlockHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := routeUUID(w, r, "id")
		if !ok {
			return
		}

		var req CreateBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		verr := schedule.NewValidationError()
		in := schedule.CreateBlockInput{
			ProfessionalID: professionalID,
			Type:           schedule.BlockType(req.Type),
			Reason:         req.Reason,
		}

		if req.Date == "" {
			verr.Add("date", "is required")
		} else if d, err := time.Parse(dateLayout, req.Date); err != nil {
			verr.Add("date", "must be YYYY-MM-DD")
		} else {
			in.Date = d
		}

		in.StartMinute = parseOptionalMinute(req.StartTime, "start_time", verr)
		in.EndMinute = parseOptionalMinute(req.EndTime, "end_time", verr)
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		id, err := svc.CreateBlock(r.Context(), in)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateBlockResponse{ID: id})
	}
}

func deleteBlockHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blockID, ok := routeUUID(w, r, "id")
		if !ok {
			return
		}

		verr := schedule.NewValidationError()
		professionalID := parseUUIDParam(r, "professional_id", verr)
		if !verr.Empty() {
			writeFieldErrors(w, verr.Fields)
			return
		}

		if err := svc.DeleteBlock(r.Context(), blockID, professionalID); err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func patientSummariesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		professionalID, ok := routeUUID(w, r, "id")
		if !ok {
			return
		}

		limit, offset := pageParams(r)
		summaries, total, err := svc.PatientSummaries(r.Context(), professionalID, limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		data := make([]PatientSummaryResponse, 0, len(summaries))
		for _, s := range summaries {
			data = append(data, toPatientSummaryResponse(s))
		}

		writeJSON(w, http.StatusOK, newPageResponse(data, total, limit, offset))
	}
}

func routeUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalMinute(v *string, name string, verr *schedule.ValidationError) *int {
	if v == nil || *v == "" {
		return nil
	}
	m, err := schedule.ParseMinute(*v)
	if err != nil {
		verr.Add(name, "must be HH:MM")
		return nil
	}
	return &m
}
