package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinhub/scheduling-engine/internal/ratelimit"
	"github.com/clinhub/scheduling-engine/internal/schedule"
)

const testAPIKey = "test-key"

type stubRepo struct {
	getProfessionalFn func(ctx context.Context, id uuid.UUID) (*schedule.Professional, error)
	listBlocksFn      func(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.Block, error)
	createBlockFn     func(ctx context.Context, b schedule.Block) (uuid.UUID, error)
	deleteBlockFn     func(ctx context.Context, blockID, professionalID uuid.UUID) error
	getAppointmentFn  func(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	countScheduledFn  func(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.SlotCount, error)
	transitionFn      func(ctx context.Context, id uuid.UUID, to schedule.AppointmentStatus, by *schedule.CancelActor, reason *string) (*schedule.Appointment, error)
}

func (s *stubRepo) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*schedule.Professional, error) {
	if s.getProfessionalFn == nil {
		panic("GetProfessionalByID not configured")
	}
	return s.getProfessionalFn(ctx, id)
}

func (s *stubRepo) ListProfessionals(ctx context.Context, ptype *schedule.ProfessionalType, limit, offset int) ([]schedule.Professional, int, error) {
	panic("ListProfessionals not configured")
}

func (s *stubRepo) ListBlocks(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.Block, error) {
	if s.listBlocksFn == nil {
		panic("ListBlocks not configured")
	}
	return s.listBlocksFn(ctx, professionalID, from, to)
}

func (s *stubRepo) CreateBlock(ctx context.Context, b schedule.Block) (uuid.UUID, error) {
	if s.createBlockFn == nil {
		panic("CreateBlock not configured")
	}
	return s.createBlockFn(ctx, b)
}

func (s *stubRepo) DeleteBlock(ctx context.Context, blockID, professionalID uuid.UUID) error {
	if s.deleteBlockFn == nil {
		panic("DeleteBlock not configured")
	}
	return s.deleteBlockFn(ctx, blockID, professionalID)
}

func (s *stubRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	if s.getAppointmentFn == nil {
		panic("GetAppointmentByID not configured")
	}
	return s.getAppointmentFn(ctx, id)
}

func (s *stubRepo) ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.Appointment, error) {
	panic("ListAppointmentsByProfessional not configured")
}

func (s *stubRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, f schedule.AppointmentFilter, limit, offset int) ([]schedule.Appointment, int, error) {
	panic("ListAppointmentsByPatient not configured")
}

func (s *stubRepo) CountScheduledSlots(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]schedule.SlotCount, error) {
	if s.countScheduledFn == nil {
		panic("CountScheduledSlots not configured")
	}
	return s.countScheduledFn(ctx, professionalID, from, to)
}

func (s *stubRepo) TransitionAppointment(ctx context.Context, id uuid.UUID, to schedule.AppointmentStatus, by *schedule.CancelActor, reason *string) (*schedule.Appointment, error) {
	if s.transitionFn == nil {
		panic("TransitionAppointment not configured")
	}
	return s.transitionFn(ctx, id, to, by, reason)
}

func (s *stubRepo) FindElapsedScheduled(ctx context.Context, now time.Time) ([]schedule.Appointment, error) {
	panic("FindElapsedScheduled not configured")
}

func (s *stubRepo) InsertEvent(ctx context.Context, ev schedule.EventLog) error {
	return nil
}

func newTestRouter(t *testing.T, repo schedule.Repository) http.Handler {
	t.Helper()
	grid, err := schedule.NewSlotGrid(7*60, 18*60+30, 30)
	if err != nil {
		t.Fatalf("NewSlotGrid: %v", err)
	}
	svc := schedule.NewService(repo, grid, 2, zerolog.Nop())
	return NewRouter(RouterConfig{
		Service:    svc,
		Limiter:    ratelimit.NewMemoryLimiter(),
		Logger:     zerolog.Nop(),
		APIKey:     testAPIKey,
		RateLimit:  1000,
		RateWindow: time.Minute,
		Env:        "test",
		Version:    "test",
	})
}

func doRequest(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	return rec
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	router := newTestRouter(t, &stubRepo{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/professionals", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without API key", rec.Code)
	}
}

func TestAvailableSlots_HappyPath(t *testing.T) {
	profID := uuid.New()
	router := newTestRouter(t, &stubRepo{
		getProfessionalFn: func(ctx context.Context, id uuid.UUID) (*schedule.Professional, error) {
			return &schedule.Professional{ID: id, Name: "Dr. Vega", Type: schedule.ProfessionalDoctor, Active: true}, nil
		},
		listBlocksFn: func(ctx context.Context, _ uuid.UUID, from, to time.Time) ([]schedule.Block, error) {
			return nil, nil
		},
		countScheduledFn: func(ctx context.Context, _ uuid.UUID, from, to time.Time) ([]schedule.SlotCount, error) {
			return nil, nil
		},
	})

	rec := doRequest(router, http.MethodGet,
		"/v1/available-slots?professional_id="+profID.String()+"&start_date=2025-06-10&end_date=2025-06-10", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp AvailableSlotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Professional.ID != profID || resp.Professional.Name != "Dr. Vega" {
		t.Errorf("professional = %+v", resp.Professional)
	}
	if len(resp.Slots) != 23 {
		t.Fatalf("len(slots) = %d, want 23", len(resp.Slots))
	}
	first := resp.Slots[0]
	if first.Date != "2025-06-10" || first.Start != "07:00" || first.End != "07:30" || first.AvailableSpots != 2 {
		t.Errorf("first slot = %+v", first)
	}
}

func TestAvailableSlots_EnumeratesAllBadParams(t *testing.T) {
	router := newTestRouter(t, &stubRepo{})

	rec := doRequest(router, http.MethodGet, "/v1/available-slots?professional_id=not-a-uuid", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error != "validation_error" {
		t.Errorf("error = %q, want validation_error", body.Error)
	}
	for _, field := range []string{"professional_id", "start_date", "end_date"} {
		if _, ok := body.Fields[field]; !ok {
			t.Errorf("fields = %v, want %s flagged", body.Fields, field)
		}
	}
}

func TestAvailableSlots_UnknownProfessionalIs404(t *testing.T) {
	router := newTestRouter(t, &stubRepo{
		getProfessionalFn: func(ctx context.Context, id uuid.UUID) (*schedule.Professional, error) {
			return nil, schedule.ErrProfessionalNotFound
		},
	})

	rec := doRequest(router, http.MethodGet,
		"/v1/available-slots?professional_id="+uuid.NewString()+"&start_date=2025-06-10&end_date=2025-06-10", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAvailableSlots_InactiveProfessionalIs412(t *testing.T) {
	router := newTestRouter(t, &stubRepo{
		getProfessionalFn: func(ctx context.Context, id uuid.UUID) (*schedule.Professional, error) {
			return &schedule.Professional{ID: id, Active: false}, nil
		},
	})

	rec := doRequest(router, http.MethodGet,
		"/v1/available-slots?professional_id="+uuid.NewString()+"&start_date=2025-06-10&end_date=2025-06-10", "")

	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", rec.Code)
	}
}

func TestCancelAppointment_BusinessRejectionAnswers200(t *testing.T) {
	patientID := uuid.New()
	apptID := uuid.New()

	router := newTestRouter(t, &stubRepo{
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
			return &schedule.Appointment{ID: apptID, PatientID: patientID, Status: schedule.StatusCancelled}, nil
		},
		transitionFn: func(ctx context.Context, id uuid.UUID, to schedule.AppointmentStatus, by *schedule.CancelActor, reason *string) (*schedule.Appointment, error) {
			return nil, schedule.ErrNotScheduled
		},
	})

	body := `{"cancelled_by":"patient","patient_id":"` + patientID.String() + `"}`
	rec := doRequest(router, http.MethodDelete, "/v1/appointments/"+apptID.String(), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for business-rule rejection", rec.Code)
	}
	var resp CancelAppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success {
		t.Fatal("success = true, want false for terminal appointment")
	}
	if !strings.Contains(resp.Message, "cancelled") {
		t.Errorf("message = %q, want current status named", resp.Message)
	}
}

func TestCancelAppointment_Success(t *testing.T) {
	patientID := uuid.New()
	apptID := uuid.New()

	router := newTestRouter(t, &stubRepo{
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
			return &schedule.Appointment{ID: apptID, PatientID: patientID, Status: schedule.StatusScheduled}, nil
		},
		transitionFn: func(ctx context.Context, id uuid.UUID, to schedule.AppointmentStatus, by *schedule.CancelActor, reason *string) (*schedule.Appointment, error) {
			return &schedule.Appointment{ID: apptID, PatientID: patientID, Status: schedule.StatusCancelled, CancelledBy: by}, nil
		},
	})

	body := `{"cancelled_by":"patient","patient_id":"` + patientID.String() + `","reason":"conflict"}`
	rec := doRequest(router, http.MethodDelete, "/v1/appointments/"+apptID.String(), body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp CancelAppointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatalf("resp = %+v, want success", resp)
	}
}

func TestCancelAppointment_ForeignPatientIs400(t *testing.T) {
	apptID := uuid.New()

	router := newTestRouter(t, &stubRepo{
		getAppointmentFn: func(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
			return &schedule.Appointment{ID: apptID, PatientID: uuid.New(), Status: schedule.StatusScheduled}, nil
		},
	})

	body := `{"cancelled_by":"patient","patient_id":"` + uuid.NewString() + `"}`
	rec := doRequest(router, http.MethodDelete, "/v1/appointments/"+apptID.String(), body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errResp.Error != "ownership_mismatch" {
		t.Errorf("error = %q, want ownership_mismatch", errResp.Error)
	}
}

func TestCancelAppointment_BadBodyIs400(t *testing.T) {
	router := newTestRouter(t, &stubRepo{})

	rec := doRequest(router, http.MethodDelete, "/v1/appointments/"+uuid.NewString(), "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateBlock_Created(t *testing.T) {
	profID := uuid.New()
	blockID := uuid.New()

	router := newTestRouter(t, &stubRepo{
		getProfessionalFn: func(ctx context.Context, id uuid.UUID) (*schedule.Professional, error) {
			return &schedule.Professional{ID: id, Active: true}, nil
		},
		createBlockFn: func(ctx context.Context, b schedule.Block) (uuid.UUID, error) {
			if b.StartMinute == nil || *b.StartMinute != 600 {
				t.Errorf("start minute = %v, want 600", b.StartMinute)
			}
			return blockID, nil
		},
	})

	body := `{"date":"2025-06-10","start_time":"10:00","end_time":"11:00","type":"personal"}`
	rec := doRequest(router, http.MethodPost, "/v1/professionals/"+profID.String()+"/blocks", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp CreateBlockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != blockID {
		t.Errorf("id = %s, want %s", resp.ID, blockID)
	}
}

func TestCreateBlock_OverlapIs409(t *testing.T) {
	profID := uuid.New()

	router := newTestRouter(t, &stubRepo{
		getProfessionalFn: func(ctx context.Context, id uuid.UUID) (*schedule.Professional, error) {
			return &schedule.Professional{ID: id, Active: true}, nil
		},
		createBlockFn: func(ctx context.Context, b schedule.Block) (uuid.UUID, error) {
			return uuid.Nil, schedule.ErrBlockOverlap
		},
	})

	body := `{"date":"2025-06-10","type":"vacation"}`
	rec := doRequest(router, http.MethodPost, "/v1/professionals/"+profID.String()+"/blocks", body)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateBlock_BadTimeFormatIs400(t *testing.T) {
	router := newTestRouter(t, &stubRepo{})

	body := `{"date":"2025-06-10","start_time":"10am","end_time":"11:00","type":"personal"}`
	rec := doRequest(router, http.MethodPost, "/v1/professionals/"+uuid.NewString()+"/blocks", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := errResp.Fields["start_time"]; !ok {
		t.Errorf("fields = %v, want start_time flagged", errResp.Fields)
	}
}

func TestDeleteBlock_RequiresOwner(t *testing.T) {
	router := newTestRouter(t, &stubRepo{})

	rec := doRequest(router, http.MethodDelete, "/v1/blocks/"+uuid.NewString(), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without professional_id", rec.Code)
	}
}

func TestDeleteBlock_ForeignBlockIs404(t *testing.T) {
	router := newTestRouter(t, &stubRepo{
		deleteBlockFn: func(ctx context.Context, blockID, professionalID uuid.UUID) error {
			return schedule.ErrBlockNotFound
		},
	})

	rec := doRequest(router, http.MethodDelete,
		"/v1/blocks/"+uuid.NewString()+"?professional_id="+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
