package patient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

var (
	errNotFound = errors.New("record not found")
	errNotToday = errors.New("not today")
)

type stubRegistry struct {
	patients  []Patient
	added     []NewInput
	queueErr  error
	queueGot  Patient
	deletedID string
}

func (s *stubRegistry) Patients() []Patient { return s.patients }

func (s *stubRegistry) AddPatient(in NewInput) (Patient, error) {
	if err := in.Validate(); err != nil {
		return Patient{}, err
	}
	s.added = append(s.added, in)
	return Patient{ID: "new", Name: in.Name, TokenNumber: 1, QueueStatus: QueueWaiting}, nil
}

func (s *stubRegistry) UpdatePatient(p Patient) error { return nil }

func (s *stubRegistry) DeletePatient(id string) error {
	s.deletedID = id
	return nil
}

func (s *stubRegistry) UpdateQueueStatus(id string, to QueueStatus) (Patient, error) {
	if s.queueErr != nil {
		return Patient{}, s.queueErr
	}
	s.queueGot = Patient{ID: id, QueueStatus: to}
	return s.queueGot, nil
}

func request(t *testing.T, h echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestCreateReturnsToken(t *testing.T) {
	reg := &stubRegistry{}
	h := NewHandler(reg, errNotFound, errNotToday)

	body := `{"date":"2025-03-10","name":"Asha Rao","age":34,"gender":"Female","contact":"9876543210","testId":"1","amountReceived":1000,"paymentMode":"Cash","patientType":"Direct"}`
	rec := request(t, h.Create, http.MethodPost, "/patients", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(reg.added) != 1 {
		t.Fatalf("added = %d registrations", len(reg.added))
	}
	if !strings.Contains(rec.Body.String(), `"tokenNumber":1`) {
		t.Fatalf("response missing token: %s", rec.Body.String())
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := NewHandler(&stubRegistry{}, errNotFound, errNotToday)
	rec := request(t, h.Create, http.MethodPost, "/patients", `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueueStatusErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errNotFound, http.StatusNotFound},
		{errNotToday, http.StatusConflict},
		{errors.New("invalid queue transition"), http.StatusConflict},
	}
	for _, tc := range cases {
		reg := &stubRegistry{queueErr: tc.err}
		h := NewHandler(reg, errNotFound, errNotToday)
		rec := request(t, h.QueueStatus, http.MethodPost, "/patients/p1/queue-status", `{"status":"In Progress"}`, "id", "p1")
		if rec.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestListFilters(t *testing.T) {
	reg := &stubRegistry{patients: []Patient{
		{ID: "a", Date: "2025-03-10", Name: "Asha Rao", Contact: "9876543210"},
		{ID: "b", Date: "2025-03-09", Name: "Vijay Kumar", Contact: "9567890123"},
	}}
	h := NewHandler(reg, errNotFound, errNotToday)

	rec := request(t, h.List, http.MethodGet, "/patients?date=2025-03-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Vijay") {
		t.Fatalf("date filter leaked other days: %s", rec.Body.String())
	}

	rec = request(t, h.List, http.MethodGet, "/patients?search=vijay", "")
	if !strings.Contains(rec.Body.String(), "Vijay") || strings.Contains(rec.Body.String(), "Asha") {
		t.Fatalf("name search wrong: %s", rec.Body.String())
	}
}

func TestDoctorSuggestions(t *testing.T) {
	reg := &stubRegistry{patients: []Patient{
		{ID: "a", DoctorRef: "Dr. Singh"},
		{ID: "b", DoctorRef: "Dr. Gupta"},
		{ID: "c", DoctorRef: "Dr. Singh"},
		{ID: "d"},
	}}
	h := NewHandler(reg, errNotFound, errNotToday)

	rec := request(t, h.DoctorSuggestions, http.MethodGet, "/patients/suggestions/doctors", "")
	want := `["Dr. Gupta","Dr. Singh"]`
	if strings.TrimSpace(rec.Body.String()) != want {
		t.Fatalf("suggestions = %s, want %s", rec.Body.String(), want)
	}
}
