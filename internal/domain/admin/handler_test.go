package admin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/platform/storage"
)

type stubAdmin struct {
	restored *storage.Envelope
	demoed   bool
	cleared  bool
	settings storage.Settings
}

func (s *stubAdmin) Snapshot() *storage.Envelope            { return storage.NewEnvelope() }
func (s *stubAdmin) Restore(env *storage.Envelope) error    { s.restored = env; return nil }
func (s *stubAdmin) LoadDemo() error                        { s.demoed = true; return nil }
func (s *stubAdmin) ClearAll() error                        { s.cleared = true; return nil }
func (s *stubAdmin) Settings() storage.Settings             { return s.settings }
func (s *stubAdmin) UpdateSettings(v storage.Settings) error { s.settings = v; return nil }

func testHandler(st *stubAdmin) *Handler {
	clk := clock.Fixed{T: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	return NewHandler(st, clk, zerolog.Nop())
}

func do(t *testing.T, h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestConfirmGateBlocksWithoutHeader(t *testing.T) {
	st := &stubAdmin{}
	h := testHandler(st)
	gated := requireConfirm(h.Clear)

	req := httptest.NewRequest(http.MethodPost, "/admin/clear", nil)
	rec := do(t, gated, req)
	if rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("status = %d, want 428", rec.Code)
	}
	if st.cleared {
		t.Fatal("destructive op ran without confirmation")
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/clear", nil)
	req.Header.Set("X-Confirm", "yes")
	rec = do(t, gated, req)
	if rec.Code != http.StatusNoContent || !st.cleared {
		t.Fatalf("confirmed clear: status = %d, cleared = %v", rec.Code, st.cleared)
	}
}

func TestRestoreRejectsBadBackup(t *testing.T) {
	st := &stubAdmin{}
	h := testHandler(st)

	req := httptest.NewRequest(http.MethodPost, "/admin/restore", strings.NewReader(`{"foo": 1}`))
	rec := do(t, h.Restore, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if st.restored != nil {
		t.Fatal("store touched by invalid backup")
	}
}

func TestRestoreAcceptsRawJSON(t *testing.T) {
	st := &stubAdmin{}
	h := testHandler(st)

	body := `{"patients": [{"id": "p1", "name": "Asha Rao"}], "rateCard": []}`
	req := httptest.NewRequest(http.MethodPost, "/admin/restore", strings.NewReader(body))
	rec := do(t, h.Restore, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if st.restored == nil || len(st.restored.Patients) != 1 {
		t.Fatalf("restored = %+v", st.restored)
	}
}

func TestBackupDownloadHasDatedFilename(t *testing.T) {
	h := testHandler(&stubAdmin{})
	req := httptest.NewRequest(http.MethodGet, "/admin/backup", nil)
	rec := do(t, h.Backup, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cd := rec.Header().Get(echo.HeaderContentDisposition)
	if !strings.Contains(cd, "clinicdesk-backup-2025-03-10.json") {
		t.Fatalf("content disposition = %q", cd)
	}
}
