package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/natnaelb/microloan-ussd/internal/catalog"
	"github.com/natnaelb/microloan-ussd/internal/menu"
	"github.com/natnaelb/microloan-ussd/internal/session"
	"github.com/natnaelb/microloan-ussd/internal/store"
)

func newTestServer(t *testing.T, timeout time.Duration) (http.Handler, *session.Store) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "ussd.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	sessions := session.NewStore(timeout)
	sessions.OnEvict(ReleaseSessionLock)
	engine := menu.New(repo, cat, menu.Config{DefaultPIN: "1234"})

	r := chi.NewRouter()
	NewHandler(sessions, engine, repo).RegisterRoutes(r)
	return r, sessions
}

func postUSSD(t *testing.T, h http.Handler, sessionID, phone, text string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{
		"sessionId":   {sessionID},
		"serviceCode": {"*384#"},
		"phoneNumber": {phone},
		"text":        {text},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/ussd", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUSSDConversation(t *testing.T) {
	h, sessions := newTestServer(t, time.Minute)
	const phone = "+251911000001"

	// Dial-in: the empty trail prompts for the PIN.
	rec := postUSSD(t, h, "at-1", phone, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "CON Enter your 4-digit PIN:" {
		t.Fatalf("dial-in body = %q", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}

	// The trail grows; only the latest token is examined.
	rec = postUSSD(t, h, "at-1", phone, "1234")
	if got := rec.Body.String(); !strings.HasPrefix(got, "CON Welcome to Microloan USSD.") {
		t.Fatalf("post-PIN body = %q", got)
	}

	rec = postUSSD(t, h, "at-1", phone, "1234*4")
	if got := rec.Body.String(); got != "END Your account balance is: 0" {
		t.Fatalf("balance body = %q", got)
	}

	// The terminal reply dropped the session and its lock entry; reusing
	// the id starts over.
	if sessions.Len() != 0 {
		t.Fatalf("sessions remaining = %d", sessions.Len())
	}
	if _, ok := sessionLocks.Load("at-1"); ok {
		t.Error("terminal reply left the lock entry behind")
	}
	rec = postUSSD(t, h, "at-1", phone, "1234*4*1")
	if got := rec.Body.String(); got != "CON Enter your 4-digit PIN:" {
		t.Errorf("reused id body = %q", got)
	}
}

func TestUSSDSessionTimeout(t *testing.T) {
	h, sessions := newTestServer(t, 30*time.Millisecond)
	const phone = "+251911000002"

	postUSSD(t, h, "at-2", phone, "")
	time.Sleep(50 * time.Millisecond)

	rec := postUSSD(t, h, "at-2", phone, "1234")
	if got := rec.Body.String(); got != "END Session timed out. Please try again." {
		t.Fatalf("timeout body = %q", got)
	}
	if sessions.Len() != 0 {
		t.Errorf("timed-out session not dropped, %d remaining", sessions.Len())
	}
}

func TestSweptSessionReleasesLock(t *testing.T) {
	h, sessions := newTestServer(t, 30*time.Millisecond)
	const phone = "+251911000005"

	postUSSD(t, h, "at-5", phone, "")
	if _, ok := sessionLocks.Load("at-5"); !ok {
		t.Fatal("live session has no lock entry")
	}

	// An abandoned conversation is reclaimed by the sweep, lock entry
	// included.
	time.Sleep(50 * time.Millisecond)
	if evicted := sessions.Sweep(); evicted != 1 {
		t.Fatalf("swept %d sessions, want 1", evicted)
	}
	if _, ok := sessionLocks.Load("at-5"); ok {
		t.Error("swept session left its lock entry behind")
	}
}

func TestUSSDMissingFields(t *testing.T) {
	h, _ := newTestServer(t, time.Minute)

	cases := []struct {
		name      string
		sessionID string
		phone     string
	}{
		{"no session id", "", "+251911000003"},
		{"no phone number", "at-3", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postUSSD(t, h, tc.sessionID, tc.phone, "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUSSDPINLockoutEndsSession(t *testing.T) {
	h, sessions := newTestServer(t, time.Minute)
	const phone = "+251911000004"

	postUSSD(t, h, "at-4", phone, "")
	postUSSD(t, h, "at-4", phone, "0000")
	postUSSD(t, h, "at-4", phone, "0000*0000")

	rec := postUSSD(t, h, "at-4", phone, "0000*0000*0000")
	if got := rec.Body.String(); got != "END Too many incorrect PIN attempts. Session ended." {
		t.Fatalf("lockout body = %q", got)
	}
	if sessions.Len() != 0 {
		t.Errorf("locked-out session not dropped, %d remaining", sessions.Len())
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); !strings.Contains(got, `"status":"ok"`) {
		t.Errorf("body = %q", got)
	}
}
