package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/natnaelb/microloan-ussd/internal/metrics"
	"github.com/natnaelb/microloan-ussd/internal/ussd"
)

const (
	msgTimeout      = "Session timed out. Please try again."
	msgServiceError = "Service error. Please try again later."
)

// sessionLocks serializes requests per session id. The channel normally
// sends at most one request per session at a time; this guards against a
// misbehaving gateway retrying concurrently.
var sessionLocks sync.Map

func lockFor(sessionID string) *sync.Mutex {
	v, _ := sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// ReleaseSessionLock drops the lock entry for a session id. Wired as the
// session store's eviction callback so abandoned conversations do not
// leave lock entries behind.
func ReleaseSessionLock(sessionID string) {
	sessionLocks.Delete(sessionID)
}

// HandleUSSD is the gateway entry point: a form-encoded request carrying
// the full input trail, answered with a CON/END prefixed text payload.
func (h *Handler) HandleUSSD(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	sessionID := r.PostFormValue("sessionId")
	serviceCode := r.PostFormValue("serviceCode")
	phone := r.PostFormValue("phoneNumber")
	text := r.PostFormValue("text")

	if sessionID == "" || phone == "" {
		http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
		return
	}

	slog.Info("USSD request",
		"session_id", sessionID, "service_code", serviceCode, "msisdn", phone)

	mu := lockFor(sessionID)
	mu.Lock()
	ended := false
	defer func() {
		mu.Unlock()
		// The lock entry is dropped only after unlock; a gateway retry
		// for the same id must not mint a second mutex while this one
		// is still held.
		if ended {
			sessionLocks.Delete(sessionID)
		}
	}()

	// The machine never exposes internal faults to the handset.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("USSD handler panic", "session_id", sessionID, "panic", rec)
			ended = true
			h.terminate(w, sessionID, ussd.End(msgServiceError), "error")
		}
	}()

	sess, created := h.sessions.LoadOrCreate(sessionID)
	if !created && h.sessions.Expired(sess) {
		metrics.SessionTimeouts.Inc()
		ended = true
		h.terminate(w, sessionID, ussd.End(msgTimeout), "end")
		return
	}
	h.sessions.Touch(sessionID)

	reply, err := h.engine.Handle(r.Context(), sess, phone, ussd.Latest(text))
	if err != nil {
		slog.Error("USSD transition failed",
			"session_id", sessionID, "msisdn", phone, "screen", sess.Screen, "error", err)
		ended = true
		h.terminate(w, sessionID, ussd.End(msgServiceError), "error")
		return
	}

	if reply.End {
		ended = true
		h.terminate(w, sessionID, reply, "end")
		return
	}
	metrics.Requests.WithLabelValues("con").Inc()
	writeReply(w, reply)
}

// terminate deletes the session and writes a terminal reply. No terminal
// response may leave a session behind; the caller releases the lock entry
// once the per-session mutex is no longer held.
func (h *Handler) terminate(w http.ResponseWriter, sessionID string, reply ussd.Reply, outcome string) {
	h.sessions.Delete(sessionID)
	metrics.Requests.WithLabelValues(outcome).Inc()
	writeReply(w, reply)
}

func writeReply(w http.ResponseWriter, reply ussd.Reply) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(reply.Render())); err != nil {
		slog.Warn("Failed to write USSD reply", "error", err)
	}
}
