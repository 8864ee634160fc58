package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"visiond/internal/log"
	"visiond/internal/snapshot"
	"visiond/internal/storage"
)

type startRequest struct {
	Mobile string `json:"mobile"`
}

type contextEntry struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type contextRequest struct {
	Mobile  string         `json:"mobile"`
	Entries []contextEntry `json:"entries"`
	Note    string         `json:"note"`
}

// handleStart creates the overlay for the requested user or focuses
// the running instance. Responds only after the side effect applied.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	mobile, err := parseMobile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := s.manager.Start(r.Context(), mobile)
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleStop closes the overlay. Stopping a process with no running
// instance is a documented no-op, never an error status.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	status := s.manager.Stop(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleContextPush stores a financial snapshot pushed by the host
// dashboard for the Context Provider to summarize.
func (s *Server) handleContextPush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, "snapshot store not configured")
		return
	}

	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Mobile) == "" {
		writeError(w, http.StatusBadRequest, "mobile is required")
		return
	}

	snap := storage.Snapshot{User: req.Mobile, Note: req.Note}
	for _, e := range req.Entries {
		currency := e.Currency
		if currency == "" {
			currency = "INR"
		}
		minor, err := snapshot.AmountToMinor(e.Amount, currency)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("entry %q: %v", e.Label, err))
			return
		}
		snap.Entries = append(snap.Entries, storage.SnapshotEntry{
			Label:       e.Label,
			AmountMinor: minor,
			Currency:    currency,
		})
	}

	if err := s.store.ReplaceSnapshot(r.Context(), snap); err != nil {
		s.logger.ErrorContext(r.Context(), "snapshot push failed", log.FieldUser, req.Mobile, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "snapshot store failed")
		return
	}
	if s.cache != nil {
		s.cache.Invalidate(req.Mobile)
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "updated", "entries": len(snap.Entries)})
}

// The /overlay handlers are the platform shell's side of the window:
// toggle clicks and the capture button arrive here and the resulting
// surface commands flow back out over the bridge.

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	s.overlayOp(w, r, "expanded", s.manager.Expand)
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	s.overlayOp(w, r, "collapsed", s.manager.Collapse)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.overlayOp(w, r, "reset", s.manager.Reset)
}

func (s *Server) overlayOp(w http.ResponseWriter, r *http.Request, status string, op func() error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if err := op(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// handleCapture runs one capture-to-advice cycle and reports its
// outcome. Failures inside the cycle are part of the outcome; an error
// here means the cycle never started.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	outcome, err := s.manager.RunCycle(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": outcome.OK, "message": outcome.Message()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.started).String(),
		"running": s.manager.Running(),
	}
	if state, ok := s.manager.State(); ok {
		health["state"] = state.String()
		health["user"] = s.manager.ActiveUser()
	}
	writeJSON(w, http.StatusOK, health)
}

// parseMobile accepts the JSON body the dashboard sends or a plain
// form field. An absent identifier is valid; the manager binds
// "unknown" in that case.
func parseMobile(r *http.Request) (string, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// An empty body means an absent identifier.
			if errors.Is(err, io.EOF) {
				return "", nil
			}
			return "", fmt.Errorf("invalid JSON body")
		}
		return strings.TrimSpace(req.Mobile), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form body")
	}
	return strings.TrimSpace(r.PostFormValue("mobile")), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
