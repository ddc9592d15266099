package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BTreeMap/TerraPipe/internal/flow"
	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/go-chi/chi/v5"
)

// SubmitRequest is the body of POST /sessions/{id}/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// SessionView is a session with the step metadata a client needs to render it.
type SessionView struct {
	*models.Session
	StepLabel   string   `json:"step_label"`
	StepIndex   int      `json:"step_index"`
	StepCount   int      `json:"step_count"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func newSessionView(s *models.Session) SessionView {
	v := SessionView{Session: s, StepCount: len(flow.Steps)}
	if step, ok := flow.StepByID(s.CurrentStep); ok {
		v.StepLabel = step.Label
		v.StepIndex = step.Index
	}
	v.Suggestions = flow.Suggestions(s.CurrentStep)
	return v
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}

// startSessionHandler handles POST /sessions
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Start(r.Context())
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to start session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(newSessionView(session)))
}

// listSessionsHandler handles GET /sessions
func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		slog.Error("Server.listSessionsHandler: failed to list sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"sessions": ids, "count": len(ids)}))
}

// getSessionHandler handles GET /sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(newSessionView(session)))
}

// deleteSessionHandler handles DELETE /sessions/{id}
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

// submitHandler handles POST /sessions/{id}/messages
func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitHandler: invalid JSON", "error", err, "sessionID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	res, err := s.sessions.Submit(r.Context(), id, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	view := newSessionView(res.Session)
	body := submitResponse{SubmitResult: res, StepLabel: view.StepLabel, Suggestions: view.Suggestions}
	if !res.Accepted {
		last := res.Appended[len(res.Appended)-1]
		writeJSONResponse(w, http.StatusOK, models.Rejected(last.Text, body))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(body))
}

type submitResponse struct {
	*flow.SubmitResult
	StepLabel   string   `json:"step_label"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// backHandler handles POST /sessions/{id}/back?purge=true|false
func (s *Server) backHandler(w http.ResponseWriter, r *http.Request) {
	purge := false
	if raw := r.URL.Query().Get("purge"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("purge must be true or false"))
			return
		}
		purge = v
	}
	session, err := s.sessions.Back(r.Context(), chi.URLParam(r, "id"), purge)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(newSessionView(session)))
}

// resetHandler handles POST /sessions/{id}/reset
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(newSessionView(session)))
}

// reportHandler handles GET /sessions/{id}/report?format=md|pdf|docx
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	formatter, err := s.formats.Create(r.URL.Query().Get("format"))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	session, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Before the analysis step the report covers the answers given so far
	text := flow.BuildReport(&session.Context, "")
	if sum := session.Context.Summary; sum != nil {
		text = flow.AnalysisText(sum)
	}

	data, err := formatter.Format(flow.ReportTitle, text)
	if err != nil {
		slog.Error("Server.reportHandler: failed to format report", "error", err, "sessionID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to format report"))
		return
	}
	w.Header().Set("Content-Type", formatter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"diagnostic-%s%s\"", id, formatter.FileExtension()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Server.reportHandler: failed to write report", "error", err, "sessionID", id)
	}
}
