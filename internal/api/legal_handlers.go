package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/TerraPipe/internal/legal"
	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/go-chi/chi/v5"
)

// AskRequest is the body of POST /legal/{id}/messages.
type AskRequest struct {
	Question string `json:"question"`
}

// legalAskHandler handles POST /legal/{id}/messages
func (s *Server) legalAskHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.legalAskHandler: invalid JSON", "error", err, "transcriptID", id)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	answer, err := s.assistant.Ask(r.Context(), id, req.Question)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(answer))
}

// legalHistoryHandler handles GET /legal/{id}
func (s *Server) legalHistoryHandler(w http.ResponseWriter, r *http.Request) {
	tr, err := s.assistant.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(tr))
}

// legalClearHandler handles DELETE /legal/{id}
func (s *Server) legalClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.assistant.Clear(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation cleared", nil))
}

func (s *Server) legalTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(legal.Templates()))
}

func (s *Server) legalResourcesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(legal.ReferenceResources()))
}
