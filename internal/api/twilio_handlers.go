package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/TerraPipe/internal/flow"
	"github.com/BTreeMap/TerraPipe/internal/models"
	"github.com/BTreeMap/TerraPipe/internal/twiliowhatsapp"
)

// WhatsAppSessionPrefix namespaces sessions opened from WhatsApp.
const WhatsAppSessionPrefix = "wa:"

const (
	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response/>`
	msgBusy    = "⏳ Je traite encore votre message précédent, merci de patienter quelques secondes."
	msgTooLong = "Votre message est trop long. Merci de le raccourcir."
)

// whatsappWebhookHandler handles POST /twilio/whatsapp
func (s *Server) whatsappWebhookHandler(w http.ResponseWriter, r *http.Request) {
	in, err := twiliowhatsapp.ParseInbound(r)
	if err != nil {
		slog.Warn("Server.whatsappWebhookHandler: invalid form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid form body"))
		return
	}
	if s.validator != nil && !s.validator.Validate(r, s.webhookURL) {
		slog.Warn("Server.whatsappWebhookHandler: signature mismatch", "from", in.From)
		writeJSONResponse(w, http.StatusForbidden, models.Error("Invalid signature"))
		return
	}
	if in.From == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing sender"))
		return
	}

	ctx := r.Context()
	id := WhatsAppSessionPrefix + in.From
	replies, err := s.handleWhatsApp(ctx, id, in.Body)
	if err != nil {
		slog.Error("Server.whatsappWebhookHandler: failed to handle message", "error", err, "sessionID", id)
		replies = []string{flow.MsgGenericFailure}
	}
	for _, text := range replies {
		if err := s.whatsapp.SendMessage(ctx, in.From, text); err != nil {
			slog.Error("Server.whatsappWebhookHandler: failed to send reply", "error", err, "to", in.From)
			break
		}
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(emptyTwiML)); err != nil {
		slog.Error("Server.whatsappWebhookHandler: failed to write TwiML", "error", err)
	}
}

// handleWhatsApp feeds body to the session behind id, opening it on first
// contact, and returns the texts to send back.
func (s *Server) handleWhatsApp(ctx context.Context, id, body string) ([]string, error) {
	session, created, err := s.sessions.GetOrStart(ctx, id)
	switch {
	case errors.Is(err, models.ErrSubmissionPending):
		return []string{msgBusy}, nil
	case err != nil:
		return nil, err
	}
	var replies []string
	if created {
		for _, m := range session.Messages {
			replies = append(replies, m.Text)
		}
		// A first "bonjour" is answered by the greeting alone.
		if flow.IsGreeting(body) {
			return replies, nil
		}
	}

	res, err := s.sessions.Submit(ctx, id, body)
	switch {
	case errors.Is(err, models.ErrEmptyInput):
		return append(replies, flow.MsgEmptyInput), nil
	case errors.Is(err, models.ErrInputTooLong):
		return append(replies, msgTooLong), nil
	case errors.Is(err, models.ErrSubmissionPending):
		return append(replies, msgBusy), nil
	case err != nil:
		return nil, err
	}
	for _, m := range res.Appended {
		if m.Sender != models.SenderUser {
			replies = append(replies, m.Text)
		}
	}
	return replies, nil
}
