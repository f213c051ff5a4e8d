package handlers

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/YashSaini213/virtual-conference-translator/internal/api/middleware"
	"github.com/YashSaini213/virtual-conference-translator/internal/crypto"
	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// Most recent transcript lines fed to the summarizer.
const summarizeTail = 200

// SummaryResponse represents a summary in API responses.
type SummaryResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"`
}

// Summarize generates a summary from the transcript tail (host only). The
// result is persisted and broadcast to the room as a summary-update event.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.summarizer == nil || !h.summarizer.Enabled() {
		h.Error(w, http.StatusNotImplemented, "summarization is not configured")
		return
	}

	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if sess.HostID != claims.UserID() {
		h.Error(w, http.StatusForbidden, "only the host can request a summary")
		return
	}

	entries, err := h.ds.ListTranscript(r.Context(), sess.ID.String(), summarizeTail, 0)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if len(entries) == 0 {
		h.Error(w, http.StatusUnprocessableEntity, "transcript is empty")
		return
	}

	// ListTranscript returns newest first; the summarizer wants oldest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	text, err := h.summarizer.Summarize(r.Context(), entries)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("summarize failed")
		h.Error(w, http.StatusBadGateway, "summarization failed")
		return
	}

	summary := &models.Summary{
		ID:        crypto.NewEventID(),
		SessionID: sess.ID.String(),
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := h.ds.SaveSummary(r.Context(), summary); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to save summary")
		return
	}

	metrics.SummariesGenerated.Inc()

	// Broadcast to the room. Best-effort: members also see the summary via
	// the REST endpoint.
	payload, err := json.Marshal(map[string]string{"text": text})
	if err == nil {
		ev := &models.Event{
			Type:      models.EventSummaryUpdate,
			SessionID: sess.ID.String(),
			Sender:    models.Sender{UserID: sess.HostID},
			Payload:   payload,
		}
		if _, err := h.relay.Router.Publish(r.Context(), ev, ""); err != nil {
			h.logger.Debug().Err(err).Msg("summary broadcast skipped")
		}
	}

	h.JSON(w, http.StatusOK, SummaryResponse{
		ID:        summary.ID,
		SessionID: summary.SessionID,
		Text:      summary.Text,
		Timestamp: summary.Timestamp,
	})
}

// GetLatestSummary returns the most recent summary for a session.
func (h *Handler) GetLatestSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}

	summary, err := h.ds.GetLatestSummary(r.Context(), sess.ID.String())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	if summary == nil {
		h.Error(w, http.StatusNotFound, "no summary yet")
		return
	}

	h.JSON(w, http.StatusOK, SummaryResponse{
		ID:        summary.ID,
		SessionID: summary.SessionID,
		Text:      summary.Text,
		Timestamp: summary.Timestamp,
	})
}
