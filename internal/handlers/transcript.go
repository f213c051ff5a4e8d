package handlers

import (
	"net/http"
	"strconv"

	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// TranscriptEntryResponse represents one transcript line in API responses.
type TranscriptEntryResponse struct {
	ID        string `json:"id"`
	SpeakerID string `json:"speaker_id"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
	Lang      string `json:"lang,omitempty"`
	Timestamp int64  `json:"ts"`
}

// TranscriptResponse represents the get transcript response.
type TranscriptResponse struct {
	SessionID string                    `json:"session_id"`
	Entries   []TranscriptEntryResponse `json:"entries"`
	HasMore   bool                      `json:"has_more"`
}

func transcriptEntries(entries []models.TranscriptEntry) []TranscriptEntryResponse {
	out := make([]TranscriptEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TranscriptEntryResponse{
			ID:        e.ID,
			SpeakerID: e.SpeakerID,
			Speaker:   e.Speaker,
			Text:      e.Text,
			Lang:      e.Lang,
			Timestamp: e.Timestamp,
		})
	}
	return out
}

// GetTranscript returns a session's persisted transcript, newest first.
// Paginate with ?before=<ts>.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}

	limit := parseIntParam(r, "limit", 50, 200)
	var before int64
	if raw := r.URL.Query().Get("before"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			before = n
		}
	}

	entries, err := h.ds.ListTranscript(r.Context(), sess.ID.String(), limit+1, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	h.JSON(w, http.StatusOK, TranscriptResponse{
		SessionID: sess.ID.String(),
		Entries:   transcriptEntries(entries),
		HasMore:   hasMore,
	})
}

// GetRecentCaptions returns the caption replay cache for a session. Falls
// back to the database when no cache is configured.
func (h *Handler) GetRecentCaptions(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}

	limit := parseIntParam(r, "limit", 50, 200)

	var entries []models.TranscriptEntry
	var err error
	if h.redis != nil {
		entries, err = h.redis.RecentCaptions(r.Context(), sess.ID.String(), limit)
	} else {
		entries, err = h.ds.ListTranscript(r.Context(), sess.ID.String(), limit, 0)
	}
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load captions")
		return
	}

	h.JSON(w, http.StatusOK, TranscriptResponse{
		SessionID: sess.ID.String(),
		Entries:   transcriptEntries(entries),
	})
}
