package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/YashSaini213/virtual-conference-translator/internal/api/middleware"
	"github.com/YashSaini213/virtual-conference-translator/internal/metrics"
	"github.com/YashSaini213/virtual-conference-translator/internal/models"
)

// CreateSessionRequest represents the session creation request.
type CreateSessionRequest struct {
	Title string `json:"title"`
	Key   string `json:"key,omitempty"` // Shared secret for private sessions
}

// SessionResponse represents a session in API responses.
type SessionResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	HostID       string `json:"host_id"`
	Status       string `json:"status"`
	IsPrivate    bool   `json:"is_private"`
	CreatedAt    int64  `json:"created_at"`
	EndedAt      int64  `json:"ended_at,omitempty"`
	LastActiveAt int64  `json:"last_active_at"`
	EventCount   int64  `json:"event_count"`
}

// SessionListResponse represents the list sessions response.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

func sessionResponse(s *models.Session) SessionResponse {
	resp := SessionResponse{
		ID:           s.ID.String(),
		Title:        s.Title,
		HostID:       s.HostID,
		Status:       s.Status,
		IsPrivate:    s.IsPrivate,
		CreatedAt:    s.CreatedAt.UnixMilli(),
		LastActiveAt: s.LastActiveAt.UnixMilli(),
		EventCount:   s.EventCount,
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.UnixMilli()
	}
	return resp
}

// CreateSession handles session creation (authenticated).
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	title := sanitizeTitle(req.Title)
	if title == "" {
		h.Error(w, http.StatusBadRequest, "title required")
		return
	}

	var keyHash string
	if req.Key != "" {
		if len(req.Key) < 8 {
			h.Error(w, http.StatusBadRequest, "key must be at least 8 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Key), bcrypt.DefaultCost)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to hash key")
			return
		}
		keyHash = string(hash)
	}

	sess, err := h.ds.CreateSession(r.Context(), title, claims.UserID(), keyHash)
	if err != nil {
		h.logger.Error().Err(err).Msg("session create failed")
		h.Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	metrics.SessionsCreated.Inc()
	h.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("host_id", sess.HostID).
		Bool("private", sess.IsPrivate).
		Msg("session created")

	h.JSON(w, http.StatusCreated, sessionResponse(sess))
}

// ListSessions returns active sessions with pagination.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20, 100)
	offset := parseIntParam(r, "offset", 0, 1<<30)

	sessions, total, err := h.ds.ListActiveSessions(r.Context(), limit, offset)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := SessionListResponse{
		Sessions: make([]SessionResponse, 0, len(sessions)),
		Total:    total,
	}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, sessionResponse(&sessions[i]))
	}
	h.JSON(w, http.StatusOK, resp)
}

// GetSession returns a single session by ID.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, sessionResponse(sess))
}

// EndSession ends a session (host only). Every connection still in the room
// is evicted.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sess, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	if sess.HostID != claims.UserID() {
		h.Error(w, http.StatusForbidden, "only the host can end a session")
		return
	}

	if err := h.ds.EndSession(r.Context(), sess.ID); err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("session end failed")
		h.Error(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	h.relay.CloseRoom(sess.ID.String())
	if h.redis != nil {
		if err := h.redis.DropCaptions(r.Context(), sess.ID.String()); err != nil {
			h.logger.Debug().Err(err).Msg("caption cache drop failed")
		}
	}

	h.logger.Info().Str("session_id", sess.ID.String()).Msg("session ended")
	h.JSON(w, http.StatusOK, map[string]string{"status": models.SessionEnded})
}

// sessionFromPath resolves the {sessionID} path parameter. Writes the error
// response itself when resolution fails.
func (h *Handler) sessionFromPath(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	sess, err := h.ds.GetSession(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	if sess == nil {
		h.Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
