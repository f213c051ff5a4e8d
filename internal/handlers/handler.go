package handlers

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/YashSaini213/virtual-conference-translator/internal/relay"
	"github.com/YashSaini213/virtual-conference-translator/internal/store"
	"github.com/YashSaini213/virtual-conference-translator/internal/summarizer"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	ds         store.DataStore
	redis      *store.RedisStore
	relay      *relay.Relay
	summarizer *summarizer.Client
	logger     zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. redis and
// summarizer may be nil.
func NewHandler(ds store.DataStore, redis *store.RedisStore, rl *relay.Relay, sm *summarizer.Client, logger zerolog.Logger) *Handler {
	return &Handler{
		ds:         ds,
		redis:      redis,
		relay:      rl,
		summarizer: sm,
		logger:     logger.With().Str("component", "handlers").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeTitle trims and limits a title to 200 characters, removing control
// characters.
func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)

	title = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, title)

	if len(title) > 200 {
		title = title[:200]
	}

	return title
}
