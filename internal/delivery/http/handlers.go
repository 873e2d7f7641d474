package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/davidmr/geotrack/internal/config"
	"github.com/davidmr/geotrack/internal/delivery/ws"
	"github.com/davidmr/geotrack/internal/storage"
)

// isOriginAllowed checks if the origin is in the allowed list
func isOriginAllowed(origin string) bool {
	// Empty origin is allowed (same-origin requests)
	if origin == "" {
		return true
	}

	for _, allowed := range config.AppConfig.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return isOriginAllowed(origin)
	},
}

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// sanitizeName cleans and validates a display name. Returns "" when nothing
// usable remains.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	// Limit length to 50 characters
	if utf8.RuneCountInString(name) > 50 {
		runes := []rune(name)
		name = string(runes[:50])
	}

	// Strip HTML tags and control characters: names are echoed to every
	// room member
	name = htmlTagRegex.ReplaceAllString(name, "")
	name = controlCharRegex.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}

// Handler serves the registration, history and websocket endpoints
type Handler struct {
	store  *storage.Store
	engine *ws.Engine
}

// NewHandler creates a Handler backed by the given store and protocol engine
func NewHandler(store *storage.Store, engine *ws.Engine) *Handler {
	return &Handler{
		store:  store,
		engine: engine,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleRegister creates a user and returns their access token
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	user, err := h.store.CreateUser(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleHistory exports the caller's recorded positions as a JSON download.
// The caller is identified by the token query parameter.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token required")
		return
	}

	user, err := h.store.LookupByToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusForbidden, "invalid token")
			return
		}
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	locations, err := h.store.HistoryByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}

	filename := user.Name
	if filename == "" {
		filename = user.ID
	}
	// Names may hold spaces or quotes; FormatMediaType quotes as needed
	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": "history_" + filename + ".json",
	})
	w.Header().Set("Content-Disposition", disposition)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      map[string]string{"id": user.ID, "name": user.Name},
		"locations": locations,
	})
}

// HandleWebSocket upgrades the request and hands the connection to the
// protocol engine. Authentication happens in-band over the socket.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.engine, conn)
	client.Start()
}

// HandleHealth reports liveness and current hub occupancy
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rooms, clients := h.engine.Hub().Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"rooms":   rooms,
		"clients": clients,
	})
}
