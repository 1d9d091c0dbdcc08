// Package web exposes the local observer HTTP surface: connection status,
// the live event stream, and a health check.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/xrmultiplayer/sessionflow/internal/events"
	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/services/orchestrator"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
)

// Time between SSE keepalive pings
const pingPeriod = 30 * time.Second

// RouterConfig holds configuration for the observer router
type RouterConfig struct {
	Logger  *slog.Logger
	Machine *orchestrator.Machine
	Session *sessionctx.Context
	Bus     *events.Bus
}

// NewRouter creates the observer router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	h := &handler{
		machine: cfg.Machine,
		session: cfg.Session,
		bus:     cfg.Bus,
		logger:  cfg.Logger.With(slog.String("component", "web")),
	}

	r.Use(Recovery(cfg.Logger))
	r.Use(Logging(cfg.Logger))

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/events", h.events).Methods(http.MethodGet)

	return r
}

type handler struct {
	machine *orchestrator.Machine
	session *sessionctx.Context
	bus     *events.Bus
	logger  *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// statusResponse is the JSON shape of GET /status
type statusResponse struct {
	State         string          `json:"state"`
	PlayerName    string          `json:"player_name"`
	Authenticated bool            `json:"authenticated"`
	PlayerID      string          `json:"player_id,omitempty"`
	PlayerCount   int             `json:"player_count"`
	Session       *sessionSummary `json:"session,omitempty"`
}

type sessionSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	JoinCode   string `json:"join_code"`
	Host       bool   `json:"host"`
	MaxPlayers int    `json:"max_players"`
	IsPrivate  bool   `json:"is_private"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	id := h.session.Identity()
	resp := statusResponse{
		State:         h.machine.State().String(),
		PlayerName:    h.session.PlayerName(),
		Authenticated: id.Established(),
		PlayerID:      string(id.LocalDiscriminator),
		PlayerCount:   h.machine.PlayerCount(),
	}
	if desc := h.machine.ConnectedSession(); desc != nil {
		resp.Session = &sessionSummary{
			ID:         desc.ID,
			Name:       desc.DisplayName,
			JoinCode:   desc.JoinCode(),
			Host:       desc.HostDiscriminator == id.LocalDiscriminator,
			MaxPlayers: desc.MaxPlayers,
			IsPrivate:  desc.IsPrivate,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("status encode failed", slog.String("error", err.Error()))
	}
}

// events streams bus events as SSE until the client disconnects
func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-sub:
			if !open {
				return
			}
			if _, err := w.Write(formatEvent(ev)); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// formatEvent renders one bus event as an SSE message
func formatEvent(ev model.Event) []byte {
	data, err := json.Marshal(struct {
		Timestamp time.Time `json:"timestamp"`
		Payload   any       `json:"payload,omitempty"`
	}{Timestamp: ev.Timestamp, Payload: ev.Payload})
	if err != nil {
		data = []byte("{}")
	}
	msg := "event: " + string(ev.Type) + "\n"
	msg += "data: " + string(data) + "\n\n"
	return []byte(msg)
}
