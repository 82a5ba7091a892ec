package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/zsweep/internal/measurement"
	"github.com/RMahshie/zsweep/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// LiveHandler streams live sweep events over a websocket
type LiveHandler struct {
	svc      measurement.Service
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a live feed handler accepting the given origins.
// An origin of "*" accepts any.
func NewLiveHandler(svc measurement.Service, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote_ip", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()

	log.Info().Str("remote_ip", r.RemoteAddr).Msg("Live feed client connected")

	// The first event tells the client the subscription is active.
	hello := models.LiveEvent{Type: models.EventStatus, Status: "subscribed", Time: time.Now()}
	if st := h.svc.State(); st.RunningID != nil {
		hello.SweepID = *st.RunningID
		hello.Status = models.StatusRunning
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	// The reader only handles control frames and notices the client leaving.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Info().Str("remote_ip", r.RemoteAddr).Msg("Live feed client disconnected")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Msg("Live feed write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
