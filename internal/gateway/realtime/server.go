package realtime

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/syntrixbase/daybook/internal/core/identity/authn"
	"github.com/syntrixbase/daybook/internal/gateway/config"
)

// Server upgrades /realtime/ws requests and attaches them to the hub.
type Server struct {
	hub      *Hub
	verifier authn.TokenValidator
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(hub *Hub, verifier authn.TokenValidator, cfg config.RealtimeConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hub:      hub,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger.With("component", "realtime"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkAllowedOrigin(r.Header.Get("Origin"), r.Host, s.cfg) == nil
		},
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /realtime/ws", s.HandleWS)
}

// HandleWS authenticates from the Authorization header when present.
// Clients that cannot set headers send an auth message after connecting.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("access_token") != "" || r.URL.Query().Get("token") != "" {
		http.Error(w, "Query token not allowed", http.StatusUnauthorized)
		return
	}

	var owner string
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := authn.BearerToken(header)
		if !ok {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}
		o, err := s.verifier.ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		owner = o.ID
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	buffer := s.cfg.SendBuffer
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	client := &Client{
		hub:          s.hub,
		conn:         conn,
		verifier:     s.verifier,
		logger:       s.logger,
		pingInterval: s.cfg.PingInterval,
		writeTimeout: s.cfg.WriteTimeout,
		send:         make(chan BaseMessage, buffer),
		owner:        owner,
		communities:  make(map[string]struct{}),
	}
	if client.pingInterval <= 0 || client.pingInterval >= pongWait {
		client.pingInterval = (pongWait * 9) / 10
	}
	if client.writeTimeout <= 0 {
		client.writeTimeout = defaultWriteTimeout
	}

	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func checkAllowedOrigin(origin string, reqHost string, cfg config.RealtimeConfig) error {
	if origin == "" {
		return nil
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return errors.New("origin not allowed")
	}

	// Allow same host origin
	originHost := strings.Split(parsed.Host, ":")[0]
	reqHostPart := strings.Split(reqHost, ":")[0]
	if strings.EqualFold(originHost, reqHostPart) {
		return nil
	}

	if cfg.AllowDevOrigin {
		if originHost == "localhost" || originHost == "127.0.0.1" {
			return nil
		}
	}

	trimmedOrigin := strings.TrimRight(origin, "/")
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "" {
			continue
		}
		if strings.EqualFold(strings.TrimRight(allowed, "/"), trimmedOrigin) {
			return nil
		}
	}

	return errors.New("origin not allowed")
}
