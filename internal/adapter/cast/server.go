// Package cast serves the current track over HTTP so receivers on the
// local network can stream it.
package cast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tunecast/tunecast/internal/domain"
	"github.com/tunecast/tunecast/internal/netutil"
	"github.com/tunecast/tunecast/internal/ports"
)

// Server streams the current track to cast receivers over HTTP.
//
// The listen port is picked by probing a configured range; the probe is
// racy by nature, so Start can still fail to bind the reported port and
// returns the bind error in that case.
//
// Thread-safety: This implementation is thread-safe.
type Server struct {
	logger *slog.Logger
	bus    ports.EventBus

	mu      sync.Mutex
	server  *http.Server
	port    int
	source  string
	title   string
	artist  string
	running bool
	wg      sync.WaitGroup
}

// NewServer creates a new cast server.
// The logger should carry the cast log file handler so receiver
// activity lands in the server log.
func NewServer(logger *slog.Logger, bus ports.EventBus) *Server {
	return &Server{
		logger: logger,
		bus:    bus,
		port:   netutil.PortNotFound,
	}
}

// SetTrack sets the track the /stream endpoint serves and the metadata
// reported by /status.
func (s *Server) SetTrack(track domain.MusicTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = strings.TrimPrefix(track.Source, "file://")
	s.title = track.Title
	s.artist = track.Artist
}

// Port returns the bound port, or netutil.PortNotFound when not running.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Start probes [startPort, endPort] for a free port, binds it and begins
// serving. Returns the bound port.
func (s *Server) Start(startPort, endPort int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.port, domain.ErrAlreadyInitialized
	}

	port := netutil.FindAvailablePort(startPort, endPort)
	if port == netutil.PortNotFound {
		s.logger.Error("no free port for cast server",
			slog.Int("start", startPort),
			slog.Int("end", endPort))
		return netutil.PortNotFound, domain.ErrNoFreePort
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		// The probed port was taken between the probe and this bind
		s.logger.Error("failed to bind probed port",
			slog.Int("port", port),
			slog.Any("error", err))
		return netutil.PortNotFound, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{Handler: mux}
	s.port = port
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("cast server error", slog.Any("error", err))
		}
	}()

	s.logger.Info("cast server started",
		slog.String("addr", addr),
		slog.Int("port", port))
	s.bus.Publish(domain.NewCastStartedEvent(addr, port))

	return port, nil
}

// Stop shuts the server down. Idempotent.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.server
	s.running = false
	s.server = nil
	s.port = netutil.PortNotFound
	s.mu.Unlock()

	err := server.Shutdown(ctx)
	s.wg.Wait()

	s.logger.Info("cast server stopped")
	s.bus.Publish(domain.NewCastStoppedEvent("stopped"))

	return err
}

// handleStream serves the current source file to a receiver.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == "" {
		http.Error(w, "no track loaded", http.StatusNotFound)
		return
	}

	s.logger.Info("receiver connected",
		slog.String("client", clientIP(r)),
		slog.String("source", source))

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("icy-name", "TuneCast Stream")

	http.ServeFile(w, r, source)
}

// handleStatus reports the server state and now-playing metadata as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	status := struct {
		Port      int    `json:"port"`
		HasSource bool   `json:"has_source"`
		Title     string `json:"title,omitempty"`
		Artist    string `json:"artist,omitempty"`
	}{
		Port:      s.port,
		HasSource: s.source != "",
		Title:     s.title,
		Artist:    s.artist,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("failed to write status", slog.Any("error", err))
	}
}

// clientIP extracts the client address from a request, preferring
// proxy headers when present.
func clientIP(r *http.Request) string {
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		ips := strings.Split(forwardedFor, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
