package notify

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/observability"
)

// Session is one driver's live websocket connection. Writes are serialized
// per connection.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Session) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Registry holds driver sessions keyed by driver id. A driver who is not
// connected simply misses the push; the ride state is authoritative either
// way.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{sessions: make(map[string]*Session), logger: logger}
}

func (r *Registry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	if _, ok := r.sessions[driverID]; !ok {
		observability.DriversConnected.Inc()
	}
	r.sessions[driverID] = &Session{conn: conn}
	r.mu.Unlock()
}

func (r *Registry) Remove(driverID string) {
	r.mu.Lock()
	if s, ok := r.sessions[driverID]; ok {
		delete(r.sessions, driverID)
		observability.DriversConnected.Dec()
		_ = s.conn.Close()
	}
	r.mu.Unlock()
}

type confirmation struct {
	Event       string `json:"event"`
	RideRequest any    `json:"rideRequest"`
}

// RideConfirmed pushes the confirmed request to the selected driver.
func (r *Registry) RideConfirmed(driverID string, req *models.RideRequest) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.send(confirmation{Event: "ride_confirmed", RideRequest: req}); err != nil {
		if r.logger != nil {
			r.logger.Warn("ws send failed", "driver_id", driverID, "error", err)
		}
		return err
	}
	return nil
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
