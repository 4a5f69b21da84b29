package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-marketplace/internal/config"
	"github.com/example/ride-marketplace/internal/directory"
	"github.com/example/ride-marketplace/internal/events"
	"github.com/example/ride-marketplace/internal/identity"
	"github.com/example/ride-marketplace/internal/lifecycle"
	"github.com/example/ride-marketplace/internal/models"
	"github.com/example/ride-marketplace/internal/notify"
	"github.com/example/ride-marketplace/internal/payments"
	"github.com/example/ride-marketplace/internal/storage"
)

type Server struct {
	Identity  *identity.Service
	Rides     *lifecycle.Controller
	Payments  *payments.Service
	Directory directory.Lookup
	WSReg     *notify.Registry

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the API from config with in-process fallbacks:
// Postgres when PG_DSN is set else memory, Redis sessions when REDIS_ADDR
// is set else memory, Kafka events only when brokers are configured.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) (*Server, error) {
	var (
		requests storage.RequestStore
		apps     storage.ApplicationStore
		users    storage.UserStore
		pays     storage.PaymentStore
	)
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		requests, apps, users, pays = pg, pg.Applications(), pg.Users(), pg.Payments()
	} else {
		mem := storage.NewMemoryStore()
		requests, apps, users, pays = mem, mem.Applications(), mem.Users(), mem.Payments()
	}

	var sessions identity.SessionStore
	if cfg.RedisAddr != "" {
		sessions = identity.NewRedisSessions(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		sessions = identity.NewMemorySessions()
	}

	idsvc := &identity.Service{
		Users:    users,
		Sessions: sessions,
		Tokens:   identity.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL),
	}

	var lookup directory.Lookup
	if cfg.UserServiceURL != "" {
		lookup = directory.NewHTTPClient(cfg.UserServiceURL, "")
	} else {
		lookup = &directory.Local{Identity: idsvc}
	}

	paysvc := &payments.Service{Store: pays, Currency: cfg.StripeCurrency, Logger: logger}
	if cfg.StripeAPIKey != "" {
		paysvc.Cards = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	wsreg := notify.NewRegistry(logger)

	ctrl := &lifecycle.Controller{Requests: requests, Apps: apps, Notify: wsreg}
	if len(cfg.KafkaBrokers) > 0 {
		ctrl.Events = events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	s := &Server{
		Identity:  idsvc,
		Rides:     ctrl,
		Payments:  paysvc,
		Directory: lookup,
		WSReg:     wsreg,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	// identity
	s.mux.HandleFunc("/api/auth/register", s.handleRegister).Methods("POST")
	s.mux.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST")
	s.mux.HandleFunc("/api/auth/logout", s.authenticate(s.handleLogout)).Methods("POST")
	s.mux.HandleFunc("/api/users/verify", s.authenticate(s.handleVerify)).Methods("GET")
	s.mux.HandleFunc("/api/users/admin/all", s.requireRole(models.RoleAdmin)(s.handleListUsers)).Methods("GET")
	s.mux.HandleFunc("/api/users/admin/{user_id}/deactivate", s.requireRole(models.RoleAdmin)(s.handleDeactivateUser)).Methods("PATCH")
	s.mux.HandleFunc("/api/users/{user_id}", s.authenticate(s.handleGetUser)).Methods("GET")

	// ride lifecycle
	s.mux.HandleFunc("/api/rides", s.requireRole(models.RolePassenger)(s.handleCreateRide)).Methods("POST")
	s.mux.HandleFunc("/api/rides", s.requireRole(models.RoleDriver)(s.handleBrowseRides)).Methods("GET")
	s.mux.HandleFunc("/api/rides/mine", s.requireRole(models.RolePassenger)(s.handleMyRides)).Methods("GET")
	s.mux.HandleFunc("/api/rides/admin/all", s.requireRole(models.RoleAdmin)(s.handleAdminRides)).Methods("GET")
	s.mux.HandleFunc("/api/rides/{ride_id}/apply", s.requireRole(models.RoleDriver)(s.handleApply)).Methods("POST")
	s.mux.HandleFunc("/api/rides/{ride_id}/applications", s.requireRole(models.RolePassenger)(s.handleListApplications)).Methods("GET")
	s.mux.HandleFunc("/api/rides/{ride_id}/select", s.requireRole(models.RolePassenger)(s.handleSelectDriver)).Methods("POST")
	s.mux.HandleFunc("/api/rides/{ride_id}/cancel", s.authenticate(s.handleCancel)).Methods("POST")
	s.mux.HandleFunc("/api/rides/{ride_id}/complete", s.requireRole(models.RoleDriver)(s.handleComplete)).Methods("POST")

	// payments
	s.mux.HandleFunc("/api/payments/{payment_id}/receipt", s.authenticate(s.handleReceipt)).Methods("POST")
	s.mux.HandleFunc("/api/payments/{ride_id}", s.authenticate(s.handleRecordPayment)).Methods("POST")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// --- ride handlers ---

type createRideRequest struct {
	Pickup      string    `json:"pickupLocation"`
	Dropoff     string    `json:"dropoffLocation"`
	TargetTime  time.Time `json:"targetTime"`
	DesiredFare float64   `json:"desiredFare"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	v := verdictFromContext(r.Context())
	ride, err := s.Rides.CreateRequest(r.Context(), v.UserID, req.Pickup, req.Dropoff, req.TargetTime, req.DesiredFare)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ride)
}

type browseRideItem struct {
	models.RideRequest
	PassengerName string `json:"passengerName"`
}

func (s *Server) handleBrowseRides(w http.ResponseWriter, r *http.Request) {
	status := models.StatusPosted
	if q := r.URL.Query().Get("status"); q != "" {
		st, ok := models.ParseStatus(q)
		if !ok {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status"})
			return
		}
		status = st
	}
	rides, err := s.Rides.ListByStatus(r.Context(), status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]browseRideItem, 0, len(rides))
	for _, ride := range rides {
		out = append(out, browseRideItem{
			RideRequest:   ride,
			PassengerName: directory.DisplayName(r.Context(), s.Directory, ride.PassengerID),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMyRides(w http.ResponseWriter, r *http.Request) {
	v := verdictFromContext(r.Context())
	rides, err := s.Rides.ListByPassenger(r.Context(), v.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rides == nil {
		rides = []models.RideRequest{}
	}
	s.writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	v := verdictFromContext(r.Context())
	app, err := s.Rides.Apply(r.Context(), mux.Vars(r)["ride_id"], v.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, app)
}

type applicationItem struct {
	ApplicationID string    `json:"applicationId"`
	DriverID      string    `json:"driverId"`
	DriverName    string    `json:"driverName"`
	DriverPhone   string    `json:"driverPhone"`
	AppliedAt     time.Time `json:"appliedAt"`
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	v := verdictFromContext(r.Context())
	apps, err := s.Rides.ListApplications(r.Context(), mux.Vars(r)["ride_id"], v.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]applicationItem, 0, len(apps))
	for _, app := range apps {
		item := applicationItem{
			ApplicationID: app.ID,
			DriverID:      app.DriverID,
			DriverName:    directory.PlaceholderName,
			DriverPhone:   directory.PlaceholderName,
			AppliedAt:     app.AppliedAt,
		}
		if p, err := s.Directory.Profile(r.Context(), app.DriverID); err == nil {
			if p.Name != "" {
				item.DriverName = p.Name
			}
			if p.Phone != "" {
				item.DriverPhone = p.Phone
			}
		}
		out = append(out, item)
	}
	s.writeJSON(w, http.StatusOK, out)
}

type selectDriverRequest struct {
	DriverID string `json:"driverId"`
}

func (s *Server) handleSelectDriver(w http.ResponseWriter, r *http.Request) {
	var req selectDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "driverId required"})
		return
	}
	v := verdictFromContext(r.Context())
	ride, err := s.Rides.SelectDriver(r.Context(), mux.Vars(r)["ride_id"], req.DriverID, v.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Payments.HoldFare(r.Context(), ride)
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	v := verdictFromContext(r.Context())
	ride, err := s.Rides.Cancel(r.Context(), mux.Vars(r)["ride_id"], v.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Payments.ReleaseFare(r.Context(), ride.ID)
	s.writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	v := verdictFromContext(r.Context())
	ride, err := s.Rides.Complete(r.Context(), mux.Vars(r)["ride_id"], v.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Payments.CaptureFare(r.Context(), ride.ID)
	s.writeJSON(w, http.StatusOK, ride)
}

type adminRideItem struct {
	models.RideRequest
	PassengerName string `json:"passengerName"`
	DriverName    string `json:"driverName,omitempty"`
}

func (s *Server) handleAdminRides(w http.ResponseWriter, r *http.Request) {
	var filter *models.Status
	if q := r.URL.Query().Get("status"); q != "" {
		st, ok := models.ParseStatus(q)
		if !ok {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown status"})
			return
		}
		filter = &st
	}
	rides, err := s.Rides.ListAll(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]adminRideItem, 0, len(rides))
	for _, ride := range rides {
		item := adminRideItem{
			RideRequest:   ride,
			PassengerName: directory.DisplayName(r.Context(), s.Directory, ride.PassengerID),
		}
		if ride.DriverID != "" {
			item.DriverName = directory.DisplayName(r.Context(), s.Directory, ride.DriverID)
		}
		out = append(out, item)
	}
	s.writeJSON(w, http.StatusOK, out)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}
	s.WSReg.Add(id, conn)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
