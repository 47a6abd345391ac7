package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/goods-transport/internal/cache"
	"github.com/example/goods-transport/internal/clients"
	"github.com/example/goods-transport/internal/config"
	"github.com/example/goods-transport/internal/geocode"
	"github.com/example/goods-transport/internal/lifecycle"
	"github.com/example/goods-transport/internal/logging"
	"github.com/example/goods-transport/internal/models"
	"github.com/example/goods-transport/internal/notify"
	"github.com/example/goods-transport/internal/payments"
	"github.com/example/goods-transport/internal/store"
	"github.com/example/goods-transport/internal/token"
)

type Server struct {
	Lifecycle *lifecycle.Service
	WSReg     *notify.WSRegistry
	logger    *slog.Logger
	mux       *mux.Router
}

// NewServerFromEnv wires the full service graph from environment config,
// falling back to in-memory store/cache when no DSN or redis address is set.
func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var c cache.Cache
	if cfg.RedisAddr != "" {
		c = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		c = cache.NewMemoryCache()
	}

	var st store.RequestStore
	if cfg.PGDSN != "" {
		ps, err := store.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		st = ps
	} else {
		st = store.NewMemoryStore()
	}

	var users clients.UserDirectory
	if cfg.UserServiceURL != "" {
		users = clients.NewHTTPUserClient(cfg.UserServiceURL)
	}
	var rides clients.RideInventory
	if cfg.RideServiceURL != "" {
		rides = clients.NewHTTPRideClient(cfg.RideServiceURL)
	}

	wsreg := notify.NewWSRegistry(logging.WithComponent(logger, "ws"))
	notifier := &notify.Notifier{
		Registry:  wsreg,
		Directory: users,
		Cache:     c,
		UserTTL:   cfg.UserTTL,
		Logger:    logging.WithComponent(logger, "notify"),
	}
	if len(cfg.KafkaBrokers) > 0 {
		notifier.Events = notify.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	} else if cfg.MailEndpoint != "" {
		notifier.Mail = notify.NewHTTPMailClient(cfg.MailEndpoint, cfg.MailKey)
	}

	settlement := &payments.Settlement{
		Gateway:        payments.NewStripeGateway(),
		Notifier:       notifier,
		CommissionRate: cfg.CommissionRate,
		Attempts:       cfg.SettlementAttempts,
		Delay:          cfg.SettlementDelay,
		Logger:         logging.WithComponent(logger, "settlement"),
	}

	secret := cfg.TokenSecret
	if secret == "" {
		secret = newID() // local runs only; links break across restarts
	}

	svc := &lifecycle.Service{
		Store:           st,
		Cache:           c,
		Fanout:          notifier,
		Settlement:      settlement,
		Tokens:          token.NewManager(secret, cfg.TokenTTL),
		Geocoder:        geocode.NewNominatimClient(cfg.GeocodeBaseURL),
		Rides:           rides,
		Users:           users,
		BaseURL:         "http://localhost" + cfg.HTTPAddr,
		BanTTL:          cfg.BanTTL,
		LocationTTL:     cfg.LocationTTL,
		CommissionRate:  cfg.CommissionRate,
		StaleCutoff:     cfg.StaleCutoff,
		StaleOuterBound: cfg.StaleOuterBound,
		Logger:          logging.WithComponent(logger, "lifecycle"),
	}

	return NewServer(svc, wsreg, logger), nil
}

// NewServer assembles the router around an already-wired service graph.
func NewServer(svc *lifecycle.Service, wsreg *notify.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{Lifecycle: svc, WSReg: wsreg, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/requests", s.handleCreate).Methods("POST")
	api.HandleFunc("/requests", s.handleList).Methods("GET")
	api.HandleFunc("/requests/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/requests/{id}", s.handleGet).Methods("GET")
	api.HandleFunc("/requests/{id}", s.handleUpdate).Methods("PUT")
	api.HandleFunc("/requests/{id}", s.handleCancel).Methods("DELETE")
	api.HandleFunc("/requests/{id}/accept", s.handleAccept).Methods("POST", "GET")
	api.HandleFunc("/requests/{id}/reject", s.handleReject).Methods("POST", "GET")
	api.HandleFunc("/requests/{id}/pickup", s.handlePickup).Methods("POST")
	api.HandleFunc("/requests/{id}/deliver", s.handleDeliver).Methods("POST")
	api.HandleFunc("/requests/{id}/tracking", s.handleUpdateTracking).Methods("PUT")
	api.HandleFunc("/requests/{id}/tracking", s.handleGetTracking).Methods("GET")
	api.HandleFunc("/requests/{id}/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/requests/{id}/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/carriers/location", s.handleCarrierLocation).Methods("PUT")
	api.HandleFunc("/admin/users/{id}/ban", s.handleBan).Methods("POST")
	api.HandleFunc("/admin/reports/transactions", s.handleTransactionReport).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{user_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var spec models.RequestSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := s.Lifecycle.Create(r.Context(), spec, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	req, err := s.Lifecycle.Get(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var patch models.RequestPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := s.Lifecycle.Update(r.Context(), mux.Vars(r)["id"], patch, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if err := s.Lifecycle.Cancel(r.Context(), mux.Vars(r)["id"], actor); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req *models.Request
	var err error
	if tok := r.URL.Query().Get("token"); tok != "" {
		req, err = s.Lifecycle.AcceptWithToken(r.Context(), id, tok)
	} else {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		req, err = s.Lifecycle.Accept(r.Context(), id, actor)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	reason := r.URL.Query().Get("reason")
	if r.Method == http.MethodPost && r.Body != nil {
		var body struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Reason != "" {
			reason = body.Reason
		}
	}
	var req *models.Request
	var err error
	if tok := r.URL.Query().Get("token"); tok != "" {
		req, err = s.Lifecycle.RejectWithToken(r.Context(), id, tok, reason)
	} else {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		req, err = s.Lifecycle.Reject(r.Context(), id, actor, reason)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	req, err := s.Lifecycle.MarkPickedUp(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	req, err := s.Lifecycle.MarkDelivered(r.Context(), mux.Vars(r)["id"], actor, body.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleUpdateTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Lifecycle.UpdateTracking(r.Context(), mux.Vars(r)["id"], loc, actor); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	loc, found, err := s.Lifecycle.GetTracking(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "no tracking data", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	snap, err := s.Lifecycle.Status(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	rows, err := s.Lifecycle.DetailedHistory(r.Context(), mux.Vars(r)["id"], actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	status := models.Status(r.URL.Query().Get("status"))
	var reqs []*models.Request
	var err error
	if r.URL.Query().Get("role") == "carrier" {
		reqs, err = s.Lifecycle.ListByCarrier(r.Context(), actor, status)
	} else {
		reqs, err = s.Lifecycle.ListBySender(r.Context(), actor, status)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	sum, err := s.Lifecycle.Summary(r.Context(), actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleCarrierLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Lifecycle.UpdateCarrierLocation(r.Context(), actor, loc); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Lifecycle.BanUser(r.Context(), mux.Vars(r)["id"], body.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTransactionReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.Lifecycle.TransactionReport(r.Context(),
		r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["user_id"]
	carrier := r.URL.Query().Get("carrier") == "true"
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(id, carrier, conn)
}

// writeError maps the lifecycle taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, lifecycle.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, lifecycle.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		s.logger.Error("internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// actorID reads the authenticated user id the gateway injects. The real
// session layer lives outside this service.
func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		http.Error(w, "missing user id", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
