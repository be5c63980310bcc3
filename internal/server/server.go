package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gorber/veckopeng/internal/handler"
	"github.com/gorber/veckopeng/internal/middleware"
	"github.com/gorber/veckopeng/internal/realtime"
	"github.com/gorber/veckopeng/internal/store"
)

type Server struct {
	db          *sql.DB
	hub         *realtime.Hub
	memberH     *handler.MemberHandler
	taskH       *handler.TaskHandler
	snapshotH   *handler.SnapshotHandler
	memberStore *store.MemberStore
	rateLimiter *middleware.RateLimiter
	familyKey   string
	logger      *slog.Logger
}

func New(db *sql.DB, familyKey string, logger *slog.Logger) *Server {
	hub := realtime.NewHub(logger.With("component", "realtime"))

	memberStore := store.NewMemberStore(db)
	taskStore := store.NewTaskStore(db)
	ledgerStore := store.NewLedgerStore(db)

	return &Server{
		db:          db,
		hub:         hub,
		memberH:     handler.NewMemberHandler(memberStore, hub, logger.With("component", "member")),
		taskH:       handler.NewTaskHandler(taskStore, ledgerStore, hub, logger.With("component", "task")),
		snapshotH:   handler.NewSnapshotHandler(ledgerStore, hub, logger.With("component", "snapshot")),
		memberStore: memberStore,
		rateLimiter: middleware.NewRateLimiter(),
		familyKey:   familyKey,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no family key required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", promhttp.Handler())

	// Everything else sits behind the family key
	apiMux := http.NewServeMux()
	s.registerAPIRoutes(apiMux)

	authMiddleware := middleware.RequireFamilyKey(s.familyKey, s.memberStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(apiMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(middleware.Metrics()(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Snapshot sync
	mux.HandleFunc("GET /api/state", s.snapshotH.Pull)
	mux.HandleFunc("POST /api/state", s.snapshotH.ProposePartial)

	// Member API routes
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("PATCH /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)
	mux.HandleFunc("POST /api/members/{id}/mark-paid", s.memberH.MarkPaid)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.rateLimitedHandler(s.memberH.VerifyPIN))
	mux.HandleFunc("GET /api/members/{id}/payment-link", s.memberH.PaymentLink)

	// Task API routes
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)
	mux.HandleFunc("POST /api/tasks/{id}/approve", s.taskH.Approve)

	// WebSocket change feed
	mux.HandleFunc("GET /ws", realtime.Handler(s.hub, s.logger.With("component", "websocket")))
}
