package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bankroll/internal/auth"
	"bankroll/internal/core"
	applog "bankroll/internal/log"
	"bankroll/internal/metrics"
	"bankroll/internal/middleware/ratelimit"
	"bankroll/internal/middleware/security"
	"bankroll/internal/middleware/trace"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Ledger is what the API needs from the record service.
type Ledger interface {
	Location() *time.Location
	Records(ctx context.Context, userID string) ([]core.BetRecord, error)
	RecordsInWindow(ctx context.Context, userID string, w core.Window) ([]core.BetRecord, error)
	Create(ctx context.Context, in core.RecordInput) (core.BetRecord, error)
	Delete(ctx context.Context, userID string, id int64) error
	ClearMonth(ctx context.Context, userID string, w core.Window) (int64, error)
	SetInitialBank(ctx context.Context, userID string, amount decimal.Decimal) error
	Dashboard(ctx context.Context, userID string, nav core.Navigator) (core.Dashboard, error)
}

// Authenticator is what the API needs from the session provider.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, confirm string) (auth.SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (auth.Session, error)
	Confirm(ctx context.Context, token string) (auth.Session, error)
	Subscribe() <-chan auth.Event
	Unsubscribe(ch <-chan auth.Event)
}

// Options configures NewServer. Ledger and Auth are required.
type Options struct {
	Ledger             Ledger
	Auth               Authenticator
	Metrics            *metrics.Metrics
	Health             metrics.HealthFunc
	Logger             *applog.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	ledger    Ledger
	auth      Authenticator
	metrics   *metrics.Metrics
	health    metrics.HealthFunc
	events    *applog.StructuredLogger
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIP
	validate  *validator.Validate
	upgrader  websocket.Upgrader
	startedAt time.Time
	now       func() time.Time

	shutdownOnce sync.Once
}

// writeMethods are the requests counted by the rate limiter.
var writeMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		ledger:    opts.Ledger,
		auth:      opts.Auth,
		metrics:   opts.Metrics,
		health:    opts.Health,
		events:    applog.NewStructuredLogger(logger),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		clientIP:  security.NewClientIP(),
		validate:  validator.New(),
		startedAt: time.Now(),
		now:       time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /api/auth/confirm", s.handleConfirm)
	mux.HandleFunc("POST /api/auth/signout", s.requireSession(s.handleSignOut))
	mux.HandleFunc("GET /api/auth/session", s.requireSession(s.handleSession))
	mux.HandleFunc("GET /api/auth/events", s.requireSession(s.handleAuthEvents))

	mux.HandleFunc("GET /api/bets", s.requireSession(s.handleListRecords))
	mux.HandleFunc("POST /api/bets", s.requireSession(s.handleCreateRecord))
	mux.HandleFunc("DELETE /api/bets", s.requireSession(s.handleClearMonth))
	mux.HandleFunc("DELETE /api/bets/{id}", s.requireSession(s.handleDeleteRecord))
	mux.HandleFunc("PUT /api/bank", s.requireSession(s.handleSetInitialBank))

	mux.HandleFunc("GET /api/dashboard", s.requireSession(s.handleDashboard))
	mux.HandleFunc("GET /api/calendar", s.requireSession(s.handleCalendar))

	handler := trace.CaptureRoute(mux)
	handler = s.limiter.Middleware(s.clientIP.Extract, writeMethods, s.onRateLimited)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = applog.Middleware(logger.WithComponent(applog.ComponentHTTP), func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = trace.NewMiddleware(s.clientIP.Extract, s.metrics).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.clientIP.Extract(r),
		"path", r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
