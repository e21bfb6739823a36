// Package server handles HTTP endpoints and request routing.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reddit-live/pkg/notifier"
	"reddit-live/poll"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

var (
	liveThreadRegex = regexp.MustCompile(`^https?://(?:(?:www|old|new)\.)?reddit\.com/live/([a-z0-9]+)(?:[/?#].*)?$`)
	threadIDRegex   = regexp.MustCompile(`^[a-z0-9]{5,20}$`)
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Templates.
	templates = template.Must(template.ParseFS(templateFS, "tmpl/*.tmpl"))
)

const emailCookieName = "reddit_live_email"

// Source fetches live threads to verify subscriptions.
type Source interface {
	Fetch(ctx context.Context, threadID, lastSeenName string) (*poll.Snapshot, error)
}

// Store interface for subscription management.
type Store interface {
	TokenFromEmail(email string) string
	LoadByEmail(ctx context.Context, email string) (*notifier.Subscription, error)
	LoadByToken(ctx context.Context, token string) (*notifier.Subscription, error)
	Save(ctx context.Context, sub *notifier.Subscription) error
	Delete(ctx context.Context, email string) error
}

// Emailer interface for sending welcome emails.
type Emailer interface {
	SendWelcome(ctx context.Context, sub *notifier.Subscription, watch *notifier.Watch, ip, userAgent string) error
}

// Poller interface for triggering checks.
type Poller interface {
	CheckAll(ctx context.Context) error
}

// ErrorCheck classifies an error.
type ErrorCheck func(error) bool

// Server handles HTTP requests.
type Server struct {
	source          Source
	store           Store
	emailer         Emailer
	poller          Poller
	logger          *slog.Logger
	isForbidden     ErrorCheck
	isThreadMissing ErrorCheck
	isNotFound      ErrorCheck

	subscribeLimiter *ipLimiter
	manageLimiter    *ipLimiter

	gatherer      prometheus.Gatherer
	subscriptions *prometheus.CounterVec
}

// Config holds server configuration.
type Config struct {
	Source  Source
	Store   Store
	Emailer Emailer
	Poller  Poller
	Logger  *slog.Logger
	// IsForbidden reports a thread the service may not read.
	IsForbidden ErrorCheck
	// IsThreadMissing reports a thread that does not exist.
	IsThreadMissing ErrorCheck
	// IsNotFound reports a missing subscription.
	IsNotFound ErrorCheck
	// Registry receives server metrics and is exposed on /metrics. Optional.
	Registry *prometheus.Registry
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	s := &Server{
		source:           cfg.Source,
		store:            cfg.Store,
		emailer:          cfg.Emailer,
		poller:           cfg.Poller,
		isForbidden:      cfg.IsForbidden,
		isThreadMissing:  cfg.IsThreadMissing,
		isNotFound:       cfg.IsNotFound,
		logger:           cfg.Logger,
		subscribeLimiter: newIPLimiter(subscribeRate, subscribeBurst),
		manageLimiter:    newIPLimiter(manageRate, manageBurst),
	}
	never := func(error) bool { return false }
	if s.isForbidden == nil {
		s.isForbidden = never
	}
	if s.isThreadMissing == nil {
		s.isThreadMissing = never
	}
	if s.isNotFound == nil {
		s.isNotFound = never
	}

	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
		s.gatherer = cfg.Registry
	}
	s.subscriptions = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "live_notifier_subscribe_requests_total",
		Help: "Subscribe requests by outcome.",
	}, []string{"result"})
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.HandleFunc("/subscribe", s.handleSubscribe)
	mux.HandleFunc("/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("/manage", s.handleManage)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Run serves HTTP on port until ctx is canceled.
func (s *Server) Run(ctx context.Context, port string) error {
	// Timeouts bound slow clients.
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")

	data := map[string]string{
		"SavedEmail": emailCookie(r),
	}

	if err := templates.ExecuteTemplate(w, "index.tmpl", data); err != nil {
		s.logger.Error("Failed to render template", "template", "index.tmpl", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	if err := s.poller.CheckAll(r.Context()); err != nil {
		s.logger.Error("Poll check failed", "error", err)
		http.Error(w, "Check failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to render template", "template", name, "error", err)
	}
}

func isValidEmail(email string) bool {
	if len(email) < 3 || len(email) > 254 {
		return false
	}

	_, err := mail.ParseAddress(email)
	return err == nil && emailRegex.MatchString(email)
}

// parseThreadID accepts a live thread URL or a bare thread id.
func parseThreadID(input string) (string, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if m := liveThreadRegex.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	if threadIDRegex.MatchString(input) {
		return input, true
	}
	return "", false
}

func setEmailCookie(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     emailCookieName,
		Value:    email,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func emailCookie(r *http.Request) string {
	cookie, err := r.Cookie(emailCookieName)
	if err != nil {
		return ""
	}
	// Cookies are client controlled.
	if !isValidEmail(cookie.Value) {
		return ""
	}
	return cookie.Value
}
