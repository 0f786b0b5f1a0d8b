// Package server exposes the dashboard HTTP API: health, status, metrics,
// Kick OAuth login, and per-tenant settings CRUD used by the frontend. It
// includes permissive CORS for development and injects correlation IDs into
// request contexts for consistent logging.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/kickbot/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// The provided context is used for rate limiter cleanup goroutines lifecycle.
func NewMux(ctx context.Context, deps Deps) http.Handler {
	rateLimiterCfg := loadRateLimiterConfig()
	corsCfg := loadCORSConfig()
	sessions := newSessionAuth(deps.Cfg.SessionSecret, deps.Cfg.SessionTTL)

	var rateLimiter RateLimiter
	if rateLimiterCfg.backend == "postgres" {
		slog.Info("initializing distributed rate limiter", slog.String("backend", "postgres"))
		pgLimiter, err := newPostgresRateLimiter(ctx, deps.DB, rateLimiterCfg)
		if err != nil {
			slog.Error("failed to create postgres rate limiter, falling back to memory", slog.Any("error", err))
			rateLimiter = newIPRateLimiter(ctx, rateLimiterCfg)
		} else {
			rateLimiter = pgLimiter
		}
	} else {
		slog.Info("initializing in-memory rate limiter", slog.String("backend", "memory"))
		rateLimiter = newIPRateLimiter(ctx, rateLimiterCfg)
	}

	handlers := NewHandlers(ctx, deps, sessions)

	mux := http.NewServeMux()

	// Metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// OAuth login endpoints
	mux.HandleFunc("/auth/kick/start", handlers.HandleOAuthStart)
	mux.HandleFunc("/auth/kick/callback", handlers.HandleOAuthCallback)

	// Health and status endpoints
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)
	mux.HandleFunc("/status", handlers.HandleStatus)

	// Dashboard API (session protected below)
	mux.HandleFunc("/api/account", handlers.HandleAccount)
	mux.HandleFunc("/api/moderation/settings", handlers.HandleModerationSettings)
	mux.HandleFunc("/api/moderation/banned-words", handlers.HandleBannedWords)
	mux.HandleFunc("/api/moderation/banned-words/", handlers.HandleBannedWordByID)
	mux.HandleFunc("/api/moderation/whitelist", handlers.HandleLinkWhitelist)
	mux.HandleFunc("/api/moderation/permits", handlers.HandlePermits)
	mux.HandleFunc("/api/moderation/logs", handlers.HandleModerationLogs)
	mux.HandleFunc("/api/commands", handlers.HandleCommands)
	mux.HandleFunc("/api/points/top", handlers.HandlePointsTop)
	mux.HandleFunc("/api/points/adjust", handlers.HandlePointsAdjust)
	mux.HandleFunc("/api/giveaways", handlers.HandleGiveawayHistory)

	// Selective middleware: session auth on the dashboard API, rate
	// limiting on the login endpoints (where the unauthenticated traffic is).
	selectiveHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			requireSession(rateLimitMiddleware(mux, rateLimiter), sessions).ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/auth/") {
			rateLimitMiddleware(mux, rateLimiter).ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	// Wrap with correlation ID injector and tracing middleware
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Reuse corr header if provided else generate
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path,
			telemetry.HTTPMethodAttr(r.Method),
			telemetry.HTTPRouteAttr(r.URL.Path),
			telemetry.HTTPURLAttr(r.URL.String()),
		)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.String("component", "http"))

		// Capture status code via custom ResponseWriter
		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		selectiveHandler.ServeHTTP(wrappedWriter, r.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
	})
	return withCORSConfig(handler, corsCfg)
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, deps Deps, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
