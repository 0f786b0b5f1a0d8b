// Command kickbot is the main entrypoint for the chat bot and dashboard API.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts background jobs: the chat gateway with the moderation router,
//     the live-status poller (auto-join + Discord alerts), points accrual,
//     permit expiry sweeps, and the OAuth token refresher for Kick.
//   - Exposes the dashboard HTTP API with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/onnwee/kickbot/ai"
	"github.com/onnwee/kickbot/alerts"
	"github.com/onnwee/kickbot/chat"
	"github.com/onnwee/kickbot/commands"
	"github.com/onnwee/kickbot/config"
	"github.com/onnwee/kickbot/db"
	"github.com/onnwee/kickbot/discord"
	"github.com/onnwee/kickbot/giveaway"
	"github.com/onnwee/kickbot/kickapi"
	"github.com/onnwee/kickbot/moderation"
	"github.com/onnwee/kickbot/oauth"
	"github.com/onnwee/kickbot/points"
	"github.com/onnwee/kickbot/queue"
	"github.com/onnwee/kickbot/server"
	"github.com/onnwee/kickbot/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("kick credentials incomplete; OAuth login and token refresh disabled", slog.Any("err", err))
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("kickbot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Run database migrations using dual-system approach:
	// 1. Primary: versioned migrations (golang-migrate) from db/migrations/
	// 2. Fallback: embedded SQL (db.Migrate) for backward compatibility
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to legacy embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		migrationCtx := context.Background()
		if err := db.Migrate(migrationCtx, database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("legacy embedded SQL migration completed successfully (consider migrating to versioned migrations)",
			slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed successfully",
			slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Kick identity + API client. All outbound calls run under the shared bot
	// account token; the bot must be a moderator in every channel it manages.
	kickOAuth := &kickapi.OAuth{
		ClientID:     cfg.KickClientID,
		ClientSecret: cfg.KickClientSecret,
		RedirectURI:  cfg.KickRedirectURI,
	}
	if cfg.KickBotAccount == "" {
		slog.Warn("KICK_BOT_ACCOUNT not set; chat sends and moderation actions will fail until a bot token is configured")
	}
	botTokens := &kickapi.Source{DB: database, AccountID: cfg.KickBotAccount, OAuth: kickOAuth}
	api := kickapi.NewClient(cfg.KickAPIBase, botTokens)

	// Shared in-memory state.
	permits := moderation.NewStore()
	permits.StartPurgeSweep(ctx, cfg.PermitSweepInterval)
	tracker := points.NewTracker()
	go tracker.StartAccrual(ctx, database, cfg.PointsTickInterval)

	// Chat pipeline: gateway -> router -> filters/commands/greetings.
	router := chat.NewRouter(database, 30*time.Second)
	router.Permits = permits
	router.Executor = &kickapi.Executor{Client: api}
	router.Audit = &db.AuditLogger{DB: database}
	router.Greet = &alerts.Greeter{DB: database}
	router.Activity = tracker
	router.Sender = chat.NewSender(api)

	var asker commands.Asker
	if cfg.AIAPIKey != "" {
		asker = ai.NewClient(cfg.AIAPIBase, cfg.AIAPIKey, cfg.AIModel)
	}
	router.Commands = &commands.Dispatcher{
		DB:        database,
		Cooldowns: commands.NewCooldownStore(cfg.RedisAddr),
		Permits:   permits,
		Queues:    queue.NewManager(),
		Giveaways: giveaway.NewManager(),
		AI:        asker,
	}

	gw := chat.NewGateway(cfg.KickChatWSURL, router.Handle)
	go gw.Run(ctx)

	// Live-status poller: joins chatrooms for enabled accounts, resolves
	// missing platform ids, and fires Discord stream-up alerts.
	notifier := &alerts.LiveAlerter{Notifier: discord.NewNotifier()}
	go chat.StartAutoJoin(ctx, database, gw, api, notifier, cfg.LivePollInterval)

	// Centralized OAuth token refresher for Kick tokens
	oauth.StartRefresher(ctx, database, "kick:", 5*time.Minute, 15*time.Minute, func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		res, err := kickOAuth.Refresh(rctx, refreshToken)
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return res.AccessToken, res.RefreshToken, kickapi.ComputeExpiry(res.ExpiresIn), res.Scope, nil
	})

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// Dashboard HTTP server (auth, settings CRUD, health/status/metrics)
	if err := cfg.ValidateDashboardReady(); err != nil {
		slog.Warn("dashboard sessions unavailable", slog.Any("err", err))
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		deps := server.Deps{
			DB:               database,
			Cfg:              cfg,
			OAuth:            kickOAuth,
			Kick:             api,
			Permits:          permits,
			InvalidateTenant: router.InvalidateTenant,
		}
		if err := server.Start(ctx, deps, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
