// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    once sync.Once

    // Counters
    MessagesProcessed prometheus.Counter
    ModerationActions *prometheus.CounterVec // labeled by filter and action
    CommandsExecuted  *prometheus.CounterVec // labeled by command name
    GatewayReconnects prometheus.Counter
    MessagesSent      prometheus.Counter
    MessagesDropped   prometheus.Counter
    PointsTicks       prometheus.Counter
    AIRequestsFailed  prometheus.Counter

    // Histograms (seconds)
    EvaluateDuration  prometheus.Observer
    KickAPIDuration   prometheus.Observer
    AIRequestDuration prometheus.Observer

    // Gauges
    ConnectedChannels prometheus.Gauge
    ActivePermits     prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
    once.Do(func() {
        MessagesProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "kickbot_messages_processed_total", Help: "Number of chat messages received and routed"})
        ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "kickbot_moderation_actions_total", Help: "Number of moderation actions taken"}, []string{"filter", "action"})
        CommandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "kickbot_commands_executed_total", Help: "Number of chat commands executed"}, []string{"command"})
        GatewayReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "kickbot_gateway_reconnects_total", Help: "Number of chat gateway reconnects"})
        MessagesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "kickbot_messages_sent_total", Help: "Number of chat messages sent by the bot"})
        MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "kickbot_messages_dropped_total", Help: "Number of outbound messages dropped by the rate limiter"})
        PointsTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "kickbot_points_ticks_total", Help: "Number of points accrual ticks completed"})
        AIRequestsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "kickbot_ai_requests_failed_total", Help: "Number of failed AI completion requests"})
        EvaluateDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "kickbot_moderation_evaluate_duration_seconds", Help: "Moderation pipeline evaluation duration seconds", Buckets: prometheus.DefBuckets})
        KickAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "kickbot_kick_api_duration_seconds", Help: "Kick API request duration seconds", Buckets: prometheus.DefBuckets})
        AIRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "kickbot_ai_request_duration_seconds", Help: "AI completion request duration seconds", Buckets: prometheus.DefBuckets})
        ConnectedChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "kickbot_connected_channels", Help: "Current number of chatrooms the gateway is joined to"})
        ActivePermits = promauto.NewGauge(prometheus.GaugeOpts{Name: "kickbot_active_permits", Help: "Current number of unexpired moderation permits"})
    })
}

// RecordModerationAction increments the moderation counter for a filter/action pair.
func RecordModerationAction(filter, action string) {
    if ModerationActions != nil { ModerationActions.WithLabelValues(filter, action).Inc() }
}

// RecordCommand increments the counter for an executed command.
func RecordCommand(name string) {
    if CommandsExecuted != nil { CommandsExecuted.WithLabelValues(name).Inc() }
}

// SetConnectedChannels records the number of chatrooms the gateway is joined to.
func SetConnectedChannels(n int) { if ConnectedChannels != nil { ConnectedChannels.Set(float64(n)) } }

// SetActivePermits records the number of unexpired permits across all accounts.
func SetActivePermits(n int) { if ActivePermits != nil { ActivePermits.Set(float64(n)) } }

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
    start := time.Now()
    fn()
    d := time.Since(start)
    if obs != nil { obs.Observe(d.Seconds()) }
    return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}
var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context { return context.WithValue(ctx, corrKey, id) }

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
    v := ctx.Value(corrKey)
    if s, ok := v.(string); ok { return s }
    return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
    if id := GetCorrelation(ctx); id != "" { return slog.Default().With(slog.String("corr", id)) }
    return slog.Default()
}
