package main

import (
	"bufio"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shiprelay/internal/api"
	"shiprelay/internal/buildinfo"
	"shiprelay/internal/config"
	"shiprelay/internal/logger"
	"shiprelay/internal/metrics"
	"shiprelay/internal/retention"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg, log)
	if err != nil {
		log.Fatalw("failed to init server", "err", err)
	}

	mux := http.NewServeMux()

	// Webhooks
	mux.HandleFunc("/webhooks/orders/paid", srvDeps.OrderPaidHandler)
	mux.HandleFunc("/webhooks/logistics", srvDeps.LogisticsEventHandler)
	mux.HandleFunc("/webhooks/logistics/", srvDeps.LogisticsEventHandler) // tokened path

	// Audit trail
	mux.HandleFunc("/v1/audit-logs", srvDeps.AuditLogsHandler)
	mux.HandleFunc("/v1/audit-logs/stream", srvDeps.AuditStreamHandler)
	mux.HandleFunc("/v1/audit-logs/ws", srvDeps.AuditWSHandler)

	// Admin
	mux.HandleFunc("/v1/admin/audit-logs/cleanup", srvDeps.CleanupHandler)
	mux.HandleFunc("/v1/admin/logistic-center", srvDeps.LogisticCenterHandler)

	// Health and observability
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/debug/info", srvDeps.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// Docs
	mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", srvDeps.OpenAPIJSONHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)

	if cfg.RetentionInterval > 0 {
		sweeper := retention.NewSweeper(srvDeps.Store, log, cfg.RetentionAge, cfg.RetentionInterval)
		sweeper.Start()
		log.Infow("retention sweeper started", "age", cfg.RetentionAge.String(), "interval", cfg.RetentionInterval.String())
	}

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Infow("API listening", "addr", addr, "build", buildinfo.Info())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("server error", "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// The WebSocket upgrade needs the hijacker through the recorder.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Streaming handlers need the flusher through the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logMiddleware(log *zap.SugaredLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		dur := time.Since(start)

		status := strconv.Itoa(sr.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Infow("request",
			"requestId", reqID, "method", r.Method, "path", r.URL.Path,
			"status", sr.status, "duration", dur.String(), "remote", r.RemoteAddr)
	})
}
