package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rsandoval/gridwatch/internal/config"
	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/domain/incident"
	"github.com/rsandoval/gridwatch/internal/export"
	"github.com/rsandoval/gridwatch/internal/sqlite"
	"github.com/rsandoval/gridwatch/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	deviceRepo := sqlite.NewDeviceRepository(db)
	checklistRepo := sqlite.NewChecklistRepository(db)
	judgmentRepo := sqlite.NewJudgmentRepository(db)
	incidentRepo := sqlite.NewIncidentRepository(db)

	deviceSvc := device.NewService(deviceRepo, logger)
	incidentSvc := incident.NewService(incidentRepo, logger)
	auditSvc := audit.NewService(deviceRepo, checklistRepo, judgmentRepo, logger)
	exporter := export.NewExporter(auditSvc, incidentSvc, logger)

	auditSvc.Subscribe(func(ev audit.Event) {
		logger.Debug("judgment changed",
			"checklist", ev.Key.String(), "device", ev.DeviceID, "operational", ev.Judgment.Operational())
	})

	router := transport.NewRouter(transport.Config{
		Services: transport.Services{
			Audit:     auditSvc,
			Devices:   deviceSvc,
			Incidents: incidentSvc,
			Exporter:  exporter,
		},
		Resolver: &apiKeyResolver{db: db},
		AuthOn:   cfg.Auth.Enabled,
		Logger:   logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type apiKeyResolver struct {
	db *sqlite.DB
}

func (r *apiKeyResolver) ResolveOperator(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)
	var operator string
	err := r.db.QueryRowContext(ctx, `SELECT operator FROM api_keys WHERE key_hash = ?`, hash).Scan(&operator)
	if err != nil || operator == "" {
		return "", fmt.Errorf("unauthorized: invalid token")
	}

	// Usage bookkeeping must not block the request.
	_, _ = r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash)

	return operator, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
