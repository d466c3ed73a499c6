package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Wikid82/argus/internal/api/middleware"
	"github.com/Wikid82/argus/internal/api/routes"
	"github.com/Wikid82/argus/internal/cerberus"
	"github.com/Wikid82/argus/internal/config"
	"github.com/Wikid82/argus/internal/database"
	"github.com/Wikid82/argus/internal/logger"
	"github.com/Wikid82/argus/internal/metrics"
	"github.com/Wikid82/argus/internal/ratelimit"
	"github.com/Wikid82/argus/internal/reputation"
	"github.com/Wikid82/argus/internal/server"
	"github.com/Wikid82/argus/internal/services"
	"github.com/Wikid82/argus/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Setup logging with rotation
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("create log dir: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "argus.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	defer rotator.Close()

	// Log to both stdout and file
	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)
	logger.Init(cfg.Environment == "development", mw)
	logger.SetLevel(cfg.LogLevel)

	// Handle CLI commands
	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			log.Fatalf("issue-token: %v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		logger.Log().WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	logger.Log().WithFields(map[string]interface{}{
		"version": version.Full(),
		"env":     cfg.Environment,
	}).Infof("starting %s", version.Name)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	security := services.NewSecurityService(db)
	notifier := services.NewNotificationService(cfg.Security.NotifyURLs, nil)
	alerts := services.NewAlertService(security, notifier, cfg.Security.EventQueueSize)
	alerts.Start()
	defer alerts.Close()

	defaults := reputation.DefaultEscalationPolicy()
	store := reputation.NewStore(
		reputation.WithSink(alerts),
		reputation.WithPolicy(reputation.EscalationPolicy{
			Threshold:     cfg.Security.BlockThreshold,
			Window:        cfg.Security.BlockWindow,
			BlockDuration: cfg.Security.BlockDuration,
			Kinds:         defaults.Kinds,
		}),
	)
	persisted, err := security.ListActiveBlocks(time.Now())
	if err != nil {
		return fmt.Errorf("load persisted blocks: %w", err)
	}
	logger.Log().WithField("blocks", store.Restore(persisted)).Info("restored ip blocks")

	policies := ratelimit.DefaultPolicies()
	if cfg.Security.RatePolicyFile != "" {
		policies, err = ratelimit.LoadPolicies(cfg.Security.RatePolicyFile)
		if err != nil {
			return err
		}
	}
	limiter := ratelimit.New(policies, ratelimit.WithTracker(store))
	cerb := cerberus.New(cfg.Security, store, limiter)
	if !cerb.IsEnabled() {
		logger.Log().Warn("security gate disabled by configuration")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(registry)

	maintenance := services.NewMaintenanceService(store, limiter, security, cfg.Security.EventRetention)
	if err := maintenance.Start(services.DefaultMaintenanceSchedule); err != nil {
		return err
	}
	defer maintenance.Stop()

	srv, err := server.New(db, cfg, routes.Dependencies{
		Cerberus: cerb,
		Security: security,
		Gatherer: registry,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

// issueToken prints an admin bearer token for the security API.
func issueToken(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, err := middleware.SignAdminToken(cfg.Security.AdminJWTSecret, *subject, middleware.RoleAdmin, *ttl)
	if err != nil {
		return fmt.Errorf("set ARGUS_ADMIN_JWT_SECRET: %w", err)
	}
	fmt.Println(token)
	return nil
}
