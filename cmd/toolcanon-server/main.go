package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/triage-ai/toolcanon/internal/api"
	"github.com/triage-ai/toolcanon/internal/events"
	"github.com/triage-ai/toolcanon/internal/integration"
	"github.com/triage-ai/toolcanon/internal/logging"
	"github.com/triage-ai/toolcanon/internal/server"
	"github.com/triage-ai/toolcanon/internal/service"
	"github.com/triage-ai/toolcanon/internal/storage"
	"github.com/triage-ai/toolcanon/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

func main() {
	// Logger
	logger := logging.MustNew(envOrDefault("TOOLCANON_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("TOOLCANON_HTTP_PORT", "8080")
	grpcPort := envOrDefault("TOOLCANON_GRPC_PORT", "50055")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	sqlitePath := os.Getenv("SQLITE_PATH")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	cacheTTL := envOrDefaultInt("TOOLCANON_STORE_CACHE_TTL_S", 60)

	logger.Info("starting toolcanon server",
		zap.String("http_port", httpPort),
		zap.String("grpc_port", grpcPort),
		zap.Int("store_cache_ttl_s", cacheTTL),
	)

	ctx := context.Background()

	// Event sink: ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Event reader for /v1/events; nil disables the endpoints
	var eventReader api.EventReader
	if clickhouseDSN != "" {
		reader, err := storage.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader unavailable, event endpoints disabled", zap.Error(err))
		} else {
			eventReader = reader
			defer func() { _ = reader.Close() }()
		}
	}

	// Tool store: Postgres, then SQLite, then memory
	var repo store.Repository
	switch {
	case postgresDSN != "":
		r, err := store.OpenPostgres(ctx, postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		repo = r
		logger.Info("postgres tool store connected")
	case sqlitePath != "":
		r, err := store.OpenSQLite(ctx, sqlitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.String("path", sqlitePath), zap.Error(err))
		}
		repo = r
		logger.Info("sqlite tool store opened", zap.String("path", sqlitePath))
	default:
		repo = store.NewMemoryRepository()
		logger.Info("no POSTGRES_DSN or SQLITE_PATH set, using in-memory tool store")
	}
	toolStore := store.NewToolStore(store.Config{
		Repository: repo,
		CacheTTL:   time.Duration(cacheTTL) * time.Second,
		Logger:     logger,
	})
	defer func() { _ = toolStore.Close() }()

	// Canonicalizer service on a private bus. The integration consumes tool.registered
	// from the hub (published by POST /v1/tools/register) and republishes on the hub.
	svc := service.New(service.Config{Writer: writer, Logger: logger})
	if err := svc.Start(ctx); err != nil {
		logger.Fatal("failed to start canonicalizer service", zap.Error(err))
	}
	hub := integration.NewHub(events.NewBus(logger))
	integ := integration.New(hub, svc, logger)
	integ.Setup()
	defer integ.Teardown()

	// HTTP API server
	httpServer := &http.Server{
		Addr: ":" + httpPort,
		Handler: api.NewRouter(&api.Dependencies{
			Service: svc,
			Store:   toolStore,
			Events:  eventReader,
			Hub:     hub,
			Logger:  logger,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// gRPC server
	grpcServer, healthServer := server.NewGRPCServer(
		server.NewToolCanonServer(svc, toolStore, logger),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 10 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             10 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)

	// Enable reflection for debugging with grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", grpcPort), zap.Error(err))
	}
	go func() {
		logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	healthServer.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()
	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Error("canonicalizer service stop error", zap.Error(err))
	}

	logger.Info("toolcanon server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
