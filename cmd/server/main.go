package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/reverie/internal/config"
	"github.com/rpggio/reverie/internal/domain/insight"
	"github.com/rpggio/reverie/internal/domain/journal"
	"github.com/rpggio/reverie/internal/domain/plan"
	"github.com/rpggio/reverie/internal/domain/quota"
	"github.com/rpggio/reverie/internal/generation"
	"github.com/rpggio/reverie/internal/mcp"
	"github.com/rpggio/reverie/internal/metrics"
	"github.com/rpggio/reverie/internal/sqlite"
	"github.com/rpggio/reverie/internal/transport"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
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

	keys := sqlite.NewAPIKeyRepository(db)
	if len(os.Args) > 1 && os.Args[1] == "addkey" {
		if err := addKey(keys, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "addkey: %v\n", err)
			os.Exit(1)
		}
		return
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid calendar timezone", "error", err)
		os.Exit(1)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	store := sqlite.NewKVStore(db)

	ledgerOpts := []quota.Option{quota.WithLocation(loc), quota.WithMetrics(collector)}
	if cfg.Plan.Override != "" {
		tier, ok := plan.Parse(cfg.Plan.Override)
		if !ok {
			logger.Warn("ignoring unknown plan override", "plan", cfg.Plan.Override)
		} else {
			logger.Info("plan override active", "plan", tier)
			ledgerOpts = append(ledgerOpts, quota.WithPlanOverride(tier))
		}
	}
	ledger := quota.NewLedger(store, logger, ledgerOpts...)
	journalSvc := journal.NewService(store, logger, journal.WithLocation(loc))
	generator := generation.NewClient(generation.Config{
		BaseURL:       cfg.Generation.BaseURL,
		InterpretPath: cfg.Generation.InterpretPath,
		ImagePath:     cfg.Generation.ImagePath,
		Timeout:       cfg.Generation.Timeout,
		RatePerSecond: cfg.Generation.RatePerSecond,
		Burst:         cfg.Generation.Burst,
	}, logger, generation.WithMetrics(collector))
	insightSvc := insight.NewService(ledger, generator, journalSvc, logger)

	rollover, err := quota.NewRollover(ledger, store, nil, logger)
	if err != nil {
		logger.Error("failed to schedule usage rollover", "error", err)
		os.Exit(1)
	}
	rollover.Start()
	defer rollover.Stop()

	handler := mcp.NewHandler(journalSvc, insightSvc, logger)
	mcpServer := mcp.NewServer(mcp.Config{
		Handler:       handler,
		Resolver:      keys,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		LocalProfile:  cfg.Profile.Local,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Generation.BaseURL == "" {
		logger.Info("no generation service configured, serving fallbacks")
	}

	// Branch based on transport mode
	if cfg.Transport.Mode == "stdio" {
		runStdioMode(logger, mcpServer)
		return
	}

	auth := transport.LocalProfileMiddleware(cfg.Profile.Local)
	if cfg.Auth.Enabled {
		auth = transport.AuthMiddleware(keys)
	}
	routerOpts := []transport.Option{
		transport.WithMCPHandler(sdkmcp.NewStreamableHTTPHandler(
			func(r *http.Request) *sdkmcp.Server { return mcpServer },
			&sdkmcp.StreamableHTTPOptions{
				Stateless:      false,
				SessionTimeout: 30 * time.Minute,
			},
		)),
	}
	if collector != nil {
		routerOpts = append(routerOpts, transport.WithMetricsHandler(collector.Handler()))
	}
	router := transport.NewServer(handler, auth, routerOpts...)
	runHTTPMode(logger, router, cfg.Server.Host, cfg.Server.Port)
}

// addKey mints a bearer token for a profile: reverie addkey <profile> [description].
func addKey(keys *sqlite.APIKeyRepository, args []string) error {
	if len(args) < 1 || args[0] == "" {
		return fmt.Errorf("usage: reverie addkey <profile> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	token := uuid.NewString()
	if err := keys.Add(context.Background(), token, args[0], description); err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		logger.Error("stdio server error", "error", err)
	}
}

func runHTTPMode(logger *slog.Logger, router http.Handler, host string, port int) {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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

const (
	maxLogSizeBytes  = 6 * 1024 * 1024
	keepLogSizeBytes = 5 * 1024 * 1024
)

// logFileWriter appends to a log file and trims it back to its newest
// keepLogSizeBytes once it grows past maxLogSizeBytes.
type logFileWriter struct {
	file *os.File
	mu   sync.Mutex
}

func newLogFileWriter(path string) (*logFileWriter, *os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	writer := &logFileWriter{file: file}
	if err := writer.truncateIfNeeded(); err != nil {
		return nil, nil, err
	}
	return writer, file, nil
}

func (w *logFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.truncateIfNeeded()
}

func (w *logFileWriter) truncateIfNeeded() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= maxLogSizeBytes {
		return nil
	}

	buf := make([]byte, keepLogSizeBytes)
	n, err := w.file.ReadAt(buf, size-keepLogSizeBytes)
	if err != nil && err != io.EOF {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes land at the new end regardless of offset.
	_, err = w.file.Write(buf[:n])
	return err
}
