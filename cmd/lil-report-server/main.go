package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lil-report/internal/handlers"
	"lil-report/pkg/config"
	"lil-report/pkg/report"
)

// version is set during build time via ldflags
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Config file (defaults to the profile config)")
		dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
		dsn         = flag.String("dsn", "", "Postgres connection string (overrides config)")
		provider    = flag.String("provider", "", "LLM provider: anthropic, openai, gemini or ollama (overrides config)")
		model       = flag.String("model", "", "LLM model (overrides config)")
		host        = flag.String("host", "", "Server host (overrides config)")
		port        = flag.Int("port", 0, "Server port (overrides config)")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lil-report-server version %s\n", version)
		return nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	// Override with command line flags
	if *dbPath != "" {
		cfg.Storage.Driver = config.StorageSQLite
		cfg.Storage.Path = *dbPath
	}
	if *dsn != "" {
		cfg.Storage.Driver = config.StoragePostgres
		cfg.Storage.DSN = *dsn
	}
	if *provider != "" {
		cfg.LLM.Provider = *provider
		cfg.LLM.APIKey = ""
		cfg.LoadProviderEnv()
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	service, err := report.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer service.Close()

	handler := handlers.NewWithVersion(service, version)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.RecoverMiddleware(handlers.LoggingMiddleware(handler.Routes())),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// long enough for an extended analysis plus parsing
		WriteTimeout: cfg.LLM.Timeout(true) + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting lil-report-server version %s on %s (provider %s, model %s, storage %s)",
			version, addr, cfg.LLM.Provider, cfg.LLM.Model, cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadProfile()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile config: %w", err)
	}
	return cfg, nil
}
