package report

import (
	"context"
	"errors"
	"fmt"
	"io"

	"lil-report/pkg/config"
	"lil-report/pkg/ingest"
	"lil-report/pkg/llm"
)

// OpenStore opens the store selected by the storage settings
func OpenStore(ctx context.Context, cfg config.Storage) (Store, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite, "":
		return NewSQLiteStore(cfg.Path)
	case config.StoragePostgres:
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Open builds a ready service from configuration. Close releases the store
// and the model client.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	client, err := llm.New(ctx, llm.Options{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		if c, ok := client.(io.Closer); ok {
			c.Close()
		}
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}

	handler := ingest.NewDocumentHandler(ingest.Limits{
		MaxFileChars:   cfg.Limits.MaxFileChars,
		MaxTableRows:   cfg.Limits.MaxTableRows,
		MaxUploadBytes: cfg.Limits.MaxUploadBytes,
	})
	normalizer := ingest.NewNormalizer(cfg.Limits.MaxContextChars, cfg.Limits.ParseWorkers)

	return NewService(handler, normalizer, client, store, Options{
		Timeout:         cfg.LLM.Timeout(false),
		ExtendedTimeout: cfg.LLM.Timeout(true),
		HistoryWindow:   cfg.LLM.HistoryWindow,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
	}), nil
}

// Close releases the store and, when it holds one, the model connection
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if c, ok := s.client.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
