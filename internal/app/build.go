// Package app wires together config, persistence, audit, metrics, the
// dispatcher and the HTTP transport into one runnable server.
package app

import (
	"context"
	"fmt"

	"github.com/ufal/transcriptionserver/internal/audit"
	"github.com/ufal/transcriptionserver/internal/config"
	"github.com/ufal/transcriptionserver/internal/dispatcher"
	"github.com/ufal/transcriptionserver/internal/httpapi"
	"github.com/ufal/transcriptionserver/internal/observability"
	"github.com/ufal/transcriptionserver/internal/persistence"
	"github.com/ufal/transcriptionserver/internal/tokenizer"
)

// BuildResult bundles every component Build assembled, for cmd/ to run and
// eventually shut down.
type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Dispatcher *dispatcher.Dispatcher
	Metrics    *observability.Metrics
	Audit      audit.Store

	// Cleanup releases external resources (the audit store's DB handle,
	// mainly) and should run once, on shutdown.
	Cleanup func() error
}

// Build constructs every component from cfg and wires them together. The
// returned BuildResult's API field is ready to serve once handed to an
// http.Server.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store := persistence.New(cfg.RecordingsDir)

	auditStore, err := audit.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("audit store init failed: %w", err)
	}

	auditFunc := func(kind, sessionID, detail string) {
		go func() {
			if err := auditStore.RecordEvent(context.Background(), audit.Event{
				Kind:      kind,
				SessionID: sessionID,
				Detail:    detail,
			}); err != nil {
				metrics.ObservePersistenceError("audit_record_event")
			}
		}()
	}

	d := dispatcher.New(dispatcher.Config{
		SupportedLangs:        cfg.SupportedLangs,
		DefaultSourceLang:     cfg.DefaultSourceLang,
		DefaultTranscriptLang: cfg.DefaultTranscriptLang,
		WordSeparator:         cfg.WordSeparator,
	}, tokenizer.NewRegistry(), store, auditFunc, metrics)

	api := httpapi.New(cfg, d, metrics)

	cleanup := func() error {
		return auditStore.Close()
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Dispatcher: d,
		Metrics:    metrics,
		Audit:      auditStore,
		Cleanup:    cleanup,
	}, nil
}
