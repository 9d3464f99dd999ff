package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/recon/internal/config"
	"github.com/roach88/recon/internal/engine"
	"github.com/roach88/recon/internal/metrics"
	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/telemetry"
)

// StoreOptions are the flags shared by commands that talk to the store.
type StoreOptions struct {
	*RootOptions
	SchemaDir   string
	Database    string // Overrides database.path
	MetricsFile string // Overrides metrics.file
}

// session is one CLI run against the SQLite remote store.
type session struct {
	cfg      *config.Config
	schema   *Schema
	store    *store.Store
	engine   *engine.Engine
	metrics  string
	shutdown func(context.Context) error
}

// openSession loads the schema, opens the store, materializes every record
// type and builds an engine over it.
func openSession(ctx context.Context, opts *StoreOptions) (*session, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, err
	}
	schema, err := loadSchemaOrExit(opts.SchemaDir)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up telemetry", err)
	}

	dbPath := cfg.Database.Path
	if opts.Database != "" {
		dbPath = opts.Database
	}
	var storeOpts []store.Option
	if opts.IDGenerator != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDGenerator))
	}
	slog.Debug("opening store", "path", dbPath)
	st, err := store.Open(dbPath, storeOpts...)
	if err != nil {
		_ = shutdown(ctx)
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open store", ErrCodeStore), err)
	}

	for _, rt := range schema.RecordTypes {
		if err := st.EnsureTable(ctx, rt); err != nil {
			st.Close()
			_ = shutdown(ctx)
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to prepare store", ErrCodeStore), err)
		}
	}

	builder, err := cfg.Builder()
	if err != nil {
		st.Close()
		_ = shutdown(ctx)
		return nil, WrapExitError(ExitCommandError, "invalid query settings", err)
	}

	metricsFile := cfg.Metrics.File
	if opts.MetricsFile != "" {
		metricsFile = opts.MetricsFile
	}

	slog.Info("session ready", "schema", opts.SchemaDir, "record_types", len(schema.RecordTypes), "db", dbPath)
	return &session{
		cfg:      cfg,
		schema:   schema,
		store:    st,
		engine:   engine.New(st, schema.DataManagement, engine.WithBuilder(builder)),
		metrics:  metricsFile,
		shutdown: shutdown,
	}, nil
}

// deadline applies deploy.timeout to ctx.
func (s *session) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Deploy.Timeout > 0 {
		return context.WithTimeout(ctx, timeDuration(s.cfg.Deploy.Timeout))
	}
	return context.WithCancel(ctx)
}

// Close writes the metrics textfile, flushes telemetry and closes the store.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.metrics != "" {
		if err := metrics.WriteTextfile(s.metrics); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := s.shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush telemetry: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// traceID returns the trace of ctx when it is being recorded.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return ""
	}
	return sc.TraceID().String()
}

func timeDuration(d config.Duration) time.Duration {
	return time.Duration(d)
}
