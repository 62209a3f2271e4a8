package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/demo"
	"github.com/vango-dev/vstore/pkg/metrics"
	"github.com/vango-dev/vstore/pkg/storage"
)

// newLogger builds the process logger from cfg.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStorage opens the configured backend. The returned close function
// releases the backend and anything it owns.
func openStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Storage, func() error, error) {
	nop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		s := storage.NewMemoryStorage()
		return s, s.Close, nil

	case config.BackendFile:
		s, err := storage.NewFileStorage(cfg.Dir, storage.WithFileLogger(logger.With("component", "storage")))
		if err != nil {
			return nil, nop, errors.New("E202").WithSubject(cfg.Dir).Wrap(err)
		}
		return s, s.Close, nil

	case config.BackendSQLite:
		path := cfg.SQLitePath()
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nop, errors.New("E202").WithSubject(path).Wrap(err)
			}
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, nop, errors.New("E202").WithSubject(path).Wrap(err)
		}
		s := storage.NewSQLStorage(db,
			storage.WithSQLDialect(storage.DialectSQLite),
			storage.WithSQLTableName(cfg.Table),
		)
		tctx, cancel := context.WithTimeout(ctx, cfg.Timeout.Duration)
		defer cancel()
		if err := s.CreateTable(tctx); err != nil {
			_ = db.Close()
			return nil, nop, errors.New("E202").WithSubject(path).Wrap(err)
		}
		closeAll := func() error {
			_ = s.Close()
			return db.Close()
		}
		return s, closeAll, nil

	case config.BackendS3:
		client := storage.NewS3Client(storage.S3Config{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.PathStyle,
		})
		s := storage.NewS3Storage(client, cfg.S3.Bucket, cfg.S3.Prefix)
		return s, s.Close, nil

	default:
		return nil, nop, errors.New("E201").WithSubject(cfg.Backend)
	}
}

// newMailer returns an SMTP mailer when a mail host is configured and a
// logging mailer otherwise.
func newMailer(cfg config.MailConfig, logger *slog.Logger) demo.Mailer {
	if cfg.Host == "" {
		return demo.LogMailer{Logger: logger.With("component", "mail")}
	}
	return demo.SMTPMailer{
		Host:        cfg.Host,
		Port:        cfg.Port,
		Username:    cfg.User,
		Password:    cfg.Password,
		ImplicitTLS: cfg.ImplicitTLS || cfg.Port == 465,
	}
}

// instance is an App with the resources it was built from.
type instance struct {
	cfg     *config.Config
	logger  *slog.Logger
	app     *demo.App
	metrics *metrics.Collector
	close   func() error
}

// Close writes pending state and releases the storage backend.
func (r *instance) Close() error {
	appErr := r.app.Close()
	if err := r.close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return appErr
}

// openInstance builds the demo App described by cfg. A non-nil collector
// observes the stores.
func openInstance(ctx context.Context, cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*instance, error) {
	backend, closeStorage, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	appCfg := demo.Config{
		Storage:        backend,
		WatchStorage:   cfg.Storage.Watch,
		StorageTimeout: cfg.Storage.Timeout.Duration,
		Mailer:         newMailer(cfg.Mail, logger),
		MailFrom:       cfg.Mail.From,
		MailAdmin:      cfg.Mail.Admin,
		Latency:        cfg.Demo.Latency.Duration,
		Logger:         logger,
	}
	if collector != nil {
		appCfg.StoreObserver = collector
		appCfg.PersistObserver = collector
	}

	logger.Debug("storage opened", "backend", cfg.Storage.Backend)
	return &instance{
		cfg:     cfg,
		logger:  logger,
		app:     demo.NewApp(appCfg),
		metrics: collector,
		close:   closeStorage,
	}, nil
}
