package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"nuam/internal"
	"nuam/internal/config"
	"nuam/internal/connectors"
	gmailconnector "nuam/internal/connectors/gmail"
	imapconnector "nuam/internal/connectors/imap"
	"nuam/internal/events"
	"nuam/internal/pipeline"
	"nuam/internal/storage"
)

// Importer drains the upload queue.
type Importer interface {
	ProcessPending(ctx context.Context, limit int) (pipeline.ProcessSummary, error)
}

// Fetcher pulls new workbooks from a mailbox into the upload queue.
type Fetcher interface {
	FetchAndStore(ctx context.Context, label string, max int) (connectors.FetchResult, error)
}

type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]internal.Company, error)
}

type Service struct {
	cfg       config.Config
	importer  Importer
	fetcher   Fetcher
	companies CompanyLister
	log       *slog.Logger
}

// NewService wires a listener. fetcher may be nil when no mailbox is polled.
func NewService(cfg config.Config, importer Importer, fetcher Fetcher, companies CompanyLister, log *slog.Logger) *Service {
	return &Service{cfg: cfg, importer: importer, fetcher: fetcher, companies: companies, log: log}
}

// NewFetcher builds the mailbox fetcher for the configured provider, or nil
// when none is set.
func NewFetcher(ctx context.Context, cfg config.Config, uploads *connectors.UploadStore, log *slog.Logger) (Fetcher, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.ListenerProvider))
	if provider == "" {
		return nil, nil
	}
	conn, err := MakeConnector(ctx, provider, cfg)
	if err != nil {
		return nil, err
	}
	return connectors.NewFetchService(conn, uploads, log), nil
}

func MakeConnector(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error) {
	switch provider {
	case string(internal.OriginGmail):
		return gmailconnector.NewConnector(ctx, cfg)
	case string(internal.OriginIMAP):
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if err := s.RunCycle(ctx); err != nil {
			s.log.Error("listener cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches mail if configured, imports pending uploads and, when
// enabled, re-exports the catalog after a cycle that changed it.
func (s *Service) RunCycle(ctx context.Context) error {
	var fetched connectors.FetchResult
	if s.fetcher != nil {
		var err error
		fetched, err = s.fetcher.FetchAndStore(ctx, s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
		if err != nil {
			return fmt.Errorf("fetch mail: %w", err)
		}
	}

	summary, err := s.importer.ProcessPending(ctx, s.cfg.ListenerProcessBatch)
	if err != nil {
		return fmt.Errorf("process uploads: %w", err)
	}

	if s.cfg.ListenerAutoExport && summary.Created+summary.Updated > 0 {
		if err := s.export(ctx); err != nil {
			return fmt.Errorf("export catalog: %w", err)
		}
	}

	s.log.Info("listener cycle done",
		"fetched", fetched.Fetched, "queued", fetched.Queued,
		"processed", summary.Processed, "failed", summary.Failed,
		"created", summary.Created, "updated", summary.Updated)
	return nil
}

func (s *Service) export(ctx context.Context) error {
	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		return err
	}
	out := filepath.Join(s.cfg.OutputDir, "listener", "catalog.xlsx")
	if err := pipeline.ExportCompaniesToXLSX(companies, out); err != nil {
		return err
	}
	s.log.Info("catalog exported", "path", out, "companies", len(companies))
	return nil
}

// Wire assembles a listener over the catalog database. The returned func
// releases the event publisher.
func Wire(ctx context.Context, cfg config.Config, db *storage.DB, log *slog.Logger) (*Service, func(), error) {
	fetcher, err := NewFetcher(ctx, cfg, connectors.NewUploadStore(db, cfg.UploadDir), log)
	if err != nil {
		return nil, nil, err
	}
	pub := events.NewPublisher(cfg, log)
	importer := pipeline.NewImportService(db, db, pub, pipeline.ImportOptions(cfg), log)
	return NewService(cfg, importer, fetcher, db, log), func() { _ = pub.Close() }, nil
}
