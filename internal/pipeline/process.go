package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"nuam/internal"
	"nuam/internal/catalog"
	"nuam/internal/config"
	"nuam/internal/events"
)

// CatalogStore is the persistence the importer writes to.
type CatalogStore interface {
	ListCountries(ctx context.Context) ([]internal.Country, error)
	UpsertCompany(ctx context.Context, rec internal.CatalogRecord) (internal.Company, bool, error)
	InsertRun(ctx context.Context, traceID string, uploadID int, result internal.ImportResult, timings map[string]float64) error
}

// UploadQueue holds workbooks waiting to be imported.
type UploadQueue interface {
	ListUploadsByStatus(ctx context.Context, status internal.UploadStatus, limit int) ([]internal.UploadRow, error)
	MarkUpload(ctx context.Context, id int, status internal.UploadStatus, result string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event internal.ChangeEvent) error
}

type ImportService struct {
	store     CatalogStore
	uploads   UploadQueue
	publisher EventPublisher
	opts      Options
	log       *slog.Logger
	now       func() time.Time
}

func NewImportService(store CatalogStore, uploads UploadQueue, publisher EventPublisher, opts Options, log *slog.Logger) *ImportService {
	return &ImportService{
		store:     store,
		uploads:   uploads,
		publisher: publisher,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// ImportOptions derives ingest options from configuration. Countries are
// resolved per run from the store.
func ImportOptions(cfg config.Config) Options {
	return Options{
		Exchanges: cfg.Exchanges,
		SourceTag: cfg.ImportSourceTag,
		ScanLimit: cfg.ImportHeaderScanLimit,
	}
}

// ImportFile ingests the workbook at path into the catalog. Every failure is
// reported through the result rather than returned.
func (s *ImportService) ImportFile(ctx context.Context, path string) internal.ImportResult {
	return s.importFile(ctx, path, 0)
}

func (s *ImportService) importFile(ctx context.Context, path string, uploadID int) internal.ImportResult {
	start := time.Now()
	trace := uuid.NewString()
	log := s.log.With("traceId", trace, "file", path)

	result, timings := s.run(ctx, log, path)
	timings["totalMs"] = float64(time.Since(start).Milliseconds())

	if err := s.store.InsertRun(ctx, trace, uploadID, result, timings); err != nil {
		log.Warn("run not recorded", "err", err)
	}
	if result.OK {
		log.Info("import done", "sheet", result.Sheet, "created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	} else {
		log.Error("import failed", "message", result.Message)
	}
	return result
}

func (s *ImportService) run(ctx context.Context, log *slog.Logger, path string) (internal.ImportResult, map[string]float64) {
	timings := map[string]float64{}
	mark := time.Now()
	lap := func(name string) {
		timings[name] = float64(time.Since(mark).Milliseconds())
		mark = time.Now()
	}

	wb, err := OpenWorkbook(path)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return internal.ImportResult{Message: fmt.Sprintf("file not found: %s", path)}, timings
		}
		return internal.ImportResult{Message: fmt.Sprintf("error reading workbook: %v", err)}, timings
	}
	defer wb.Close()
	lap("openMs")

	opts := s.opts
	if opts.Countries == nil {
		countries, err := s.store.ListCountries(ctx)
		if err != nil {
			return internal.ImportResult{Message: fmt.Sprintf("error loading countries: %v", err)}, timings
		}
		opts.Countries = catalog.BuildCountryIndex(countries)
	}

	ing, err := Ingest(wb, opts)
	lap("ingestMs")
	for _, d := range ing.Diagnostics {
		log.Warn("ingest diagnostic", "detail", d)
	}
	if err != nil {
		msg := err.Error()
		if len(ing.Diagnostics) > 0 {
			msg += ": " + strings.Join(ing.Diagnostics, "; ")
		}
		return internal.ImportResult{Message: msg}, timings
	}
	log.Info("sheet selected", "sheet", ing.Sheet, "layout", ing.Layout, "header", ing.Header, "headerRow", ing.HeaderRow, "columns", ing.Columns)

	result := internal.ImportResult{Sheet: ing.Sheet, Skipped: ing.Skipped}
	for _, rec := range ing.Records {
		company, created, err := s.store.UpsertCompany(ctx, rec)
		if err != nil {
			result.Message = fmt.Sprintf("error writing company %s: %v (created: %d, updated: %d)", rec.Ticker, err, result.Created, result.Updated)
			return result, timings
		}
		action := internal.ActionEdit
		if created {
			action = internal.ActionCreate
			result.Created++
		} else {
			result.Updated++
		}
		s.publish(ctx, log, events.NewChangeEvent(action, company, s.now()))
	}
	lap("upsertMs")

	result.OK = true
	result.Message = fmt.Sprintf("Sheet used: %s (%s layout, header %s). Created: %d, updated: %d, skipped: %d",
		ing.Sheet, ing.Layout, ing.Header, result.Created, result.Updated, result.Skipped)
	return result, timings
}

func (s *ImportService) publish(ctx context.Context, log *slog.Logger, event internal.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn("change event not delivered", "ticker", event.Ticker, "action", event.Action, "err", err)
	}
}

type ProcessSummary struct {
	Processed int
	Failed    int
	Created   int
	Updated   int
}

// ProcessPending imports queued uploads oldest first and records each outcome
// on its upload.
func (s *ImportService) ProcessPending(ctx context.Context, limit int) (ProcessSummary, error) {
	if s.uploads == nil {
		return ProcessSummary{}, errors.New("no upload queue configured")
	}
	pending, err := s.uploads.ListUploadsByStatus(ctx, internal.UploadPending, limit)
	if err != nil {
		return ProcessSummary{}, err
	}

	var sum ProcessSummary
	for _, upload := range pending {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res := s.importFile(ctx, upload.Path, upload.ID)
		status := internal.UploadProcessed
		if res.OK {
			sum.Processed++
			sum.Created += res.Created
			sum.Updated += res.Updated
		} else {
			status = internal.UploadFailed
			sum.Failed++
		}
		if err := s.uploads.MarkUpload(ctx, upload.ID, status, res.Message); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
