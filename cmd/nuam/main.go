package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"nuam/internal"
	"nuam/internal/catalog"
	"nuam/internal/config"
	"nuam/internal/connectors"
	"nuam/internal/events"
	"nuam/internal/listener"
	"nuam/internal/pipeline"
	"nuam/internal/storage"
	"nuam/internal/util"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one subcommand and returns the process exit code. Deferred
// cleanup runs before the caller exits.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	log := util.NewLogger(cfg.LogLevel)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer db.Close()

	ok, err := runCommand(ctx, cfg, db, log, args[0], args[1:], stdout)
	if errors.Is(err, errUsage) {
		usage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if !ok {
		return 1
	}
	return 0
}

var errUsage = errors.New("unknown command")

// runCommand reports ok=false for an import that completed with a failed
// result.
func runCommand(ctx context.Context, cfg config.Config, db *storage.DB, log *slog.Logger, cmd string, args []string, stdout io.Writer) (bool, error) {
	newImporter := func() (*pipeline.ImportService, func()) {
		pub := events.NewPublisher(cfg, log)
		svc := pipeline.NewImportService(db, db, pub, pipeline.ImportOptions(cfg), log)
		return svc, func() {
			if err := pub.Close(); err != nil {
				log.Warn("event publisher close failed", "err", err)
			}
		}
	}
	flags := func() *flag.FlagSet {
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(stdout)
		return fs
	}

	switch cmd {
	case "countries:seed":
		res, err := catalog.NewSeedService(db, log).SeedCountries(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "countries seeded created=%d updated=%d total=%d\n", res.Created, res.Updated, res.Total)
	case "catalog:import":
		fs := flags()
		file := fs.String("file", "", "workbook path")
		if err := fs.Parse(args); err != nil {
			return false, err
		}
		if strings.TrimSpace(*file) == "" {
			return false, fmt.Errorf("--file is required")
		}
		svc, done := newImporter()
		res := svc.ImportFile(ctx, absPath(*file))
		done()
		blob, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(stdout, string(blob))
		return res.OK, nil
	case "catalog:fetch":
		fs := flags()
		rawURL := fs.String("url", cfg.ReportURL, "bulletin workbook url")
		if err := fs.Parse(args); err != nil {
			return false, err
		}
		if strings.TrimSpace(*rawURL) == "" {
			return false, fmt.Errorf("--url or REPORT_URL is required")
		}
		path, err := catalog.NewReportClient(cfg).Download(ctx, *rawURL, filepath.Join(cfg.UploadDir, "downloads"))
		if err != nil {
			return false, err
		}
		row, queued, err := connectors.NewUploadStore(db, cfg.UploadDir).RegisterUpload(ctx, path, internal.OriginHTTP)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "report downloaded upload=%d queued=%t path=%s\n", row.ID, queued, row.Path)
	case "uploads:add":
		fs := flags()
		file := fs.String("file", "", "workbook path")
		if err := fs.Parse(args); err != nil {
			return false, err
		}
		if strings.TrimSpace(*file) == "" {
			return false, fmt.Errorf("--file is required")
		}
		row, queued, err := connectors.NewUploadStore(db, cfg.UploadDir).RegisterUpload(ctx, absPath(*file), internal.OriginCLI)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "upload registered id=%d queued=%t status=%s\n", row.ID, queued, row.Status)
	case "uploads:process":
		fs := flags()
		batch := fs.Int("batch", 20, "batch size")
		if err := fs.Parse(args); err != nil {
			return false, err
		}
		svc, done := newImporter()
		sum, err := svc.ProcessPending(ctx, *batch)
		done()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "processed uploads ok=%d failed=%d created=%d updated=%d\n", sum.Processed, sum.Failed, sum.Created, sum.Updated)
	case "mail:fetch":
		fs := flags()
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		if err := fs.Parse(args); err != nil {
			return false, err
		}
		conn, err := listener.MakeConnector(ctx, strings.ToLower(strings.TrimSpace(*provider)), cfg)
		if err != nil {
			return false, err
		}
		fetch := connectors.NewFetchService(conn, connectors.NewUploadStore(db, cfg.UploadDir), log)
		res, err := fetch.FetchAndStore(ctx, *label, *max)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "mail fetch done provider=%s fetched=%d attachments=%d queued=%d\n", *provider, res.Fetched, res.Attachments, res.Queued)
	case "uploads:listen":
		svc, closeFn, err := listener.Wire(ctx, cfg, db, log)
		if err != nil {
			return false, err
		}
		defer closeFn()
		if err := svc.Run(ctx); err != nil {
			return false, err
		}
	case "export:xlsx":
		fs := flags()
		out := fs.String("out", filepath.Join(cfg.OutputDir, "catalog.xlsx"), "output xlsx path")
		if err := fs.Parse(args); err != nil {
			return false, err
		}
		companies, err := db.ListCompanies(ctx)
		if err != nil {
			return false, err
		}
		if err := pipeline.ExportCompaniesToXLSX(companies, *out); err != nil {
			return false, err
		}
		fmt.Fprintf(stdout, "exported %d companies to %s\n", len(companies), *out)
	case "companies:list":
		companies, err := db.ListCompanies(ctx)
		if err != nil {
			return false, err
		}
		w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tNAME\tCOUNTRY\tCURRENCY\tMARKET CAP\tEXCHANGE")
		for _, c := range companies {
			mcap := ""
			if c.MarketCap != nil {
				mcap = c.MarketCap.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Ticker, c.Name, util.Deref(c.CountryCode), util.Deref(c.Currency), mcap, util.Deref(c.Exchange))
		}
		if err := w.Flush(); err != nil {
			return false, err
		}
	default:
		return false, errUsage
	}
	return true, nil
}

func absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: nuam <command>")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  countries:seed")
	fmt.Fprintln(w, "  catalog:import --file=Informe_Bursatil_Regional.xlsx")
	fmt.Fprintln(w, "  catalog:fetch [--url=https://...]")
	fmt.Fprintln(w, "  uploads:add --file=...xlsx")
	fmt.Fprintln(w, "  uploads:process [--batch=20]")
	fmt.Fprintln(w, "  uploads:listen")
	fmt.Fprintln(w, "  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Fprintln(w, "  export:xlsx [--out=./out/catalog.xlsx]")
	fmt.Fprintln(w, "  companies:list")
}
