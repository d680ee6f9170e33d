package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"nuam/internal"
	"nuam/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection keeps the upsert read-then-write sequences serialized.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS countries (
  code TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT '',
  exchangeName TEXT NOT NULL DEFAULT '',
  securitiesLaw TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS companies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ticker TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  countryCode TEXT,
  sector TEXT,
  currency TEXT,
  marketCap TEXT,
  exchange TEXT,
  source TEXT NOT NULL,
  reportDate TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(countryCode) REFERENCES countries(code)
);
CREATE INDEX IF NOT EXISTS idx_companies_country ON companies(countryCode);

CREATE TABLE IF NOT EXISTS uploads (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  path TEXT NOT NULL,
  hash TEXT NOT NULL UNIQUE,
  originalName TEXT NOT NULL,
  origin TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  result TEXT NOT NULL DEFAULT '',
  uploadedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  processedAt TEXT
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  uploadId INTEGER,
  ok INTEGER NOT NULL,
  sheet TEXT,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(uploadId) REFERENCES uploads(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// UpsertCountry inserts or refreshes a country and reports whether it was new.
func (d *DB) UpsertCountry(ctx context.Context, c internal.Country) (bool, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM countries WHERE code = ?`, c.Code).Scan(&exists)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO countries (code, name, currency, exchangeName, securitiesLaw, summary)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
  name=excluded.name,
  currency=excluded.currency,
  exchangeName=excluded.exchangeName,
  securitiesLaw=excluded.securitiesLaw,
  summary=excluded.summary,
  updatedAt=CURRENT_TIMESTAMP
`, c.Code, c.Name, c.Currency, c.ExchangeName, c.SecuritiesLaw, c.Summary); err != nil {
		return false, err
	}

	return created, tx.Commit()
}

func (d *DB) ListCountries(ctx context.Context) ([]internal.Country, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT code, name, currency, exchangeName, securitiesLaw, summary
FROM countries ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Country
	for rows.Next() {
		var c internal.Country
		if err := rows.Scan(&c.Code, &c.Name, &c.Currency, &c.ExchangeName, &c.SecuritiesLaw, &c.Summary); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCompany writes a record keyed by ticker. The returned flag is true
// when a new company row was created.
func (d *DB) UpsertCompany(ctx context.Context, rec internal.CatalogRecord) (internal.Company, bool, error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return internal.Company{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM companies WHERE ticker = ?`, rec.Ticker).Scan(&id)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return internal.Company{}, false, err
	}

	marketCap := marketCapValue(rec.MarketCap)
	reportDate := util.FormatDate(rec.ReportDate)

	if created {
		result, err := tx.ExecContext(ctx, `
INSERT INTO companies (ticker, name, countryCode, sector, currency, marketCap, exchange, source, reportDate)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.Ticker, rec.Name, rec.CountryCode, rec.Sector, rec.Currency, marketCap, rec.Exchange, rec.Source, reportDate)
		if err != nil {
			return internal.Company{}, false, err
		}
		if id, err = result.LastInsertId(); err != nil {
			return internal.Company{}, false, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
UPDATE companies SET
  name = ?, countryCode = ?, sector = ?, currency = ?, marketCap = ?,
  exchange = ?, source = ?, reportDate = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?
`, rec.Name, rec.CountryCode, rec.Sector, rec.Currency, marketCap, rec.Exchange, rec.Source, reportDate, id); err != nil {
			return internal.Company{}, false, err
		}
	}

	company, err := scanCompany(tx.QueryRowContext(ctx, companySelect+` WHERE id = ?`, id))
	if err != nil {
		return internal.Company{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return internal.Company{}, false, err
	}
	return company, created, nil
}

const companySelect = `
SELECT id, ticker, name, countryCode, sector, currency, marketCap, exchange, source, reportDate, createdAt, updatedAt
FROM companies`

func (d *DB) ListCompanies(ctx context.Context) ([]internal.Company, error) {
	rows, err := d.conn.QueryContext(ctx, companySelect+` ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) GetCompanyByTicker(ctx context.Context, ticker string) (*internal.Company, error) {
	c, err := scanCompany(d.conn.QueryRowContext(ctx, companySelect+` WHERE ticker = ?`, ticker))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (internal.Company, error) {
	var c internal.Company
	var marketCap, reportDate sql.NullString
	if err := row.Scan(
		&c.ID, &c.Ticker, &c.Name, &c.CountryCode, &c.Sector, &c.Currency,
		&marketCap, &c.Exchange, &c.Source, &reportDate, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return internal.Company{}, err
	}
	if marketCap.Valid {
		v, err := decimal.NewFromString(marketCap.String)
		if err != nil {
			return internal.Company{}, fmt.Errorf("company %s: market cap %q: %w", c.Ticker, marketCap.String, err)
		}
		c.MarketCap = &v
	}
	if reportDate.Valid {
		if t, err := time.Parse("2006-01-02", reportDate.String); err == nil {
			c.ReportDate = &t
		}
	}
	return c, nil
}

func marketCapValue(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	return util.StringPtr(v.String())
}

// UpsertUpload registers a stored file. Re-registering the same content hash
// returns the existing row untouched.
func (d *DB) UpsertUpload(ctx context.Context, path, hash, originalName string, origin internal.UploadOrigin) (internal.UploadRow, bool, error) {
	result, err := d.conn.ExecContext(ctx, `
INSERT INTO uploads (path, hash, originalName, origin, status)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(hash) DO NOTHING
`, path, hash, originalName, string(origin), string(internal.UploadPending))
	if err != nil {
		return internal.UploadRow{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return internal.UploadRow{}, false, err
	}

	row, err := d.GetUploadByHash(ctx, hash)
	if err != nil {
		return internal.UploadRow{}, false, err
	}
	if row == nil {
		return internal.UploadRow{}, false, errors.New("failed to upsert upload")
	}
	return *row, affected > 0, nil
}

const uploadSelect = `
SELECT id, path, hash, originalName, origin, status, result, uploadedAt, processedAt
FROM uploads`

func scanUpload(row rowScanner) (internal.UploadRow, error) {
	var u internal.UploadRow
	var origin, status string
	if err := row.Scan(&u.ID, &u.Path, &u.Hash, &u.OriginalName, &origin, &status, &u.Result, &u.UploadedAt, &u.ProcessedAt); err != nil {
		return internal.UploadRow{}, err
	}
	u.Origin = internal.UploadOrigin(origin)
	u.Status = internal.UploadStatus(status)
	return u, nil
}

func (d *DB) GetUploadByHash(ctx context.Context, hash string) (*internal.UploadRow, error) {
	row, err := scanUpload(d.conn.QueryRowContext(ctx, uploadSelect+` WHERE hash = ?`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListUploadsByStatus(ctx context.Context, status internal.UploadStatus, limit int) ([]internal.UploadRow, error) {
	rows, err := d.conn.QueryContext(ctx, uploadSelect+` WHERE status = ? ORDER BY uploadedAt ASC, id ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.UploadRow
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (d *DB) MarkUpload(ctx context.Context, id int, status internal.UploadStatus, result string) error {
	_, err := d.conn.ExecContext(ctx, `
UPDATE uploads SET status = ?, result = ?, processedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(status), result, id)
	return err
}

// InsertRun records one import attempt. uploadID is zero for direct imports.
func (d *DB) InsertRun(ctx context.Context, traceID string, uploadID int, result internal.ImportResult, timings map[string]float64) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(map[string]int{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
	var upload *int
	if uploadID > 0 {
		upload = &uploadID
	}
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO runs (traceId, uploadId, ok, sheet, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?, ?)
`, traceID, upload, result.OK, util.OptionalString(result.Sheet), string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
