package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuam/internal"
	"nuam/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "nuam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertCompanyCreatesThenUpdates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	created, err := db.UpsertCountry(ctx, internal.Country{Code: "CHL", Name: "Chile", Currency: "CLP"})
	require.NoError(t, err)
	assert.True(t, created)

	mcap := decimal.RequireFromString("1234.50")
	date := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	rec := internal.CatalogRecord{
		Ticker:      "SQM-B",
		Name:        "SQM",
		CountryCode: util.StringPtr("CHL"),
		MarketCap:   &mcap,
		Source:      "Excel NUAM",
		ReportDate:  &date,
	}

	company, isNew, err := db.UpsertCompany(ctx, rec)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotZero(t, company.ID)
	assert.Equal(t, "1234.5", company.MarketCap.String())
	assert.Equal(t, "2024-03-31", util.Deref(util.FormatDate(company.ReportDate)))
	assert.Nil(t, company.Sector)

	rec.Name = "Sociedad Química y Minera"
	rec.MarketCap = nil
	updated, isNew, err := db.UpsertCompany(ctx, rec)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, company.ID, updated.ID)
	assert.Equal(t, "Sociedad Química y Minera", updated.Name)
	assert.Nil(t, updated.MarketCap)

	all, err := db.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	missing, err := db.GetCompanyByTicker(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpsertCompanyRejectsUnknownCountry(t *testing.T) {
	db := openTestDB(t)
	_, _, err := db.UpsertCompany(context.Background(), internal.CatalogRecord{
		Ticker: "X", Name: "X", Source: "t", CountryCode: util.StringPtr("ARG"),
	})
	assert.Error(t, err)
}

func TestUploadsLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	row, isNew, err := db.UpsertUpload(ctx, "/tmp/a.xlsx", "h1", "a.xlsx", internal.OriginCLI)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, internal.UploadPending, row.Status)

	again, isNew, err := db.UpsertUpload(ctx, "/tmp/b.xlsx", "h1", "b.xlsx", internal.OriginHTTP)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, row.ID, again.ID)

	require.NoError(t, db.MarkUpload(ctx, row.ID, internal.UploadProcessed, "ok"))
	pending, err := db.ListUploadsByStatus(ctx, internal.UploadPending, 5)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, db.InsertRun(ctx, "trace", row.ID, internal.ImportResult{OK: true, Sheet: "S", Created: 1}, map[string]float64{"totalMs": 3}))
	require.NoError(t, db.InsertRun(ctx, "trace-2", 0, internal.ImportResult{Message: "file not found"}, map[string]float64{}))
	n, err := db.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	v, err := db.GetMetadata("k")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("k", "1"))
	require.NoError(t, db.SetMetadata("k", "2"))
	v, err = db.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "2", util.Deref(v))
}
