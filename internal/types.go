package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange describes one of the stock exchanges a workbook can report on and
// the defaults applied to companies listed there.
type Exchange struct {
	Tag         string
	Label       string
	CountryCode string
	Currency    string
}

type Country struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Currency      string `json:"currency"`
	ExchangeName  string `json:"exchangeName"`
	SecuritiesLaw string `json:"securitiesLaw"`
	Summary       string `json:"summary"`
}

// CatalogRecord is a normalized company row produced by the importer.
type CatalogRecord struct {
	Ticker      string
	Name        string
	CountryCode *string
	Sector      *string
	Currency    *string
	MarketCap   *decimal.Decimal
	Exchange    *string
	Source      string
	ReportDate  *time.Time
}

type Company struct {
	ID int
	CatalogRecord
	CreatedAt string
	UpdatedAt string
}

type ChangeAction string

const (
	ActionCreate ChangeAction = "CREATE"
	ActionEdit   ChangeAction = "EDIT"
)

type ChangeEvent struct {
	ID          string           `json:"eventId"`
	Action      ChangeAction     `json:"action"`
	OccurredAt  string           `json:"occurredAt"`
	CompanyID   int              `json:"id"`
	Ticker      string           `json:"ticker"`
	Name        string           `json:"name"`
	CountryCode *string          `json:"country"`
	Sector      *string          `json:"sector"`
	Currency    *string          `json:"currency"`
	MarketCap   *decimal.Decimal `json:"marketCap"`
	Exchange    *string          `json:"exchange"`
	Source      string           `json:"source"`
	ReportDate  *string          `json:"reportDate"`
}

// ImportResult is the outcome of one ingestion run as reported to callers.
type ImportResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Sheet   string `json:"sheet,omitempty"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
}

type UploadOrigin string

const (
	OriginCLI   UploadOrigin = "cli"
	OriginHTTP  UploadOrigin = "http"
	OriginIMAP  UploadOrigin = "imap"
	OriginGmail UploadOrigin = "gmail"
)

type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadProcessed UploadStatus = "processed"
	UploadFailed    UploadStatus = "failed"
)

type UploadRow struct {
	ID           int
	Path         string
	Hash         string
	OriginalName string
	Origin       UploadOrigin
	Status       UploadStatus
	Result       string
	UploadedAt   string
	ProcessedAt  *string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
