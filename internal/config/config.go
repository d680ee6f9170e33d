package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"nuam/internal"
)

const defaultExchanges = "bcs:CHL:CLP,bvc:COL:COP,bvl:PER:PEN"

type Config struct {
	DBPath    string
	UploadDir string
	OutputDir string
	LogLevel  string

	ImportSourceTag       string
	ImportHeaderScanLimit int
	Exchanges             []internal.Exchange

	KafkaBrokers        []string
	KafkaTopic          string
	KafkaFlushTimeoutMs int

	ReportURL       string
	ReportTimeoutMs int
	ReportRetries   int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ListenerProvider     string
	ListenerLabel        string
	ListenerIntervalSec  int
	ListenerFetchMax     int
	ListenerProcessBatch int
	ListenerAutoExport   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	exchanges, err := ParseExchanges(getEnv("NUAM_EXCHANGES", defaultExchanges))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "nuam.db")),
		UploadDir: getEnv("UPLOAD_DIR", filepath.Join(cwd, "data", "uploads")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		ImportSourceTag:       getEnv("IMPORT_SOURCE_TAG", "Excel NUAM"),
		ImportHeaderScanLimit: getEnvInt("IMPORT_HEADER_SCAN_LIMIT", 200),
		Exchanges:             exchanges,

		KafkaBrokers:        getEnvList("KAFKA_BROKERS"),
		KafkaTopic:          getEnv("KAFKA_TOPIC", "nuam.empresas.ingreso"),
		KafkaFlushTimeoutMs: getEnvInt("KAFKA_FLUSH_TIMEOUT_MS", 1000),

		ReportURL:       getEnv("REPORT_URL", ""),
		ReportTimeoutMs: getEnvInt("REPORT_TIMEOUT_MS", 30000),
		ReportRetries:   getEnvInt("REPORT_RETRIES", 4),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		ListenerProvider:     getEnv("LISTENER_PROVIDER", ""),
		ListenerLabel:        getEnv("LISTENER_LABEL", "INBOX"),
		ListenerIntervalSec:  getEnvInt("LISTENER_INTERVAL_SEC", 60),
		ListenerFetchMax:     getEnvInt("LISTENER_FETCH_MAX", 20),
		ListenerProcessBatch: getEnvInt("LISTENER_PROCESS_BATCH", 10),
		ListenerAutoExport:   getEnvBool("LISTENER_AUTO_EXPORT", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// ParseExchanges reads the exchange table from "tag:country:currency" items
// separated by commas, e.g. "bcs:CHL:CLP,bvc:COL:COP".
func ParseExchanges(value string) ([]internal.Exchange, error) {
	var out []internal.Exchange
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid exchange entry %q: want tag:country:currency", item)
		}
		tag := strings.ToLower(strings.TrimSpace(parts[0]))
		if tag == "" {
			return nil, fmt.Errorf("invalid exchange entry %q: empty tag", item)
		}
		out = append(out, internal.Exchange{
			Tag:         tag,
			Label:       strings.ToUpper(tag),
			CountryCode: strings.ToUpper(strings.TrimSpace(parts[1])),
			Currency:    strings.ToUpper(strings.TrimSpace(parts[2])),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no exchanges configured")
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
