package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"nuam/internal/config"
)

const maxReportBytes = 64 << 20

// ReportClient downloads published market bulletins so they can be queued
// for import.
type ReportClient struct {
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	maxBytes   int64
}

func NewReportClient(cfg config.Config) *ReportClient {
	retries := cfg.ReportRetries
	if retries <= 0 {
		retries = 1
	}
	return &ReportClient{
		httpClient: &http.Client{Timeout: time.Duration(cfg.ReportTimeoutMs) * time.Millisecond},
		retries:    retries,
		backoff:    250 * time.Millisecond,
		maxBytes:   maxReportBytes,
	}
}

// Download fetches rawURL into dir and returns the written path. The file
// name comes from the URL path, falling back to report.xlsx.
func (c *ReportClient) Download(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported report url scheme: %q", u.Scheme)
	}

	body, err := c.fetch(ctx, u.String())
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, reportFileName(u))
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *ReportClient) fetch(ctx context.Context, target string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet, application/vnd.ms-excel, */*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.sleep(ctx, attempt)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < c.retries {
				lastErr = fmt.Errorf("report status %d", resp.StatusCode)
				c.sleep(ctx, attempt)
				continue
			}
			return nil, fmt.Errorf("report download failed: status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
		}
		if len(body) == 0 {
			return nil, errors.New("report download returned an empty body")
		}
		if int64(len(body)) > c.maxBytes {
			return nil, fmt.Errorf("report exceeds %d bytes", c.maxBytes)
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("report request failed")
	}
	return nil, lastErr
}

func (c *ReportClient) sleep(ctx context.Context, attempt int) {
	backoff := c.backoff*time.Duration(1<<(attempt-1)) + time.Duration(rand.Intn(100))*time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(backoff):
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func reportFileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "report.xlsx"
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != ".xlsx" && ext != ".xls" && ext != ".html" && ext != ".htm" {
		name += ".xlsx"
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
