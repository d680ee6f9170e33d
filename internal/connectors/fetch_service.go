package connectors

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"nuam/internal"
)

type FetchService struct {
	connector MailConnector
	uploads   *UploadStore
	log       *slog.Logger
}

type FetchResult struct {
	Fetched     int
	Attachments int
	Queued      int
}

func NewFetchService(connector MailConnector, uploads *UploadStore, log *slog.Logger) *FetchService {
	return &FetchService{connector: connector, uploads: uploads, log: log}
}

// FetchAndStore pulls messages and queues every spreadsheet attachment as an
// upload. A message that cannot be parsed is logged and skipped.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		files, err := WorkbookAttachments(msg.Raw)
		if err != nil {
			s.log.Warn("unreadable message", "provider", msg.Provider, "messageId", msg.MessageID, "err", err)
			continue
		}
		for _, f := range files {
			res.Attachments++
			row, queued, err := s.uploads.Register(ctx, f.Content, f.Name, internal.UploadOrigin(msg.Provider))
			if err != nil {
				return res, fmt.Errorf("store attachment %s of %s: %w", f.Name, msg.MessageID, err)
			}
			if queued {
				res.Queued++
			}
			s.log.Info("attachment stored", "messageId", msg.MessageID, "subject", msg.Subject, "file", f.Name, "uploadId", row.ID, "queued", queued)
		}
	}
	return res, nil
}

type Attachment struct {
	Name    string
	Content []byte
}

// WorkbookAttachments returns the .xlsx and .xls parts of a raw message,
// including inline parts some mail clients use for attachments.
func WorkbookAttachments(raw []byte) ([]Attachment, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	var out []Attachment
	for _, parts := range [][]*enmime.Part{env.Attachments, env.Inlines, env.OtherParts} {
		for _, part := range parts {
			if part == nil || !IsWorkbookName(part.FileName) || len(part.Content) == 0 {
				continue
			}
			out = append(out, Attachment{Name: part.FileName, Content: part.Content})
		}
	}
	return out, nil
}

// IsWorkbookName reports whether a file name has a spreadsheet extension.
func IsWorkbookName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls":
		return true
	default:
		return false
	}
}
