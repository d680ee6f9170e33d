package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"nuam/internal"
	"nuam/internal/config"
	"nuam/internal/connectors"
)

var workbookMIMETypes = map[string]bool{
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// session is the part of an IMAP client the connector drives.
type session interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
}

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
	now      func() time.Time
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
		now:      time.Now,
	}, nil
}

// FetchInbox returns up to max unseen messages of the mailbox that carry a
// spreadsheet part, oldest first.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(addr)
	}
	if err != nil {
		return nil, err
	}
	defer client.Logout()
	if deadline, ok := ctx.Deadline(); ok {
		client.Timeout = time.Until(deadline)
	}

	if err := client.Login(c.user, c.password); err != nil {
		return nil, err
	}
	return c.fetchWorkbookMail(ctx, client, label, max)
}

// fetchWorkbookMail reads body structures first and downloads only messages
// with a workbook part. Without mark-seen the mailbox is opened read-only and
// bodies are peeked, so other mail keeps its unseen flag either way.
func (c *Connector) fetchWorkbookMail(ctx context.Context, s session, label string, max int) ([]internal.FetchedMailMessage, error) {
	if _, err := s.Select(label, !c.markSeen); err != nil {
		return nil, fmt.Errorf("select %s: %w", label, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	meta, err := fetchByUID(ctx, s, uids, []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, imap.FetchInternalDate, imap.FetchBodyStructure})
	if err != nil {
		return nil, err
	}

	var candidates []uint32
	for uid, msg := range meta {
		if hasWorkbookPart(msg.BodyStructure) {
			candidates = append(candidates, uid)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	if max > 0 && len(candidates) > max {
		candidates = candidates[len(candidates)-max:]
	}

	section := &imap.BodySectionName{Peek: !c.markSeen}
	bodies, err := fetchByUID(ctx, s, candidates, []imap.FetchItem{imap.FetchUid, section.FetchItem()})
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(candidates))
	for _, uid := range candidates {
		msg := bodies[uid]
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read message %d: %w", uid, err)
		}
		out = append(out, toFetchedMessage(meta[uid], raw, c.now()))
	}
	return out, nil
}

func fetchByUID(ctx context.Context, s session, uids []uint32, items []imap.FetchItem) (map[uint32]*imap.Message, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() { done <- s.UidFetch(seqset, items, messages) }()

	out := make(map[uint32]*imap.Message, len(uids))
	for msg := range messages {
		if msg != nil {
			out[msg.Uid] = msg
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch %v: %w", items, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// hasWorkbookPart reports whether any leaf of the structure is named like a
// workbook or declares a spreadsheet MIME type.
func hasWorkbookPart(bs *imap.BodyStructure) bool {
	if bs == nil {
		return false
	}
	if len(bs.Parts) > 0 {
		for _, part := range bs.Parts {
			if hasWorkbookPart(part) {
				return true
			}
		}
		return false
	}
	if name, err := bs.Filename(); err == nil && connectors.IsWorkbookName(name) {
		return true
	}
	return workbookMIMETypes[strings.ToLower(bs.MIMEType+"/"+bs.MIMESubType)]
}

func toFetchedMessage(msg *imap.Message, raw []byte, now time.Time) internal.FetchedMailMessage {
	out := internal.FetchedMailMessage{
		Provider:   string(internal.OriginIMAP),
		ReceivedAt: now.UTC().Format(time.RFC3339),
		Raw:        raw,
	}
	if msg == nil {
		return out
	}
	if msg.Envelope != nil {
		out.MessageID = msg.Envelope.MessageId
		out.Subject = msg.Envelope.Subject
		out.From = formatAddresses(msg.Envelope.From)
	}
	if out.MessageID == "" {
		out.MessageID = fmt.Sprintf("imap-%d", msg.Uid)
	}
	if !msg.InternalDate.IsZero() {
		out.ReceivedAt = msg.InternalDate.UTC().Format(time.RFC3339)
	}
	return out
}

func formatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == nil {
			continue
		}
		email := strings.Trim(a.MailboxName+"@"+a.HostName, "@")
		if a.PersonalName != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", a.PersonalName, email))
		} else {
			parts = append(parts, email)
		}
	}
	return strings.Join(parts, ", ")
}
