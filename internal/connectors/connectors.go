package connectors

import (
	"context"

	"nuam/internal"
)

// MailConnector lists recent messages of a mailbox or label in raw RFC 822
// form.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
