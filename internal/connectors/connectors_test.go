package connectors

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuam/internal"
	"nuam/internal/storage"
	"nuam/internal/util"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
}

func (f fakeConnector) FetchInbox(_ context.Context, _ string, max int) ([]internal.FetchedMailMessage, error) {
	if max > 0 && len(f.messages) > max {
		return f.messages[:max], nil
	}
	return f.messages, nil
}

func buildMessage(t *testing.T, attachments map[string][]byte) []byte {
	t.Helper()
	b := enmime.Builder().
		From("Boletín", "boletin@example.test").
		To("Catálogo", "catalogo@example.test").
		Subject("Informe bursátil regional").
		Text([]byte("Adjunto informe."))
	for name, data := range attachments {
		b = b.AddAttachment(data, "application/octet-stream", name)
	}
	part, err := b.Build()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, part.Encode(&buf))
	return buf.Bytes()
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "nuam.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWorkbookAttachmentsKeepsSpreadsheetsOnly(t *testing.T) {
	raw := buildMessage(t, map[string][]byte{
		"Informe.xlsx": []byte("xlsx-bytes"),
		"notas.pdf":    []byte("pdf-bytes"),
		"legacy.XLS":   []byte("xls-bytes"),
	})

	files, err := WorkbookAttachments(raw)
	require.NoError(t, err)

	names := map[string]string{}
	for _, f := range files {
		names[f.Name] = string(f.Content)
	}
	assert.Equal(t, map[string]string{"Informe.xlsx": "xlsx-bytes", "legacy.XLS": "xls-bytes"}, names)
}

func TestUploadStoreDeduplicatesByContent(t *testing.T) {
	db := openDB(t)
	dir := t.TempDir()
	store := NewUploadStore(db, dir)
	ctx := context.Background()

	first, queued, err := store.Register(ctx, []byte("same"), "a.xlsx", internal.OriginCLI)
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Equal(t, internal.UploadPending, first.Status)
	assert.Equal(t, dir, filepath.Dir(first.Path))

	second, queued, err := store.Register(ctx, []byte("same"), "b.xlsx", internal.OriginIMAP)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "a.xlsx", second.OriginalName)

	_, _, err = store.Register(ctx, nil, "empty.xlsx", internal.OriginCLI)
	assert.Error(t, err)
}

func TestFetchAndStoreQueuesAttachments(t *testing.T) {
	db := openDB(t)
	uploads := NewUploadStore(db, t.TempDir())
	conn := fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<1@x>", Raw: buildMessage(t, map[string][]byte{"r1.xlsx": []byte("one")})},
		{Provider: "imap", MessageID: "<2@x>", Raw: buildMessage(t, map[string][]byte{"r1-copy.xlsx": []byte("one")})},
		{Provider: "imap", MessageID: "<3@x>", Raw: buildMessage(t, map[string][]byte{"r2.xls": []byte("two")})},
	}}

	svc := NewFetchService(conn, uploads, util.NewLogger("error"))
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 3, Attachments: 3, Queued: 2}, res)

	pending, err := db.ListUploadsByStatus(context.Background(), internal.UploadPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, internal.OriginIMAP, pending[0].Origin)
}
