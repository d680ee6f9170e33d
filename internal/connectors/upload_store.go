package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nuam/internal"
	"nuam/internal/storage"
)

// UploadStore copies workbooks into the upload directory under their content
// hash and queues them for import. The same bytes are only queued once.
type UploadStore struct {
	db        *storage.DB
	uploadDir string
}

func NewUploadStore(db *storage.DB, uploadDir string) *UploadStore {
	return &UploadStore{db: db, uploadDir: uploadDir}
}

// RegisterUpload queues the workbook at path. The returned flag is false when
// identical content was already registered.
func (s *UploadStore) RegisterUpload(ctx context.Context, path string, origin internal.UploadOrigin) (internal.UploadRow, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return internal.UploadRow{}, false, err
	}
	return s.Register(ctx, data, filepath.Base(path), origin)
}

func (s *UploadStore) Register(ctx context.Context, data []byte, originalName string, origin internal.UploadOrigin) (internal.UploadRow, bool, error) {
	if len(data) == 0 {
		return internal.UploadRow{}, false, fmt.Errorf("upload %s is empty", originalName)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return internal.UploadRow{}, false, err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".xlsx"
	}
	dest := filepath.Join(s.uploadDir, hash+ext)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return internal.UploadRow{}, false, err
		}
	}

	return s.db.UpsertUpload(ctx, dest, hash, originalName, origin)
}
