package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuam/internal/storage"
	"nuam/internal/util"
)

func TestSeedCountriesIsIdempotent(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "nuam.db"))
	require.NoError(t, err)
	defer db.Close()

	svc := NewSeedService(db, util.NewLogger("error"))
	ctx := context.Background()

	first, err := svc.SeedCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 3, Updated: 0, Total: 3}, first)

	second, err := svc.SeedCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 0, Updated: 3, Total: 3}, second)

	last, err := db.GetMetadata("countries.last_seed")
	require.NoError(t, err)
	assert.NotNil(t, last)
}
