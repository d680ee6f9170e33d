package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExchanges(t *testing.T) {
	exchanges, err := ParseExchanges(" bcs:chl:clp , BVL:PER:PEN,")
	require.NoError(t, err)
	require.Len(t, exchanges, 2)
	assert.Equal(t, "bcs", exchanges[0].Tag)
	assert.Equal(t, "BCS", exchanges[0].Label)
	assert.Equal(t, "CHL", exchanges[0].CountryCode)
	assert.Equal(t, "CLP", exchanges[0].Currency)
	assert.Equal(t, "bvl", exchanges[1].Tag)
}

func TestParseExchangesRejectsBadEntries(t *testing.T) {
	_, err := ParseExchanges("bcs:CHL")
	assert.Error(t, err)

	_, err = ParseExchanges(" , ")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("IMPORT_HEADER_SCAN_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 200, cfg.ImportHeaderScanLimit)
	assert.Equal(t, "Excel NUAM", cfg.ImportSourceTag)
	assert.Len(t, cfg.Exchanges, 3)
}
