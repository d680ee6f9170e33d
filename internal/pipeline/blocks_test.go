package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBlocksThreeExchanges(t *testing.T) {
	cols := normalizeAll([]string{
		"Emisor BCS", "Ticker BCS", "Cap BCS",
		"Emisor BVC", "Ticker BVC", "Cap BVC",
		"Emisor BVL", "Ticker BVL", "Cap BVL",
	})

	blocks := ResolveBlocks(cols, testExchanges)
	require.Len(t, blocks, 3)
	for i, b := range blocks {
		assert.Equal(t, testExchanges[i].Tag, b.Exchange.Tag)
		assert.Equal(t, i*3, b.Issuer)
		assert.Equal(t, i*3+1, b.Ticker)
		assert.Equal(t, i*3+2, b.MarketCap)
	}
}

func TestResolveBlocksSearchesFartherColumns(t *testing.T) {
	cols := normalizeAll([]string{
		"Nombre", "Sector", "Ticker BCS", "Precio", "Volumen", "Capital BCS",
	})

	blocks := ResolveBlocks(cols, testExchanges)
	require.Len(t, blocks, 1)
	b := blocks[0]
	assert.Equal(t, 2, b.Ticker)
	assert.Equal(t, 0, b.Issuer, "issuer found two columns to the left")
	assert.Equal(t, 5, b.MarketCap, "cap found by tag outside the ticker's neighbourhood")
}

func TestResolveBlocksIssuerScanIsBounded(t *testing.T) {
	cols := normalizeAll([]string{"Emisor", "a", "b", "c", "Ticker BVL"})
	blocks := ResolveBlocks(cols, testExchanges)
	require.Len(t, blocks, 1)
	assert.Equal(t, -1, blocks[0].Issuer)
	assert.Equal(t, -1, blocks[0].MarketCap)
}

func TestResolveBlocksNoneWithoutTaggedTicker(t *testing.T) {
	cols := normalizeAll([]string{"Ticker", "Emisor", "Cap BCS"})
	assert.Empty(t, ResolveBlocks(cols, testExchanges))
	assert.False(t, hasTaggedTicker(cols, testExchanges))
}
