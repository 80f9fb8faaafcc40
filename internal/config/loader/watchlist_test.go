package loader

import (
	"os"
	"path/filepath"
	"testing"

	"tpush/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWatchlistFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWatchlist_PlainSymbolsNormalizedAndSorted(t *testing.T) {
	path := writeWatchlistFile(t, `
symbols:
  - eth-usdt
  - BTCUSDT
  - btcusdt
`)
	w, err := NewWatchlist(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, w.Symbols())
	for _, entry := range w.Entries() {
		assert.Empty(t, entry.Scope, entry.Symbol)
	}
}

func TestWatchlist_EntryWithProviderScope(t *testing.T) {
	path := writeWatchlistFile(t, `
symbols:
  - BTCUSDT
  - symbol: ETHUSDT
    providers: [technical, ml, technical]
`)
	w, err := NewWatchlist(path)
	require.NoError(t, err)

	entries := w.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "BTCUSDT", entries[0].Symbol)
	assert.Empty(t, entries[0].Scope)
	assert.Equal(t, "ETHUSDT", entries[1].Symbol)
	// 去重后保持声明顺序
	assert.Equal(t, []signal.ProviderKind{signal.ProviderTechnical, signal.ProviderML}, entries[1].Scope)
}

func TestWatchlist_UnknownProviderFailsLoad(t *testing.T) {
	path := writeWatchlistFile(t, `
symbols:
  - symbol: BTCUSDT
    providers: [oracle]
`)
	_, err := NewWatchlist(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestWatchlist_EmptyListFailsLoad(t *testing.T) {
	path := writeWatchlistFile(t, "symbols: []\n")
	_, err := NewWatchlist(path)
	require.Error(t, err)
}

func TestStaticWatchlist_NormalizesInlineSymbols(t *testing.T) {
	w := StaticWatchlist([]string{"sol-usdt", "SOLUSDT", "bnbusdt"})
	assert.Equal(t, []string{"BNBUSDT", "SOLUSDT"}, w.Symbols())
}
