package watchlistloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"buybot/internal/app/service"
	"buybot/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchlist = `
# token                                     chat        min usd
0x00000000000000000000000000000000000000AA  1001
0x00000000000000000000000000000000000000bb  1001  250   # whale watch
0x00000000000000000000000000000000000000aa  -2002 0.5
not-an-address                              1001
0x00000000000000000000000000000000000000cc  chat
0x00000000000000000000000000000000000000cc  1001  -5
0x00000000000000000000000000000000000000cc
`

func TestParse(t *testing.T) {
	l := NewWatchlistFileLoader("inline", logger.Nop())
	entries, err := l.parse(strings.NewReader(watchlist))
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{TokenAddress: "0x00000000000000000000000000000000000000aa", ChatID: 1001},
		{TokenAddress: "0x00000000000000000000000000000000000000bb", ChatID: 1001, MinBuyAmountUSD: 250},
		{TokenAddress: "0x00000000000000000000000000000000000000aa", ChatID: -2002, MinBuyAmountUSD: 0.5},
	}, entries)
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchlist.txt")
	content := watchlist + "0x00000000000000000000000000000000000000aa 1001 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	registry := service.NewSubscriptionRegistry(100, logger.Nop(), nil)
	added, err := NewWatchlistFileLoader(path, logger.Nop()).Seed(registry)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	subs := registry.ListTracked(1001)
	require.Len(t, subs, 2)
	for _, s := range subs {
		if s.TokenAddress == "0x00000000000000000000000000000000000000aa" {
			assert.Equal(t, 100.0, s.MinBuyAmountUSD)
		}
	}
}

func TestGetEntries_MissingFile(t *testing.T) {
	_, err := NewWatchlistFileLoader(filepath.Join(t.TempDir(), "absent.txt"), logger.Nop()).GetEntries()
	assert.Error(t, err)
}
