package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	domain "buybot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tokenPairsBody = `{
  "schemaVersion": "1.0.0",
  "pairs": [
    {
      "chainId": "monad",
      "dexId": "kuru",
      "url": "https://dexscreener.com/monad/0xpair1",
      "pairAddress": "0xPair1",
      "baseToken": {"address": "0xToken", "name": "Test Token", "symbol": "TT"},
      "quoteToken": {"address": "0xwmon", "name": "Wrapped MON", "symbol": "WMON"},
      "priceUsd": "0.00012345",
      "txns": {"m5": {"buys": 10, "sells": 4}, "h24": {"buys": 100, "sells": 50}},
      "volume": {"m5": 1000.5, "h24": 50000},
      "priceChange": {"h24": -12.5},
      "liquidity": {"usd": 25000},
      "marketCap": 1200000,
      "info": {"imageUrl": "https://img/tt.png"}
    }
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *dexScreenerClientImpl) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewDEXScreenerClient(Config{
		BaseURL:             srv.URL + "/",
		Timeout:             2 * time.Second,
		MaxTokensPerRequest: 3,
	}, zap.NewNop(), nil)
	return srv, c.(*dexScreenerClientImpl)
}

func TestGetTokenPairs(t *testing.T) {
	var path atomic.Value
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tokenPairsBody))
	})

	pairs, err := c.GetTokenPairs(context.Background(), "0xToken")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "/latest/dex/tokens/0xToken", path.Load())

	p := pairs[0]
	assert.Equal(t, "monad", p.ChainID)
	require.NotNil(t, p.Txns)
	require.NotNil(t, p.Txns.M5)
	assert.Equal(t, 10, p.Txns.M5.Buys)
	require.NotNil(t, p.Volume.M5)
	assert.InDelta(t, 1000.5, *p.Volume.M5, 1e-9)
	require.NotNil(t, p.Info)
	assert.Equal(t, "https://img/tt.png", p.Info.ImageURL)
}

func TestGetTokenPairs_NullPairs(t *testing.T) {
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":null}`))
	})

	pairs, err := c.GetTokenPairs(context.Background(), "0xnothing")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestGetTokenPairs_UpstreamFailure(t *testing.T) {
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetTokenPairs(context.Background(), "0xToken")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestGetTokenPairs_BadJSON(t *testing.T) {
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"pairs": [`))
	})

	_, err := c.GetTokenPairs(context.Background(), "0xToken")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestGetPairByAddress(t *testing.T) {
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest/dex/pairs/monad/0xpair1" {
			_, _ = w.Write([]byte(`{"schemaVersion":"1.0.0","pairs":null,"pair":null}`))
			return
		}
		body := strings.Replace(tokenPairsBody, `"pairs": [`, `"pair": `, 1)
		body = strings.Replace(body, "}\n  ]\n}", "}\n}", 1)
		_, _ = w.Write([]byte(body))
	})

	pair, err := c.GetPairByAddress(context.Background(), "monad", "0xpair1")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "0xPair1", pair.PairAddress)

	missing, err := c.GetPairByAddress(context.Background(), "monad", "0xunknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSearchPairs_EscapesQuery(t *testing.T) {
	var query atomic.Value
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(tokenPairsBody))
	})

	pairs, err := c.SearchPairs(context.Background(), " TT / WMON ")
	require.NoError(t, err)
	assert.Len(t, pairs, 1)
	assert.Equal(t, "TT / WMON", query.Load())
}

func TestGetTokenPairsByAddresses(t *testing.T) {
	var path atomic.Value
	_, c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte(`[{"chainId":"monad","pairAddress":"0xa","baseToken":{"address":"0x1"},"txns":{"m5":{"buys":1,"sells":0}},"volume":{"m5":5}}]`))
	})

	pairs, err := c.GetTokenPairsByAddresses(context.Background(), "monad", []string{"0x1", "0x2"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "/tokens/v1/monad/0x1,0x2", path.Load())

	_, err = c.GetTokenPairsByAddresses(context.Background(), "monad", []string{"a", "b", "c", "d"})
	assert.Error(t, err)

	_, err = c.GetTokenPairsByAddresses(context.Background(), "monad", nil)
	assert.Error(t, err)
}

func TestRateLimiterRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(tokenPairsBody))
	}))
	defer srv.Close()

	c := NewDEXScreenerClient(Config{BaseURL: srv.URL, Timeout: time.Second, RequestsPerMinute: 1}, zap.NewNop(), nil)

	_, err := c.GetTokenPairs(context.Background(), "0xToken")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GetTokenPairs(ctx, "0xToken")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
