package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"buybot/internal/domain/entity"
	dexentity "buybot/internal/entity"
)

// fakeMarketClient serves canned pairs per token and can be switched to fail.
type fakeMarketClient struct {
	mu         sync.Mutex
	pairs      map[string][]dexentity.PairData
	byPair     map[string]*dexentity.PairData
	err        error
	batchErr   error
	calls      int
	batchCalls [][]string
	delay      time.Duration
}

func newFakeMarketClient() *fakeMarketClient {
	return &fakeMarketClient{
		pairs:  make(map[string][]dexentity.PairData),
		byPair: make(map[string]*dexentity.PairData),
	}
}

func (f *fakeMarketClient) set(token string, pairs ...dexentity.PairData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[strings.ToLower(token)] = pairs
}

func (f *fakeMarketClient) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeMarketClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeMarketClient) GetTokenPairs(ctx context.Context, token string) ([]dexentity.PairData, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pairs[strings.ToLower(token)], nil
}

func (f *fakeMarketClient) GetPairByAddress(ctx context.Context, chainID, pairAddress string) (*dexentity.PairData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byPair[strings.ToLower(pairAddress)], nil
}

func (f *fakeMarketClient) SearchPairs(ctx context.Context, query string) ([]dexentity.PairData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []dexentity.PairData
	for _, ps := range f.pairs {
		for _, p := range ps {
			if strings.EqualFold(p.BaseToken.Symbol, query) {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (f *fakeMarketClient) GetTokenPairsByAddresses(ctx context.Context, chainID string, tokens []string) ([]dexentity.PairData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), tokens...))
	if f.err != nil {
		return nil, f.err
	}
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	var out []dexentity.PairData
	for _, t := range tokens {
		out = append(out, f.pairs[t]...)
	}
	return out, nil
}

func monadPair(token, pairAddr string, buys int, volume, liquidity float64) dexentity.PairData {
	v := volume
	return dexentity.PairData{
		ChainID:     "monad",
		DexID:       "kuru",
		PairAddress: pairAddr,
		BaseToken:   dexentity.DEXToken{Address: token, Symbol: "TT", Name: "Test Token"},
		QuoteToken:  dexentity.DEXToken{Symbol: "WMON"},
		PriceUsd:    "0.5",
		Txns:        &dexentity.PairTxns{M5: &dexentity.TxnSummary{Buys: buys, Sells: 2}},
		Volume:      &dexentity.PairVolume{M5: &v},
		Liquidity:   &dexentity.DEXLiquidity{Usd: liquidity},
	}
}

// quotePair is a pool where token is the quote side.
func quotePair(token, pairAddr string, buys int, volume, liquidity float64) dexentity.PairData {
	p := monadPair("0x00000000000000000000000000000000000000ee", pairAddr, buys, volume, liquidity)
	p.BaseToken.Symbol = "OTHER"
	p.QuoteToken = dexentity.DEXToken{Address: token, Symbol: "TT"}
	return p
}

// manualClock is a settable time source.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedSnapshots returns queued snapshots per token in order; an empty queue means not found.
type scriptedSnapshots struct {
	mu    sync.Mutex
	queue map[string][]entity.Snapshot
}

func newScriptedSnapshots() *scriptedSnapshots {
	return &scriptedSnapshots{queue: make(map[string][]entity.Snapshot)}
}

func (s *scriptedSnapshots) push(token string, buys int, volume float64) {
	s.pushFrom(token, "0xpool", buys, volume)
}

func (s *scriptedSnapshots) pushFrom(token, pool string, buys int, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.ToLower(token)
	s.queue[token] = append(s.queue[token], entity.Snapshot{
		TokenAddress: token,
		PairAddress:  pool,
		BaseSymbol:   "TT",
		BaseName:     "Test Token",
		Buys:         buys,
		Sells:        1,
		Volume:       volume,
	})
}

func (s *scriptedSnapshots) Fetch(ctx context.Context, token string) (entity.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue[token]
	if len(q) == 0 {
		return entity.Snapshot{}, false
	}
	s.queue[token] = q[1:]
	return q[0], true
}

func (s *scriptedSnapshots) FetchPair(ctx context.Context, pair string) (entity.Snapshot, bool) {
	return entity.Snapshot{}, false
}

func (s *scriptedSnapshots) Warm(ctx context.Context, tokens []string) int { return 0 }

func (s *scriptedSnapshots) Peek(token string) (entity.Snapshot, bool) {
	return entity.Snapshot{}, false
}

func (s *scriptedSnapshots) Search(ctx context.Context, q string) ([]entity.Snapshot, error) {
	return nil, nil
}

func (s *scriptedSnapshots) Clear() {}

// recordingDispatcher captures everything handed to the outbound boundary.
type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []entity.BuyAlert
	events []entity.BuyEvent
	reject bool
}

func (d *recordingDispatcher) Notify(a entity.BuyAlert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.alerts = append(d.alerts, a)
	return true
}

func (d *recordingDispatcher) Publish(e entity.BuyEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reject {
		return false
	}
	d.events = append(d.events, e)
	return true
}
