package port

import (
	"context"

	"buybot/internal/domain/entity"
	dexentity "buybot/internal/entity"
)

// MarketDataClient is the raw DexScreener surface. Results are not filtered by chain.
type MarketDataClient interface {
	GetTokenPairs(ctx context.Context, tokenAddress string) ([]dexentity.PairData, error)
	GetPairByAddress(ctx context.Context, chainID, pairAddress string) (*dexentity.PairData, error)
	SearchPairs(ctx context.Context, query string) ([]dexentity.PairData, error)
	GetTokenPairsByAddresses(ctx context.Context, chainID string, tokenAddresses []string) ([]dexentity.PairData, error)
}

// SnapshotProvider returns the best same-chain snapshot for a token, reusing recent reads.
// The bool is false when no usable snapshot exists this cycle; errors never reach the caller.
type SnapshotProvider interface {
	Fetch(ctx context.Context, tokenAddress string) (entity.Snapshot, bool)
	FetchPair(ctx context.Context, pairAddress string) (entity.Snapshot, bool)
	Warm(ctx context.Context, tokenAddresses []string) int
	Peek(tokenAddress string) (entity.Snapshot, bool)
	Search(ctx context.Context, query string) ([]entity.Snapshot, error)
	Clear()
}

// TokenMetadataResolver reads token metadata from chain.
type TokenMetadataResolver interface {
	ResolveToken(ctx context.Context, tokenAddress string) (entity.TokenInfo, error)
}
