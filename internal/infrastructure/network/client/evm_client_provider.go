package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"

	"github.com/patrickmn/go-cache"
)

const (
	defaultProviderConnectionTimeout = 10 * time.Second
	resolvedTokenTTL                 = 6 * time.Hour
)

// tokenResolverProvider dials lazily on first use and caches resolved metadata.
// Token metadata is immutable in practice, so entries live for hours.
type tokenResolverProvider struct {
	netDef            entity.NetworkDefinition
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
	logger            port.Logger

	mu     sync.Mutex
	client *EVMClient
	tokens *cache.Cache
}

// NewTokenResolverProvider returns a port.TokenMetadataResolver for netDef.
// No connection is attempted until the first ResolveToken call.
func NewTokenResolverProvider(netDef entity.NetworkDefinition, rpcCallTimeout time.Duration, logger port.Logger) port.TokenMetadataResolver {
	return &tokenResolverProvider{
		netDef:            netDef,
		connectionTimeout: defaultProviderConnectionTimeout,
		rpcCallTimeout:    rpcCallTimeout,
		logger:            logger,
		tokens:            cache.New(resolvedTokenTTL, time.Hour),
	}
}

func (p *tokenResolverProvider) getClient() (*EVMClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	p.logger.Info("Creating new EVM client", "network", p.netDef.Name, "rpc_primary", p.netDef.PrimaryRPCURL)
	c, err := NewEVMClient(p.netDef, p.connectionTimeout, p.rpcCallTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", p.netDef.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", p.netDef.Name, err)
	}
	p.client = c
	return c, nil
}

// ResolveToken returns cached metadata or reads it from chain.
func (p *tokenResolverProvider) ResolveToken(ctx context.Context, tokenAddress string) (entity.TokenInfo, error) {
	key := strings.ToLower(tokenAddress)
	if v, ok := p.tokens.Get(key); ok {
		return v.(entity.TokenInfo), nil
	}
	c, err := p.getClient()
	if err != nil {
		return entity.TokenInfo{}, err
	}
	info, err := c.ResolveToken(ctx, tokenAddress)
	if err != nil {
		p.logger.Warn("Token metadata lookup failed", "token", tokenAddress, "error", err)
		return entity.TokenInfo{}, err
	}
	p.tokens.SetDefault(key, info)
	p.logger.Debug("Resolved token metadata", "token", key, "symbol", info.Symbol, "decimals", info.Decimals)
	return info, nil
}
