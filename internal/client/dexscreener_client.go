package client

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"buybot/internal/app/port"
	domain "buybot/internal/domain/entity"
	"buybot/internal/entity"
	"buybot/internal/pkg/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	endpointTokens   = "tokens"
	endpointPairs    = "pairs"
	endpointSearch   = "search"
	endpointTokensV1 = "tokens_v1"
)

// Config holds DEX Screener client settings.
type Config struct {
	BaseURL             string
	Timeout             time.Duration
	MaxTokensPerRequest int
	RequestsPerMinute   int
}

// dexScreenerClientImpl is the fasthttp implementation of port.MarketDataClient.
type dexScreenerClientImpl struct {
	client              *fasthttp.Client
	baseURL             string
	timeout             time.Duration
	logger              *zap.Logger
	maxTokensPerRequest int
	limiter             *rate.Limiter
	metrics             *metrics.Metrics
}

// NewDEXScreenerClient creates a client. A non-positive RequestsPerMinute disables client-side limiting.
func NewDEXScreenerClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) port.MarketDataClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dexScreenerClientImpl{
		client:              &fasthttp.Client{Name: "buybot"},
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		timeout:             cfg.Timeout,
		logger:              logger.Named("DEXScreenerClient"),
		maxTokensPerRequest: cfg.MaxTokensPerRequest,
		limiter:             limiter,
		metrics:             metrics.OrNop(m),
	}
}

// GetTokenPairs returns every pair containing the token, across all chains.
func (c *dexScreenerClientImpl) GetTokenPairs(ctx context.Context, tokenAddress string) ([]entity.PairData, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("tokenAddress cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(tokenAddress))
	body, err := c.get(ctx, endpointTokens, requestURL)
	if err != nil {
		return nil, err
	}
	return c.decodePairs(body, requestURL)
}

// GetPairByAddress returns a single pair, or nil when the upstream knows nothing about it.
func (c *dexScreenerClientImpl) GetPairByAddress(ctx context.Context, chainID, pairAddress string) (*entity.PairData, error) {
	if chainID == "" || pairAddress == "" {
		return nil, fmt.Errorf("chainID and pairAddress cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", c.baseURL, url.PathEscape(chainID), url.PathEscape(pairAddress))
	body, err := c.get(ctx, endpointPairs, requestURL)
	if err != nil {
		return nil, err
	}

	var wrapper entity.DEXTokenPair
	if err := json.Unmarshal(body, &wrapper); err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener pair response",
			zap.String("url", requestURL), zap.ByteString("responseBody", body), zap.Error(err))
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrUpstreamUnavailable, requestURL, err)
	}
	if wrapper.Pair != nil {
		return wrapper.Pair, nil
	}
	if len(wrapper.Pairs) > 0 {
		return &wrapper.Pairs[0], nil
	}
	return nil, nil
}

// SearchPairs runs a free-text search (symbol, name or address).
func (c *dexScreenerClientImpl) SearchPairs(ctx context.Context, query string) ([]entity.PairData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/latest/dex/search?q=%s", c.baseURL, url.QueryEscape(query))
	body, err := c.get(ctx, endpointSearch, requestURL)
	if err != nil {
		return nil, err
	}
	return c.decodePairs(body, requestURL)
}

// GetTokenPairsByAddresses fetches pairs for up to maxTokensPerRequest tokens on one chain in a single call.
func (c *dexScreenerClientImpl) GetTokenPairsByAddresses(ctx context.Context, chainID string, tokenAddresses []string) ([]entity.PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if c.maxTokensPerRequest > 0 && len(tokenAddresses) > c.maxTokensPerRequest {
		c.logger.Warn("Number of token addresses exceeds maxTokensPerRequest",
			zap.Int("requestedCount", len(tokenAddresses)),
			zap.Int("maxAllowed", c.maxTokensPerRequest))
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.maxTokensPerRequest)
	}

	requestURL := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, url.PathEscape(chainID), strings.Join(tokenAddresses, ","))
	body, err := c.get(ctx, endpointTokensV1, requestURL)
	if err != nil {
		return nil, err
	}
	return c.decodePairs(body, requestURL)
}

// get performs a rate-limited GET and returns a copy of the body of a 200 response.
func (c *dexScreenerClientImpl) get(ctx context.Context, endpoint, requestURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrUpstreamUnavailable, err)
	}

	c.logger.Debug("Requesting DEX Screener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	start := time.Now()
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.DoTimeout(req, resp, c.timeout)
	}
	c.metrics.UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(endpoint, "transport_error").Inc()
		c.logger.Warn("Failed to execute request to DEX Screener", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("%w: request %s: %v", domain.ErrUpstreamUnavailable, requestURL, err)
	}

	body := append([]byte(nil), resp.Body()...)
	if resp.StatusCode() != fasthttp.StatusOK {
		c.metrics.UpstreamRequests.WithLabelValues(endpoint, "bad_status").Inc()
		c.logger.Warn("DEX Screener API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", body),
		)
		return nil, fmt.Errorf("%w: %s returned status %d", domain.ErrUpstreamUnavailable, requestURL, resp.StatusCode())
	}

	c.metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

// decodePairs accepts both the wrapped {"pairs": [...]} object and a bare array of pairs.
func (c *dexScreenerClientImpl) decodePairs(body []byte, requestURL string) ([]entity.PairData, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var directPairs []entity.PairData
		if err := json.Unmarshal(trimmed, &directPairs); err != nil {
			c.logger.Error("Failed to unmarshal DEX Screener response into []PairData",
				zap.String("url", requestURL), zap.ByteString("responseBody", body), zap.Error(err))
			return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrUpstreamUnavailable, requestURL, err)
		}
		return directPairs, nil
	}

	var wrapper entity.DEXTokenPair
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response (wrapped object)",
			zap.String("url", requestURL), zap.ByteString("responseBody", body), zap.Error(err))
		return nil, fmt.Errorf("%w: decode %s: %v", domain.ErrUpstreamUnavailable, requestURL, err)
	}
	if wrapper.Pairs == nil && wrapper.Pair != nil {
		return []entity.PairData{*wrapper.Pair}, nil
	}
	c.logger.Debug("Decoded DEX Screener response", zap.String("url", requestURL), zap.Int("pairCount", len(wrapper.Pairs)))
	return wrapper.Pairs, nil
}
