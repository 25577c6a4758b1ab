package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buybot/internal/pkg/metrics"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonRaw = jsoniter.RawMessage

const (
	DefaultAPIBaseURL = "https://api.telegram.org"
	parseModeV2       = "MarkdownV2"

	// Telegram allows roughly 30 messages per second per bot.
	messagesPerSecond = 30
	requestTimeout    = 15 * time.Second
	longPollSlack     = 10 * time.Second
)

// APIError is a Bot API response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %ds)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client is a minimal Bot API client over fasthttp.
type Client struct {
	client  *fasthttp.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClient creates a Bot API client for token. apiBaseURL defaults to the public endpoint.
func NewClient(apiBaseURL, token string, logger *zap.Logger, m *metrics.Metrics) *Client {
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		client:  &fasthttp.Client{Name: "buybot"},
		baseURL: fmt.Sprintf("%s/bot%s", strings.TrimRight(apiBaseURL, "/"), token),
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), messagesPerSecond),
		logger:  logger.Named("TelegramClient"),
		metrics: metrics.OrNop(m),
	}
}

// SendMessage posts a text message.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, "sendMessage", req, nil, requestTimeout)
}

// SendPhoto posts a photo by URL with a caption.
func (c *Client) SendPhoto(ctx context.Context, req SendPhotoRequest) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.call(ctx, "sendPhoto", req, nil, requestTimeout)
}

// GetUpdates long-polls for message updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	var updates []Update
	req := getUpdatesRequest{Offset: offset, Timeout: timeoutSeconds, AllowedUpdates: []string{"message"}}
	timeout := time.Duration(timeoutSeconds)*time.Second + longPollSlack
	if err := c.call(ctx, "getUpdates", req, &updates, timeout); err != nil {
		return nil, err
	}
	return updates, nil
}

// call POSTs payload as JSON to method and decodes the result into out when non-nil.
func (c *Client) call(ctx context.Context, method string, payload, out any, timeout time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(c.baseURL + "/" + method)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBodyRaw(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	start := time.Now()
	err = c.client.DoDeadline(req, resp, deadline)
	c.metrics.UpstreamLatency.WithLabelValues("telegram_" + method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("telegram_"+method, "transport_error").Inc()
		return fmt.Errorf("telegram %s request: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		c.metrics.UpstreamRequests.WithLabelValues("telegram_"+method, "bad_status").Inc()
		c.logger.Warn("Failed to decode Telegram response",
			zap.String("method", method), zap.Int("statusCode", resp.StatusCode()), zap.Error(err))
		return fmt.Errorf("telegram %s: status %d: decode response: %w", method, resp.StatusCode(), err)
	}
	if !apiResp.OK {
		c.metrics.UpstreamRequests.WithLabelValues("telegram_"+method, "bad_status").Inc()
		apiErr := &APIError{Method: method, Code: apiResp.ErrorCode, Description: apiResp.Description}
		if apiResp.Parameters != nil {
			apiErr.RetryAfter = apiResp.Parameters.RetryAfter
		}
		return apiErr
	}
	c.metrics.UpstreamRequests.WithLabelValues("telegram_"+method, "ok").Inc()

	if out != nil && len(apiResp.Result) > 0 {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}
