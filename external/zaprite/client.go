package zaprite

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/resilience"
	"github.com/proofofputt/putt-api/internal/usecase"
	"github.com/valyala/bytebufferpool"
)

const (
	defaultBaseURL = "https://api.zaprite.com"
	defaultTimeout = 10 * time.Second
	defaultBackoff = 500 * time.Millisecond
)

var errZapriteTransient = crerr.New("zaprite transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	BaseBackoff    time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client creates hosted checkout orders with the Zaprite REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	breaker    *resilience.CircuitBreaker
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    backoff,
		logger:     logger,
		breaker:    newBreaker(cfg.CircuitBreaker, logger),
	}
}

type orderRequest struct {
	Amount        string         `json:"amount"`
	Currency      string         `json:"currency"`
	Label         string         `json:"label"`
	RedirectURL   string         `json:"redirectUrl,omitempty"`
	CustomerEmail string         `json:"customerEmail,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (c *Client) CreateOrder(ctx context.Context, order usecase.PaymentOrder) (usecase.PaymentOrderResult, error) {
	if c.apiKey == "" {
		return usecase.PaymentOrderResult{}, crerr.New("zaprite api key is not configured")
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	encoded, err := sonic.Marshal(orderRequest{
		Amount:        order.Amount,
		Currency:      order.Currency,
		Label:         order.Label,
		RedirectURL:   order.RedirectURL,
		CustomerEmail: order.CustomerEmail,
		Metadata:      order.Metadata,
	})
	if err != nil {
		return usecase.PaymentOrderResult{}, crerr.Wrap(err, "marshal zaprite order")
	}
	_, _ = buf.Write(encoded)

	var raw []byte
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		raw, callErr = c.post(ctx, "/v1/order", buf.B)
		return callErr
	}, isTransient)
	if err != nil {
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.WarnContext(ctx, "zaprite circuit breaker rejected request")
		}
		return usecase.PaymentOrderResult{}, err
	}

	var decoded map[string]any
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return usecase.PaymentOrderResult{}, crerr.Wrap(err, "decode zaprite order response")
	}
	result := usecase.PaymentOrderResult{
		OrderID:     firstString(decoded, "id", "orderId"),
		CheckoutURL: firstString(decoded, "checkoutUrl", "url", "hostedUrl", "paymentUrl"),
		Raw:         decoded,
	}
	c.logger.InfoContext(ctx, "zaprite order created", "order_id", result.OrderID)
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		raw, err := c.once(ctx, path, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !isTransient(err) || attempt == c.maxRetries {
			break
		}

		wait := c.backoff << attempt
		c.logger.WarnContext(ctx, "zaprite request failed, retrying", "attempt", attempt+1, "backoff_ms", wait.Milliseconds(), "error", err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, crerr.Wrap(err, "build zaprite request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", errZapriteTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", errZapriteTransient, err)
	}
	if resp.StatusCode/100 == 2 {
		return raw, nil
	}
	if isRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("%w: status=%d body=%s", errZapriteTransient, resp.StatusCode, abbreviate(raw))
	}
	return nil, crerr.Newf("zaprite status=%d body=%s", resp.StatusCode, abbreviate(raw))
}

func isTransient(err error) bool {
	return stderrors.Is(err, errZapriteTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func abbreviate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}

func newBreaker(cfg resilience.CircuitBreakerConfig, logger *logging.Logger) *resilience.CircuitBreaker {
	cfg.Name = "zaprite"
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		}
	}
	return resilience.NewCircuitBreakerFromConfig(cfg)
}
