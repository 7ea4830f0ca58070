package opentimestamps

import (
	"bytes"
	"context"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

const (
	defaultTimeout = 15 * time.Second
	opSHA256       = 0x08
	fileVersion    = 0x01
	maxProofBytes  = 64 << 10
)

// headerMagic opens every detached timestamp (.ots) file.
var headerMagic = []byte("\x00OpenTimestamps\x00\x00Proof\x00\xbf\x89\xe2\xe8\x84\xe8\x92\x94")

// DefaultCalendars are the public aggregation calendars.
var DefaultCalendars = []string{
	"https://a.pool.opentimestamps.org",
	"https://b.pool.opentimestamps.org",
	"https://a.pool.eternitywall.com",
}

var (
	errNoCalendars       = crerr.New("no opentimestamps calendars configured")
	errCalendarTransient = crerr.New("opentimestamps calendar transient failure")
)

type ClientConfig struct {
	Calendars      []string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client submits digests to OpenTimestamps calendars and wraps the pending
// attestation they return into a detached .ots file.
type Client struct {
	http      *fasthttp.Client
	calendars []string
	timeout   time.Duration
	logger    *logging.Logger
	breaker   *resilience.CircuitBreaker
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
	calendars := make([]string, 0, len(cfg.Calendars))
	for _, c := range cfg.Calendars {
		if c = strings.TrimRight(strings.TrimSpace(c), "/"); c != "" {
			calendars = append(calendars, c)
		}
	}
	if len(calendars) == 0 {
		calendars = append(calendars, DefaultCalendars...)
	}

	return &Client{
		http: &fasthttp.Client{
			Name:         "putt-api-ots",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		calendars: calendars,
		timeout:   timeout,
		logger:    logger,
		breaker:   newBreaker(cfg.CircuitBreaker, logger),
	}
}

// Stamp hashes data with sha256, submits the hash to the first calendar that
// accepts it and returns the serialized detached timestamp.
func (c *Client) Stamp(ctx context.Context, data []byte) ([]byte, error) {
	if len(c.calendars) == 0 {
		return nil, errNoCalendars
	}
	digest := sha256.Sum256(data)

	var (
		attestation []byte
		lastErr     error
	)
	for _, calendar := range c.calendars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var submitErr error
			attestation, submitErr = c.submit(ctx, calendar, digest[:])
			return submitErr
		}, isTransient)
		if err == nil {
			c.logger.InfoContext(ctx, "digest submitted to calendar", "calendar", calendar, "attestation_bytes", len(attestation))
			return encodeDetached(digest[:], attestation), nil
		}
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			return nil, err
		}
		lastErr = err
		c.logger.WarnContext(ctx, "calendar submission failed", "calendar", calendar, "error", err)
	}
	return nil, crerr.Wrapf(lastErr, "all %d calendars failed", len(c.calendars))
}

func (c *Client) submit(ctx context.Context, calendar string, digest []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(calendar + "/digest")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("Accept", "application/vnd.opentimestamps.v1")
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBody(digest)

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("%w: %v", errCalendarTransient, err)
	}
	status := resp.StatusCode()
	body := resp.Body()
	if status == fasthttp.StatusTooManyRequests || status >= 500 {
		return nil, fmt.Errorf("%w: status=%d", errCalendarTransient, status)
	}
	if status != fasthttp.StatusOK {
		return nil, crerr.Newf("calendar status=%d", status)
	}
	if len(body) == 0 || len(body) > maxProofBytes {
		return nil, crerr.Newf("calendar returned %d byte attestation", len(body))
	}
	return bytes.Clone(body), nil
}

func encodeDetached(digest, attestation []byte) []byte {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.Write(headerMagic)
	_ = buf.WriteByte(fileVersion)
	_ = buf.WriteByte(opSHA256)
	_, _ = buf.Write(digest)
	_, _ = buf.Write(attestation)
	return bytes.Clone(buf.B)
}

// DecodeDigest returns the file digest stored in a detached timestamp.
func DecodeDigest(proof []byte) ([]byte, error) {
	head := len(headerMagic) + 2
	if len(proof) < head+sha256.Size || !bytes.HasPrefix(proof, headerMagic) {
		return nil, crerr.New("not a detached timestamp file")
	}
	if proof[len(headerMagic)] != fileVersion || proof[len(headerMagic)+1] != opSHA256 {
		return nil, crerr.New("unsupported timestamp file version or hash op")
	}
	return proof[head : head+sha256.Size], nil
}

func isTransient(err error) bool {
	return stderrors.Is(err, errCalendarTransient)
}

func newBreaker(cfg resilience.CircuitBreakerConfig, logger *logging.Logger) *resilience.CircuitBreaker {
	cfg.Name = "opentimestamps"
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		}
	}
	return resilience.NewCircuitBreakerFromConfig(cfg)
}
