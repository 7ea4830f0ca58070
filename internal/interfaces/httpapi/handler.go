package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/proofofputt/putt-api/internal/domain/user"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/proofofputt/putt-api/internal/usecase"
)

const maxBodyBytes = 1 << 20

// Services groups the usecases the handlers call into.
type Services struct {
	Auth          *usecase.AuthService
	Players       *usecase.PlayerService
	Sessions      *usecase.SessionService
	Duels         *usecase.DuelService
	Leagues       *usecase.LeagueService
	Leaderboards  *usecase.LeaderboardService
	Invitations   *usecase.InvitationService
	Notifications *usecase.NotificationService
	Analytics     *usecase.AnalyticsService
	Subscriptions *usecase.SubscriptionService
	Certificates  *usecase.CertificateService
}

// Pinger reports database readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StreamRecorder counts open notification streams.
type StreamRecorder interface {
	StreamOpened()
	StreamClosed()
}

type HandlerOptions struct {
	Heartbeat      time.Duration
	ExposeErrors   bool
	DB             Pinger
	StreamRecorder StreamRecorder
}

type Handler struct {
	svc       Services
	opts      HandlerOptions
	logger    *logging.Logger
	validator *validator.Validate

	streamsDone chan struct{}
	closeOnce   sync.Once
}

func NewHandler(svc Services, opts HandlerOptions, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}

	return &Handler{
		svc:       svc,
		opts:      opts,
		logger:    logger,
		validator: validator.New(),

		streamsDone: make(chan struct{}),
	}
}

// CloseStreams ends every open notification stream. http.Server.Shutdown
// does not cancel in-flight requests, so register this with RegisterOnShutdown.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streamsDone) })
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when every field of dst is optional.
func (h *Handler) decode(ctx context.Context, r *http.Request, dst any) error {
	decoder := sonic.ConfigDefault.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

// fail logs err at a level matching its HTTP class and writes the envelope.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if mapError(err).HTTPStatus >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", "error", err)
	} else {
		h.logger.WarnContext(ctx, op+" failed", "error", err)
	}
	writeErrorDetail(ctx, w, err, h.opts.ExposeErrors)
}

func (h *Handler) principal(ctx context.Context, w http.ResponseWriter) (user.Principal, bool) {
	p, ok := principalFromContext(ctx)
	if !ok {
		writeError(ctx, w, fmt.Errorf("%w: principal is missing from request context", usecase.ErrUnauthorized))
		return user.Principal{}, false
	}
	return p, true
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", usecase.ErrInvalidInput, name)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidInput, name)
	}
	return v, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", usecase.ErrInvalidInput, name)
	}
	return v, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return v
}
