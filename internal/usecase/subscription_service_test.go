package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"

	"github.com/proofofputt/putt-api/internal/domain/player"
	"github.com/proofofputt/putt-api/internal/domain/subscription"
	"github.com/proofofputt/putt-api/internal/infrastructure/repository/memory"
	"github.com/proofofputt/putt-api/internal/platform/logging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

type mockPaymentGateway struct {
	mock.Mock
}

func (m *mockPaymentGateway) CreateOrder(ctx context.Context, order PaymentOrder) (PaymentOrderResult, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(PaymentOrderResult), args.Error(1)
}

// inlineSubmitter runs tasks on the caller goroutine so assertions see their effects.
type inlineSubmitter struct {
	ran int
}

func (s *inlineSubmitter) Submit(task func()) error {
	s.ran++
	task()
	return nil
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newSubscriptionService(env *testEnv, gateway PaymentGateway, submitter TaskSubmitter) *SubscriptionService {
	svc := NewSubscriptionService(memory.NewSubscriptionRepository(env.store), env.players, gateway, submitter, env.notes, SubscriptionConfig{
		WebhookSecret: testWebhookSecret,
		FrontendURL:   "https://app.proofofputt.com/",
		MaxRetries:    3,
	}, logging.NewNop())
	svc.now = env.clock
	return svc
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt"}`)
	sig := sign(body)
	require.True(t, VerifySignature(body, sig, testWebhookSecret))
	require.True(t, VerifySignature(body, sig[len("sha256="):], testWebhookSecret))
	require.False(t, VerifySignature(body, sig, "other"))
	require.False(t, VerifySignature(body, "not-hex", testWebhookSecret))
	require.False(t, VerifySignature(body, "", testWebhookSecret))
}

func TestSubscriptionService_CreateCheckout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Buyer", "buyer@example.com")
	gateway := &mockPaymentGateway{}
	svc := newSubscriptionService(env, gateway, nil)
	ctx := t.Context()

	gateway.On("CreateOrder", mock.Anything, mock.MatchedBy(func(o PaymentOrder) bool {
		return o.Amount == "21.00" &&
			o.CustomerEmail == "buyer@example.com" &&
			o.RedirectURL == "https://app.proofofputt.com/settings/subscription?checkout=success" &&
			o.Metadata["player_id"] == strconv.FormatInt(p.ID, 10)
	})).Return(PaymentOrderResult{OrderID: "ord_1", CheckoutURL: "https://pay.example/ord_1"}, nil).Once()

	checkout, err := svc.CreateCheckout(ctx, p.ID, "Annual")
	require.NoError(t, err)
	require.Equal(t, "ord_1", checkout.OrderID)
	require.Equal(t, subscription.IntervalAnnual, checkout.Interval)
	gateway.AssertExpectations(t)

	_, err = svc.CreateCheckout(ctx, p.ID, "weekly")
	require.ErrorIs(t, err, ErrInvalidInput)

	gateway.On("CreateOrder", mock.Anything, mock.Anything).Return(PaymentOrderResult{}, errors.New("502 from provider")).Once()
	_, err = svc.CreateCheckout(ctx, p.ID, "")
	require.ErrorIs(t, err, ErrDependencyUnavailable)

	_, err = newSubscriptionService(env, nil, nil).CreateCheckout(ctx, p.ID, "monthly")
	require.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestSubscriptionService_WebhookActivatesAndDedups(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	p := env.addPlayer(t, "Buyer", "buyer@example.com")
	submitter := &inlineSubmitter{}
	svc := newSubscriptionService(env, nil, submitter)
	ctx := t.Context()

	body := []byte(`{"id":"evt_1","type":"order.paid","data":{"orderId":"ord_1","customer":{"id":"cus_9"},` +
		`"metadata":{"player_id":"` + strconv.FormatInt(p.ID, 10) + `","interval":"annual"}}}`)

	_, err := svc.HandleWebhook(ctx, body, "sha256=deadbeef")
	require.ErrorIs(t, err, ErrUnauthorized)

	ack, err := svc.HandleWebhook(ctx, body, sign(body))
	require.NoError(t, err)
	require.Equal(t, "evt_1", ack.EventID)
	require.False(t, ack.Duplicate)
	require.Equal(t, 1, submitter.ran)

	state, err := svc.Status(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusActive, state.Status)
	require.NotNil(t, state.Tier)
	require.Equal(t, player.TierPremium, *state.Tier)
	require.NotNil(t, state.PeriodEnd)
	require.Equal(t, testNow.AddDate(1, 0, 0), *state.PeriodEnd)
	require.NotNil(t, state.ZapriteCustomerID)
	require.Equal(t, "cus_9", *state.ZapriteCustomerID)
	require.Len(t, env.notes.For(p.ID), 1)

	ack, err = svc.HandleWebhook(ctx, body, sign(body))
	require.NoError(t, err)
	require.True(t, ack.Duplicate)
	require.Equal(t, 1, submitter.ran)

	cancel := []byte(`{"id":"evt_2","type":"subscription.expired","data":{"customer":{"id":"cus_9"}}}`)
	_, err = svc.HandleWebhook(ctx, cancel, sign(cancel))
	require.NoError(t, err)

	state, err = svc.Status(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusCanceled, state.Status)
	require.Nil(t, state.Tier)

	stored, _, err := env.players.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, player.TierBasic, stored.MembershipTier)
}

func TestSubscriptionService_WebhookRejectsMalformed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newSubscriptionService(env, nil, nil)
	ctx := t.Context()

	notJSON := []byte("not json")
	_, err := svc.HandleWebhook(ctx, notJSON, sign(notJSON))
	require.ErrorIs(t, err, ErrInvalidInput)

	noType := []byte(`{"id":"evt_3"}`)
	_, err = svc.HandleWebhook(ctx, noType, sign(noType))
	require.ErrorIs(t, err, ErrInvalidInput)

	unconfigured := NewSubscriptionService(memory.NewSubscriptionRepository(env.store), env.players, nil, nil, nil, SubscriptionConfig{}, logging.NewNop())
	_, err = unconfigured.HandleWebhook(ctx, noType, sign(noType))
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSubscriptionService_RetryFailedWebhook(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	svc := newSubscriptionService(env, nil, nil)
	ctx := t.Context()

	body := []byte(`{"id":"evt_late","type":"payment.succeeded","data":{"customer":{"email":"Late@Example.com"}}}`)
	ack, err := svc.HandleWebhook(ctx, body, sign(body))
	require.NoError(t, err)
	require.False(t, ack.Duplicate)

	retried, err := svc.RetryFailed(ctx)
	require.NoError(t, err)
	require.Zero(t, retried)

	p := env.addPlayer(t, "Late", "late@example.com")
	retried, err = svc.RetryFailed(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, retried)

	state, err := svc.Status(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusActive, state.Status)

	retried, err = svc.RetryFailed(ctx)
	require.NoError(t, err)
	require.Zero(t, retried)
}
