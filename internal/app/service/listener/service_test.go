package listener

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/intopays/subpay/internal/app/service/payment"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/config"
	"github.com/intopays/subpay/pkg/types"
)

type stubProvider struct {
	payment.Provider
	event        *payment.WebhookEvent
	decodeErr    error
	signatureErr error
	verified     int
}

func (s *stubProvider) VerifyWebhookSignature(_ []byte, _ string) error {
	s.verified++
	return s.signatureErr
}

func (s *stubProvider) DecodeWebhookEvent(_ []byte) (*payment.WebhookEvent, error) {
	return s.event, s.decodeErr
}

type stubEngine struct {
	completed []string
	cancelled []string
	expired   []string
	err       error
}

func (e *stubEngine) CompleteSession(_ context.Context, sessionCode, subscriptionCode string) (*models.Subscription, error) {
	e.completed = append(e.completed, sessionCode+"/"+subscriptionCode)
	return nil, e.err
}

func (e *stubEngine) CancelFromProvider(_ context.Context, subscriptionCode string) (*models.Subscription, error) {
	e.cancelled = append(e.cancelled, subscriptionCode)
	return nil, e.err
}

func (e *stubEngine) ExpireSession(_ context.Context, sessionCode string) (*models.Subscription, error) {
	e.expired = append(e.expired, sessionCode)
	return nil, e.err
}

func newListenerService(provider *stubProvider, engine *stubEngine, webhookSecret string) *Service {
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = webhookSecret
	cfg.Web.ListenerURL = "https://app.example.com/v1/payments/listeners"
	return NewService(nil, provider, engine, cfg, zap.NewNop().Sugar())
}

func TestHandleEvent_DispatchesByKind(t *testing.T) {
	tests := []struct {
		name  string
		event payment.WebhookEvent
		check func(t *testing.T, e *stubEngine)
	}{
		{
			name:  "session completed",
			event: payment.WebhookEvent{Kind: payment.EventSessionCompleted, SessionCode: "cs_1", SubscriptionCode: "sub_1"},
			check: func(t *testing.T, e *stubEngine) { assert.Equal(t, []string{"cs_1/sub_1"}, e.completed) },
		},
		{
			name:  "subscription cancelled",
			event: payment.WebhookEvent{Kind: payment.EventSubscriptionCancelled, SubscriptionCode: "sub_1"},
			check: func(t *testing.T, e *stubEngine) { assert.Equal(t, []string{"sub_1"}, e.cancelled) },
		},
		{
			name:  "checkout cancelled",
			event: payment.WebhookEvent{Kind: payment.EventCheckoutCancelled, SessionCode: "cs_1"},
			check: func(t *testing.T, e *stubEngine) { assert.Equal(t, []string{"cs_1"}, e.expired) },
		},
		{
			name:  "ignored kind touches nothing",
			event: payment.WebhookEvent{Kind: payment.EventIgnored},
			check: func(t *testing.T, e *stubEngine) {
				assert.Empty(t, e.completed)
				assert.Empty(t, e.cancelled)
				assert.Empty(t, e.expired)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &stubEngine{}
			svc := newListenerService(&stubProvider{event: &tt.event}, engine, "")
			err := svc.HandleEvent(context.Background(), []byte("{}"), "")
			require.NoError(t, err)
			tt.check(t, engine)
		})
	}
}

func TestHandleEvent_SignatureGate(t *testing.T) {
	// secret configured and signature bad: rejected before dispatch
	engine := &stubEngine{}
	provider := &stubProvider{signatureErr: apperr.ErrInvalidToken}
	svc := newListenerService(provider, engine, "whsec_test")
	err := svc.HandleEvent(context.Background(), []byte("{}"), "bogus")
	assert.True(t, errors.Is(err, apperr.ErrInvalidToken))
	assert.Empty(t, engine.completed)

	// no secret configured: verification skipped entirely
	provider = &stubProvider{
		signatureErr: apperr.ErrInvalidToken,
		event:        &payment.WebhookEvent{Kind: payment.EventSessionCompleted, SessionCode: "cs_1", SubscriptionCode: "sub_1"},
	}
	svc = newListenerService(provider, engine, "")
	require.NoError(t, svc.HandleEvent(context.Background(), []byte("{}"), ""))
	assert.Zero(t, provider.verified)
	assert.Len(t, engine.completed, 1)
}

func TestHandleEvent_AcknowledgesProcessingFailures(t *testing.T) {
	engine := &stubEngine{err: apperr.ErrNotFound}
	provider := &stubProvider{event: &payment.WebhookEvent{Kind: payment.EventSubscriptionCancelled, SubscriptionCode: "sub_unknown"}}
	svc := newListenerService(provider, engine, "")
	assert.NoError(t, svc.HandleEvent(context.Background(), []byte("{}"), ""))
}

func TestRegister_RequiresPrivilege(t *testing.T) {
	svc := newListenerService(&stubProvider{}, &stubEngine{}, "")
	_, err := svc.Register(context.Background(), &models.Account{ID: "acct-1", Role: types.PermissionRoleCustomer})
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}
