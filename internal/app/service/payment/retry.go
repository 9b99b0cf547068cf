package payment

import (
	"context"
	"errors"
	"time"

	"github.com/intopays/subpay/pkg/apperr"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBaseWait = 200 * time.Millisecond
)

// retryingProvider retries transport-level failures of the remote mutating
// calls with exponential backoff. Provider rejections are never retried: the
// provider saw the request and said no. Webhook decoding is local and needs
// no retry.
type retryingProvider struct {
	Provider
	attempts int
	baseWait time.Duration
}

// Retrying wraps p with the default bounded-retry policy.
func Retrying(p Provider) Provider {
	return &retryingProvider{Provider: p, attempts: defaultRetryAttempts, baseWait: defaultRetryBaseWait}
}

func (r *retryingProvider) retry(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < r.attempts; i++ {
		if err = fn(); err == nil || !errors.Is(err, apperr.ErrProviderUnavailable) {
			return err
		}
		if i == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.baseWait << i):
		}
	}
	return err
}

func (r *retryingProvider) CreateSubscriptionSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
	var session *Session
	err := r.retry(ctx, func() error {
		var inner error
		session, inner = r.Provider.CreateSubscriptionSession(ctx, params)
		return inner
	})
	return session, err
}

func (r *retryingProvider) CancelSubscription(ctx context.Context, providerSubscriptionCode string) (string, error) {
	var code string
	err := r.retry(ctx, func() error {
		var inner error
		code, inner = r.Provider.CancelSubscription(ctx, providerSubscriptionCode)
		return inner
	})
	return code, err
}

func (r *retryingProvider) RegisterWebhook(ctx context.Context, endpointURL string) (*WebhookRegistration, error) {
	var reg *WebhookRegistration
	err := r.retry(ctx, func() error {
		var inner error
		reg, inner = r.Provider.RegisterWebhook(ctx, endpointURL)
		return inner
	})
	return reg, err
}
