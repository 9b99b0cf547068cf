package payment

import (
	"context"

	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/types"
)

// EventKind is the normalized classification of an inbound provider webhook.
type EventKind string

const (
	EventSessionCompleted      EventKind = "SESSION_COMPLETED"
	EventSubscriptionCancelled EventKind = "SUBSCRIPTION_CANCELLED"
	EventCheckoutCancelled     EventKind = "CHECKOUT_CANCELLED"
	// EventIgnored is the sentinel for provider event types this engine does
	// not handle. Decoding never fails on unknown types.
	EventIgnored EventKind = "IGNORED"
)

// WebhookEvent is a provider webhook payload reduced to what the
// reconciliation engine needs.
type WebhookEvent struct {
	Kind EventKind
	// SessionCode identifies the checkout session (SESSION_COMPLETED,
	// CHECKOUT_CANCELLED).
	SessionCode string
	// SubscriptionCode identifies the recurring billing arrangement. On
	// SESSION_COMPLETED it is the newly created subscription's code; on
	// SUBSCRIPTION_CANCELLED it is the cancelled one's.
	SubscriptionCode string
}

type CreateSessionParams struct {
	SuccessToken string
	CancelToken  string
	// IdempotencyKey is reused across retries so a retried call cannot mint a
	// second session. The engine passes the subscription's correlation code.
	IdempotencyKey string
	Prices         []*models.ProductPrice
}

type Session struct {
	Code string
}

type WebhookRegistration struct {
	Code   string
	Secret string
}

type PriceParams struct {
	ProductCode    string
	Amount         int64
	Currency       types.Currency
	Interval       types.PriceInterval
	IntervalPeriod types.PriceIntervalPeriod
	IntervalCount  int
}

// Provider is the capability interface to the external payment system. All
// remote operations fail with apperr.ErrProviderUnavailable on transport
// failure and apperr.ErrProviderRejected when the provider refuses the
// request.
type Provider interface {
	// CreateSubscriptionSession opens a provider-hosted checkout session for
	// the recurring prices in params.
	CreateSubscriptionSession(ctx context.Context, params CreateSessionParams) (*Session, error)
	// CancelSubscription requests cancellation at the current billing-period
	// boundary, not immediately.
	CancelSubscription(ctx context.Context, providerSubscriptionCode string) (string, error)
	RegisterWebhook(ctx context.Context, endpointURL string) (*WebhookRegistration, error)
	// DecodeWebhookEvent normalizes a raw payload. Unknown event types decode
	// to EventIgnored, never to an error.
	DecodeWebhookEvent(payload []byte) (*WebhookEvent, error)
	// VerifyWebhookSignature must pass before DecodeWebhookEvent output is
	// trusted for any state change.
	VerifyWebhookSignature(payload []byte, signatureHeader string) error

	CreateProduct(ctx context.Context, name, description string, productType types.ProductType) (string, error)
	DeactivateProduct(ctx context.Context, productCode string) error
	CreatePrice(ctx context.Context, params PriceParams) (string, error)
	DeactivatePrice(ctx context.Context, priceCode string) error
}
