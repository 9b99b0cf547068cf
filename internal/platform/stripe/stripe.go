package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/fx"

	"github.com/intopays/subpay/internal/app/service/payment"
	"github.com/intopays/subpay/pkg/apperr"
	cfgpkg "github.com/intopays/subpay/pkg/config"
	"github.com/intopays/subpay/pkg/types"
)

// Stripe webhook event types this engine subscribes to.
const (
	eventSubscriptionDeleted = "customer.subscription.deleted"
	eventSessionExpired      = "checkout.session.expired"
	eventSessionCompleted    = "checkout.session.completed"
)

// Payment implements payment.Provider against Stripe. The API client is
// injected at construction; no package-global key is set.
type Payment struct {
	api           *client.API
	webhookSecret string
	checkoutURL   string
}

func New(cfg *cfgpkg.Config) *Payment {
	api := &client.API{}
	api.Init(cfg.Stripe.SecretKey, nil)
	return &Payment{api: api, webhookSecret: cfg.Stripe.WebhookSecret, checkoutURL: cfg.Web.CheckoutURL}
}

// NewProvider exposes the adapter behind the capability interface with the
// bounded-retry policy applied.
func NewProvider(cfg *cfgpkg.Config) payment.Provider {
	return payment.Retrying(New(cfg))
}

var Module = fx.Options(
	fx.Provide(NewProvider),
)

// wrapErr classifies a Stripe SDK error per the adapter contract: provider
// 4xx responses are rejections, everything else is unavailability.
func wrapErr(op string, err error) error {
	var stripeErr *stripeapi.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
		return fmt.Errorf("%s: %s: %w", op, stripeErr.Msg, apperr.ErrProviderRejected)
	}
	return fmt.Errorf("%s: %v: %w", op, err, apperr.ErrProviderUnavailable)
}

func (p *Payment) CreateSubscriptionSession(ctx context.Context, params payment.CreateSessionParams) (*payment.Session, error) {
	lineItems := make([]*stripeapi.CheckoutSessionLineItemParams, 0, len(params.Prices))
	for _, price := range params.Prices {
		if !price.Recurring() {
			continue
		}
		lineItems = append(lineItems, &stripeapi.CheckoutSessionLineItemParams{
			Price:    stripeapi.String(price.IntegrationCode),
			Quantity: stripeapi.Int64(1),
		})
	}
	if len(lineItems) == 0 {
		return nil, fmt.Errorf("create session: no recurring prices: %w", apperr.ErrValidation)
	}

	sessionParams := &stripeapi.CheckoutSessionParams{
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripeapi.String(p.checkoutURL + "/" + params.SuccessToken),
		CancelURL:          stripeapi.String(p.checkoutURL + "/" + params.CancelToken),
	}
	sessionParams.Context = ctx
	if params.IdempotencyKey != "" {
		sessionParams.SetIdempotencyKey(params.IdempotencyKey)
	}

	session, err := p.api.CheckoutSessions.New(sessionParams)
	if err != nil {
		return nil, wrapErr("create checkout session", err)
	}
	return &payment.Session{Code: session.ID}, nil
}

func (p *Payment) CancelSubscription(ctx context.Context, providerSubscriptionCode string) (string, error) {
	subParams := &stripeapi.SubscriptionParams{CancelAtPeriodEnd: stripeapi.Bool(true)}
	subParams.Context = ctx
	sub, err := p.api.Subscriptions.Update(providerSubscriptionCode, subParams)
	if err != nil {
		return "", wrapErr("cancel subscription", err)
	}
	return sub.ID, nil
}

func (p *Payment) RegisterWebhook(ctx context.Context, endpointURL string) (*payment.WebhookRegistration, error) {
	endpointParams := &stripeapi.WebhookEndpointParams{
		URL: stripeapi.String(endpointURL),
		EnabledEvents: stripeapi.StringSlice([]string{
			eventSubscriptionDeleted,
			eventSessionExpired,
			eventSessionCompleted,
		}),
	}
	endpointParams.Context = ctx
	endpoint, err := p.api.WebhookEndpoints.New(endpointParams)
	if err != nil {
		return nil, wrapErr("register webhook", err)
	}
	return &payment.WebhookRegistration{Code: endpoint.ID, Secret: endpoint.Secret}, nil
}

// eventObject is the slice of a webhook event's data.object this engine
// reads: the object's own id and, for completed checkout sessions, the id of
// the subscription Stripe created for it.
type eventObject struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

func (p *Payment) DecodeWebhookEvent(payload []byte) (*payment.WebhookEvent, error) {
	var event stripeapi.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w", apperr.ErrValidation)
	}

	var obj eventObject
	if event.Data != nil {
		_ = json.Unmarshal(event.Data.Raw, &obj)
	}

	switch string(event.Type) {
	case eventSessionCompleted:
		return &payment.WebhookEvent{Kind: payment.EventSessionCompleted, SessionCode: obj.ID, SubscriptionCode: obj.Subscription}, nil
	case eventSessionExpired:
		return &payment.WebhookEvent{Kind: payment.EventCheckoutCancelled, SessionCode: obj.ID}, nil
	case eventSubscriptionDeleted:
		return &payment.WebhookEvent{Kind: payment.EventSubscriptionCancelled, SubscriptionCode: obj.ID}, nil
	default:
		return &payment.WebhookEvent{Kind: payment.EventIgnored}, nil
	}
}

func (p *Payment) VerifyWebhookSignature(payload []byte, signatureHeader string) error {
	if _, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret); err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", apperr.ErrInvalidToken)
	}
	return nil
}

func (p *Payment) CreateProduct(ctx context.Context, name, description string, productType types.ProductType) (string, error) {
	productParams := &stripeapi.ProductParams{
		Name: stripeapi.String(name),
	}
	if description != "" {
		productParams.Description = stripeapi.String(description)
	}
	productParams.Context = ctx
	product, err := p.api.Products.New(productParams)
	if err != nil {
		return "", wrapErr("create product", err)
	}
	return product.ID, nil
}

func (p *Payment) DeactivateProduct(ctx context.Context, productCode string) error {
	productParams := &stripeapi.ProductParams{Active: stripeapi.Bool(false)}
	productParams.Context = ctx
	if _, err := p.api.Products.Update(productCode, productParams); err != nil {
		return wrapErr("deactivate product", err)
	}
	return nil
}

func (p *Payment) CreatePrice(ctx context.Context, params payment.PriceParams) (string, error) {
	priceParams := &stripeapi.PriceParams{
		Product:    stripeapi.String(params.ProductCode),
		UnitAmount: stripeapi.Int64(params.Amount),
		Currency:   stripeapi.String(strings.ToLower(string(params.Currency))),
	}
	if params.Interval == types.PriceIntervalOnGoing {
		count := params.IntervalCount
		if count <= 0 {
			count = 1
		}
		priceParams.Recurring = &stripeapi.PriceRecurringParams{
			Interval:      stripeapi.String(strings.ToLower(string(params.IntervalPeriod))),
			IntervalCount: stripeapi.Int64(int64(count)),
		}
	}
	priceParams.Context = ctx
	price, err := p.api.Prices.New(priceParams)
	if err != nil {
		return "", wrapErr("create price", err)
	}
	return price.ID, nil
}

func (p *Payment) DeactivatePrice(ctx context.Context, priceCode string) error {
	priceParams := &stripeapi.PriceParams{Active: stripeapi.Bool(false)}
	priceParams.Context = ctx
	if _, err := p.api.Prices.Update(priceCode, priceParams); err != nil {
		return wrapErr("deactivate price", err)
	}
	return nil
}
