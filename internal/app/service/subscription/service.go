package subscription

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/intopays/subpay/internal/app/service/payment"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/config"
	"github.com/intopays/subpay/pkg/logctx"
	"github.com/intopays/subpay/pkg/token"
	"github.com/intopays/subpay/pkg/tool"
	"github.com/intopays/subpay/pkg/types"
)

// PriceFinder resolves a purchasable price for subscription creation.
type PriceFinder interface {
	FindPrice(ctx context.Context, priceID string) (*models.ProductPrice, error)
}

// Service is the reconciliation engine: it creates subscriptions against the
// provider and converges the browser-redirect and webhook completion paths to
// one consistent final state regardless of arrival order.
type Service struct {
	store    Store
	prices   PriceFinder
	provider payment.Provider
	signer   *token.Signer
	cfg      *config.Config
	log      *zap.SugaredLogger
	db       *gorm.DB
}

func NewService(store Store, prices PriceFinder, provider payment.Provider, signer *token.Signer, cfg *config.Config, log *zap.SugaredLogger, db *gorm.DB) *Service {
	return &Service{store: store, prices: prices, provider: provider, signer: signer, cfg: cfg, log: log, db: db}
}

// CreateResult is what the subscription-creation endpoint returns alongside
// the record: the token that renders the provider checkout page and the URL
// embedding it.
type CreateResult struct {
	Subscription       *models.Subscription
	CheckoutToken      string
	RedirectPaymentURL string
}

// Create opens a provider checkout session for the price and persists the
// PROCESSING/STOPPED record. The correlation code is minted before any
// provider call and doubles as the provider idempotency key, so a retried
// session creation cannot produce two sessions.
func (s *Service) Create(ctx context.Context, account *models.Account, priceID string) (*CreateResult, error) {
	price, err := s.prices.FindPrice(ctx, priceID)
	if err != nil {
		return nil, err
	}

	correlationCode := tool.GenerateCorrelationCode()
	successToken, err := s.signer.Issue(token.Claims{
		PaymentKind:     token.KindSubscription,
		CorrelationCode: correlationCode,
		TargetStatus:    string(types.SubscriptionStatusApproved),
	})
	if err != nil {
		return nil, err
	}
	cancelToken, err := s.signer.Issue(token.Claims{
		PaymentKind:     token.KindSubscription,
		CorrelationCode: correlationCode,
		TargetStatus:    string(types.SubscriptionStatusCanceled),
	})
	if err != nil {
		return nil, err
	}

	session, err := s.provider.CreateSubscriptionSession(ctx, payment.CreateSessionParams{
		SuccessToken:   successToken,
		CancelToken:    cancelToken,
		IdempotencyKey: correlationCode,
		Prices:         []*models.ProductPrice{price},
	})
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		ID:                  tool.GenerateUUIDV7(),
		Status:              types.SubscriptionStatusProcessing,
		ChargeStatus:        types.ChargeStatusStopped,
		CorrelationCode:     correlationCode,
		ProviderSessionCode: session.Code,
		AccountID:           account.ID,
		ProductID:           price.ProductID,
		Product:             price.Product,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}
	s.audit(ctx, nil, sub, models.TriggerCreate)

	checkoutToken, err := s.signer.Issue(token.Claims{
		PaymentKind:    token.KindSubscription,
		SubscriptionID: sub.ID,
		PublicKey:      s.cfg.Stripe.PublicKey,
	})
	if err != nil {
		return nil, err
	}

	return &CreateResult{
		Subscription:       sub,
		CheckoutToken:      checkoutToken,
		RedirectPaymentURL: s.cfg.Web.RedirectPaymentURL + "/" + checkoutToken,
	}, nil
}

func (s *Service) List(ctx context.Context, accountID string, status types.SubscriptionStatus) ([]*models.Subscription, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validationf("unknown status %q", status)
	}
	return s.store.ListByAccount(ctx, accountID, status)
}

// Cancel requests provider-side cancellation at the period boundary and marks
// the record WAITING_CANCELATION. Status stays untouched until the provider
// confirms via webhook. The record is soft-deleted, never hard-deleted.
func (s *Service) Cancel(ctx context.Context, account *models.Account, id string) (*models.Subscription, error) {
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.AccountID != account.ID {
		return nil, fmt.Errorf("subscription belongs to another account: %w", apperr.ErrForbidden)
	}
	if sub.ProviderSubscriptionCode == "" {
		return nil, apperr.Validationf("subscription %s has no provider subscription yet", id)
	}

	if _, err := s.provider.CancelSubscription(ctx, sub.ProviderSubscriptionCode); err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, models.TriggerCancelRequest, func() (*models.Subscription, error) {
		return s.store.FindByID(ctx, id)
	}, func(sub *models.Subscription) bool {
		if sub.ChargeStatus.Rank() >= types.ChargeStatusWaitingCancelation.Rank() {
			return false
		}
		sub.ChargeStatus = types.ChargeStatusWaitingCancelation
		return true
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SoftDelete(ctx, updated.ID); err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyRedirect consumes a verified redirect token and applies its target
// status. Replays are no-ops: a record already at the target, or past
// PROCESSING, is returned unchanged.
func (s *Service) ApplyRedirect(ctx context.Context, claims *token.Claims) (*models.Subscription, error) {
	if claims.PaymentKind != token.KindSubscription {
		return nil, fmt.Errorf("unsupported payment kind %q: %w", claims.PaymentKind, apperr.ErrInvalidToken)
	}
	target := types.SubscriptionStatus(claims.TargetStatus)
	if !target.Valid() || target == types.SubscriptionStatusProcessing {
		return nil, fmt.Errorf("invalid target status %q: %w", claims.TargetStatus, apperr.ErrInvalidToken)
	}

	return s.transition(ctx, models.TriggerRedirect, func() (*models.Subscription, error) {
		return s.store.FindByCorrelationCode(ctx, claims.CorrelationCode)
	}, func(sub *models.Subscription) bool {
		changed := false
		if !sub.Status.Terminal() && sub.Status != target {
			sub.Status = target
			changed = true
		}
		// Billing only starts on a record that is actually APPROVED. The
		// customer holds both redirect tokens, so a success-token replay after
		// the cancel redirect must not advance the charge status.
		if target == types.SubscriptionStatusApproved &&
			sub.Status == types.SubscriptionStatusApproved &&
			sub.ChargeStatus.Rank() < types.ChargeStatusRunning.Rank() {
			sub.ChargeStatus = types.ChargeStatusRunning
			changed = true
		}
		return changed
	})
}

// CompleteSession records the provider's recurring-subscription identifier
// for a finished checkout session. Redelivery of the same event is a no-op.
func (s *Service) CompleteSession(ctx context.Context, sessionCode, providerSubscriptionCode string) (*models.Subscription, error) {
	if providerSubscriptionCode == "" {
		return nil, apperr.Validationf("completed session %s carries no subscription code", sessionCode)
	}
	return s.transition(ctx, models.TriggerWebhook, func() (*models.Subscription, error) {
		return s.store.FindBySessionCode(ctx, sessionCode)
	}, func(sub *models.Subscription) bool {
		if sub.ProviderSubscriptionCode == providerSubscriptionCode {
			return false
		}
		if sub.ProviderSubscriptionCode != "" {
			// populated at most once; a different code is a provider anomaly
			logctx.FromCtx(ctx, s.log).Errorw("session completion with conflicting subscription code",
				"subscription_id", sub.ID, "have", sub.ProviderSubscriptionCode, "got", providerSubscriptionCode)
			return false
		}
		sub.ProviderSubscriptionCode = providerSubscriptionCode
		return true
	})
}

// CancelFromProvider applies a provider-reported cancellation.
func (s *Service) CancelFromProvider(ctx context.Context, providerSubscriptionCode string) (*models.Subscription, error) {
	return s.transition(ctx, models.TriggerWebhook, func() (*models.Subscription, error) {
		return s.store.FindByProviderSubscriptionCode(ctx, providerSubscriptionCode)
	}, func(sub *models.Subscription) bool {
		changed := false
		if sub.Status != types.SubscriptionStatusCanceled {
			sub.Status = types.SubscriptionStatusCanceled
			changed = true
		}
		if sub.ChargeStatus != types.ChargeStatusCanceled {
			sub.ChargeStatus = types.ChargeStatusCanceled
			changed = true
		}
		return changed
	})
}

// ExpireSession handles checkout.session.expired. By default it is a no-op
// (the event is reserved for non-subscription payment kinds); when
// cancel_expired_sessions is set, a still-PROCESSING match is cancelled.
func (s *Service) ExpireSession(ctx context.Context, sessionCode string) (*models.Subscription, error) {
	if !s.cfg.Stripe.CancelExpiredSessions {
		return nil, nil
	}
	return s.transition(ctx, models.TriggerWebhook, func() (*models.Subscription, error) {
		return s.store.FindBySessionCode(ctx, sessionCode)
	}, func(sub *models.Subscription) bool {
		if sub.Status != types.SubscriptionStatusProcessing {
			return false
		}
		sub.Status = types.SubscriptionStatusCanceled
		sub.ChargeStatus = types.ChargeStatusCanceled
		return true
	})
}

// RenderData is what the checkout-continuation page needs to resume the
// provider-hosted checkout.
type RenderData struct {
	SessionCode string
	PublicKey   string
}

// Render resolves a verified checkout-render token to the page data.
func (s *Service) Render(ctx context.Context, claims *token.Claims) (*RenderData, error) {
	if claims.PaymentKind != token.KindSubscription {
		return nil, fmt.Errorf("unsupported payment kind %q: %w", claims.PaymentKind, apperr.ErrInvalidToken)
	}
	sub, err := s.store.FindByID(ctx, claims.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return &RenderData{SessionCode: sub.ProviderSessionCode, PublicKey: claims.PublicKey}, nil
}

const transitionAttempts = 3

// transition loads, mutates and conditionally writes a record, reloading on
// version conflict so concurrent redirect and webhook deliveries converge
// instead of failing. The mutate func returns false when the record already
// reflects the transition; that makes every path replay-safe.
func (s *Service) transition(ctx context.Context, trigger models.TransitionTrigger, load func() (*models.Subscription, error), mutate func(*models.Subscription) bool) (*models.Subscription, error) {
	var lastErr error
	for i := 0; i < transitionAttempts; i++ {
		sub, err := load()
		if err != nil {
			return nil, err
		}
		before := *sub
		if !mutate(sub) {
			return sub, nil
		}
		if err := s.store.Update(ctx, sub); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		s.audit(ctx, &before, sub, trigger)
		return sub, nil
	}
	return nil, lastErr
}

// audit writes a transition log row asynchronously; failures are logged, not
// returned.
func (s *Service) audit(ctx context.Context, before, after *models.Subscription, trigger models.TransitionTrigger) {
	if s.db == nil {
		return
	}
	snapshot := *after
	go func() {
		entry := &models.SubscriptionLog{
			ID:             tool.GenerateUUIDV7(),
			SubscriptionID: snapshot.ID,
			Trigger:        trigger,
			Before:         datatypes.NewJSONType(before),
			After:          datatypes.NewJSONType(&snapshot),
			Extra:          datatypes.JSONMap{},
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}
