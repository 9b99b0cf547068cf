package listener

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/intopays/subpay/internal/app/service/payment"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/config"
	"github.com/intopays/subpay/pkg/logctx"
	"github.com/intopays/subpay/pkg/tool"
)

// Engine is the slice of the reconciliation engine the webhook intake needs.
type Engine interface {
	CompleteSession(ctx context.Context, sessionCode, providerSubscriptionCode string) (*models.Subscription, error)
	CancelFromProvider(ctx context.Context, providerSubscriptionCode string) (*models.Subscription, error)
	ExpireSession(ctx context.Context, sessionCode string) (*models.Subscription, error)
}

// Service registers webhook endpoints with the payment provider and routes
// inbound events into the reconciliation engine.
type Service struct {
	db       *gorm.DB
	provider payment.Provider
	engine   Engine
	cfg      *config.Config
	log      *zap.SugaredLogger
}

func NewService(db *gorm.DB, provider payment.Provider, engine Engine, cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{db: db, provider: provider, engine: engine, cfg: cfg, log: log}
}

// RegisterResult carries the one-time webhook signing secret returned by the
// provider. It is shown once at registration and never persisted.
type RegisterResult struct {
	Listener *models.Listener
	Secret   string
}

// Register creates a provider webhook endpoint pointing at this service's
// intake URL. Only privileged accounts may register listeners.
func (s *Service) Register(ctx context.Context, account *models.Account) (*RegisterResult, error) {
	if !account.Role.Privileged() {
		return nil, fmt.Errorf("listener registration requires an administrator: %w", apperr.ErrForbidden)
	}

	referenceCode := tool.GenerateCorrelationCode()
	endpoint := s.cfg.Web.ListenerURL + "/" + referenceCode

	registration, err := s.provider.RegisterWebhook(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	entry := &models.Listener{
		ID:              tool.GenerateUUIDV7(),
		Endpoint:        endpoint,
		ReferenceCode:   referenceCode,
		IntegrationCode: registration.Code,
		AccountID:       account.ID,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to save listener: %w", err)
	}
	return &RegisterResult{Listener: entry, Secret: registration.Secret}, nil
}

func (s *Service) List(ctx context.Context, account *models.Account) ([]*models.Listener, error) {
	if !account.Role.Privileged() {
		return nil, fmt.Errorf("listing listeners requires an administrator: %w", apperr.ErrForbidden)
	}
	var listeners []*models.Listener
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&listeners).Error; err != nil {
		return nil, fmt.Errorf("failed to list listeners: %w", err)
	}
	return listeners, nil
}

// HandleEvent verifies, decodes and dispatches one inbound provider event.
// Signature failures are returned so the transport can reject the delivery;
// everything past the signature check is acknowledged even when processing
// fails, because the provider retries on non-2xx and the engine's transitions
// are replay-safe anyway.
func (s *Service) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	log := logctx.FromCtx(ctx, s.log)

	if s.cfg.Stripe.WebhookSecret != "" {
		if err := s.provider.VerifyWebhookSignature(payload, signatureHeader); err != nil {
			return err
		}
	}

	event, err := s.provider.DecodeWebhookEvent(payload)
	if err != nil {
		log.Warnw("undecodable webhook payload", "error", err)
		return nil
	}

	switch event.Kind {
	case payment.EventSessionCompleted:
		_, err = s.engine.CompleteSession(ctx, event.SessionCode, event.SubscriptionCode)
	case payment.EventSubscriptionCancelled:
		_, err = s.engine.CancelFromProvider(ctx, event.SubscriptionCode)
	case payment.EventCheckoutCancelled:
		_, err = s.engine.ExpireSession(ctx, event.SessionCode)
	case payment.EventIgnored:
		return nil
	}
	if err != nil {
		log.Errorw("webhook event processing failed",
			"kind", event.Kind, "session_code", event.SessionCode, "subscription_code", event.SubscriptionCode, "error", err)
	}
	return nil
}
