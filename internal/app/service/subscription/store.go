package subscription

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/types"
)

// Store persists subscription records. Updates are guarded by the record's
// version: a write against a stale version fails with apperr.ErrConflict so
// the redirect and webhook paths cannot silently clobber each other.
type Store interface {
	Create(ctx context.Context, sub *models.Subscription) error
	// Update persists sub conditional on sub.Version matching the stored row,
	// bumping the version on success.
	Update(ctx context.Context, sub *models.Subscription) error
	// SoftDelete marks the record deleted; records are never hard-deleted.
	SoftDelete(ctx context.Context, id string) error

	FindByID(ctx context.Context, id string) (*models.Subscription, error)
	FindByCorrelationCode(ctx context.Context, code string) (*models.Subscription, error)
	FindBySessionCode(ctx context.Context, code string) (*models.Subscription, error)
	FindByProviderSubscriptionCode(ctx context.Context, code string) (*models.Subscription, error)
	ListByAccount(ctx context.Context, accountID string, status types.SubscriptionStatus) ([]*models.Subscription, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, sub *models.Subscription) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("duplicate correlation code: %w", apperr.ErrConflict)
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (s *gormStore) Update(ctx context.Context, sub *models.Subscription) error {
	loaded := sub.Version
	res := s.db.WithContext(ctx).Unscoped().Model(&models.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, loaded).
		Updates(map[string]any{
			"status":                     sub.Status,
			"charge_status":              sub.ChargeStatus,
			"provider_session_code":      sub.ProviderSessionCode,
			"provider_subscription_code": sub.ProviderSubscriptionCode,
			"version":                    loaded + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("subscription %s changed concurrently (version %d): %w", sub.ID, loaded, apperr.ErrConflict)
	}
	sub.Version = loaded + 1
	return nil
}

func (s *gormStore) SoftDelete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Subscription{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) findOne(ctx context.Context, query string, arg string, includeDeleted bool) (*models.Subscription, error) {
	q := s.db.WithContext(ctx)
	if includeDeleted {
		q = q.Unscoped()
	}
	var sub models.Subscription
	err := q.Preload("Product").Preload("Product.Prices").
		Where(query, arg).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) FindByID(ctx context.Context, id string) (*models.Subscription, error) {
	return s.findOne(ctx, "id = ?", id, false)
}

func (s *gormStore) FindByCorrelationCode(ctx context.Context, code string) (*models.Subscription, error) {
	return s.findOne(ctx, "correlation_code = ?", code, false)
}

// The provider keeps sending events after an explicit cancellation has
// soft-deleted the record, so the webhook-path lookups include deleted rows.
func (s *gormStore) FindBySessionCode(ctx context.Context, code string) (*models.Subscription, error) {
	return s.findOne(ctx, "provider_session_code = ?", code, true)
}

func (s *gormStore) FindByProviderSubscriptionCode(ctx context.Context, code string) (*models.Subscription, error) {
	return s.findOne(ctx, "provider_subscription_code = ?", code, true)
}

func (s *gormStore) ListByAccount(ctx context.Context, accountID string, status types.SubscriptionStatus) ([]*models.Subscription, error) {
	q := s.db.WithContext(ctx).Preload("Product").Where("account_id = ?", accountID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var subs []*models.Subscription
	if err := q.Order("created_at desc").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}
