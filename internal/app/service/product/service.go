package product

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/intopays/subpay/internal/app/service/payment"
	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/logctx"
	"github.com/intopays/subpay/pkg/tool"
	"github.com/intopays/subpay/pkg/types"
)

// Service provisions products and prices, mirroring each one to the payment
// provider before persisting it locally. The provider is the source of truth
// for checkout; the local rows carry the integration codes.
type Service struct {
	db       *gorm.DB
	provider payment.Provider
	log      *zap.SugaredLogger
}

func NewService(db *gorm.DB, provider payment.Provider, log *zap.SugaredLogger) *Service {
	return &Service{db: db, provider: provider, log: log}
}

type PriceParams struct {
	Amount         int64                     `json:"amount"`
	Currency       types.Currency            `json:"currency"`
	Interval       types.PriceInterval       `json:"interval"`
	IntervalPeriod types.PriceIntervalPeriod `json:"interval_period"`
	IntervalCount  int                       `json:"interval_count"`
}

type CreateParams struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Type        types.ProductType `json:"type"`
	Prices      []PriceParams     `json:"prices"`
}

func (p CreateParams) validate() error {
	if p.Name == "" {
		return apperr.Validationf("name is required")
	}
	if len(p.Prices) == 0 {
		return apperr.Validationf("at least one price is required")
	}
	for _, price := range p.Prices {
		if price.Amount <= 0 {
			return apperr.Validationf("price amount must be positive")
		}
		if !price.Currency.Valid() {
			return apperr.Validationf("unknown currency %q", price.Currency)
		}
		if price.Interval == types.PriceIntervalOnGoing && !price.IntervalPeriod.Valid() {
			return apperr.Validationf("recurring prices need an interval period")
		}
	}
	return nil
}

// Create provisions the product and its prices with the provider first, then
// persists them with the returned integration codes. Only privileged accounts
// may create products.
func (s *Service) Create(ctx context.Context, account *models.Account, params CreateParams) (*models.Product, error) {
	if !account.Role.Privileged() {
		return nil, fmt.Errorf("product provisioning requires an administrator: %w", apperr.ErrForbidden)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	productType := params.Type
	if productType == "" {
		productType = types.ProductTypeProduct
	}

	productCode, err := s.provider.CreateProduct(ctx, params.Name, params.Description, productType)
	if err != nil {
		return nil, err
	}

	prod := &models.Product{
		ID:              tool.GenerateUUIDV7(),
		Name:            params.Name,
		Description:     params.Description,
		Type:            productType,
		IntegrationCode: productCode,
	}
	for _, p := range params.Prices {
		count := p.IntervalCount
		if count <= 0 {
			count = 1
		}
		priceCode, err := s.provider.CreatePrice(ctx, payment.PriceParams{
			ProductCode:    productCode,
			Amount:         p.Amount,
			Currency:       p.Currency,
			Interval:       p.Interval,
			IntervalPeriod: p.IntervalPeriod,
			IntervalCount:  count,
		})
		if err != nil {
			return nil, err
		}
		prod.Prices = append(prod.Prices, &models.ProductPrice{
			ID:              tool.GenerateUUIDV7(),
			Amount:          p.Amount,
			Currency:        p.Currency,
			Interval:        p.Interval,
			IntervalPeriod:  p.IntervalPeriod,
			IntervalCount:   count,
			IntegrationCode: priceCode,
			ProductID:       prod.ID,
		})
	}

	if err := s.db.WithContext(ctx).Create(prod).Error; err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	return prod, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	err := s.db.WithContext(ctx).Preload("Prices").Order("created_at desc").Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Product, error) {
	var prod models.Product
	err := s.db.WithContext(ctx).Preload("Prices").Where("id = ?", id).First(&prod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &prod, nil
}

// Delete deactivates the product on the provider side and soft-deletes the
// local rows. Provider deactivation failures for individual prices are logged
// and skipped so a half-deactivated product can still be retired.
func (s *Service) Delete(ctx context.Context, account *models.Account, id string) error {
	if !account.Role.Privileged() {
		return fmt.Errorf("product removal requires an administrator: %w", apperr.ErrForbidden)
	}
	prod, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	log := logctx.FromCtx(ctx, s.log)
	for _, price := range prod.Prices {
		if price.IntegrationCode == "" {
			continue
		}
		if err := s.provider.DeactivatePrice(ctx, price.IntegrationCode); err != nil {
			log.Warnw("failed to deactivate price", "price_id", price.ID, "error", err)
		}
	}
	if prod.IntegrationCode != "" {
		if err := s.provider.DeactivateProduct(ctx, prod.IntegrationCode); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Delete(&models.ProductPrice{}, "product_id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete prices: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// FindPrice resolves a price with its product preloaded. The subscription
// engine uses it to build checkout sessions.
func (s *Service) FindPrice(ctx context.Context, priceID string) (*models.ProductPrice, error) {
	var price models.ProductPrice
	err := s.db.WithContext(ctx).Preload("Product").Where("id = ?", priceID).First(&price).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("price %s: %w", priceID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load price: %w", err)
	}
	return &price, nil
}
