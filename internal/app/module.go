package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/intopays/subpay/internal/app/api/server"
	"github.com/intopays/subpay/internal/app/service/account"
	"github.com/intopays/subpay/internal/app/service/listener"
	"github.com/intopays/subpay/internal/app/service/product"
	"github.com/intopays/subpay/internal/app/service/subscription"
	"github.com/intopays/subpay/internal/platform/db"
	"github.com/intopays/subpay/internal/platform/stripe"
	"github.com/intopays/subpay/pkg/config"
	"github.com/intopays/subpay/pkg/logger"
	"github.com/intopays/subpay/pkg/token"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

func newSigner(cfg *config.Config) *token.Signer {
	return token.NewSigner(cfg.Auth.StateSecret, cfg.Auth.StateTTL)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	stripe.Module,
	fx.Provide(newSigner),
	fx.Provide(func(s *subscription.Service) listener.Engine { return s }),
	fx.Provide(func(s *product.Service) subscription.PriceFinder { return s }),
	account.Module,
	product.Module,
	subscription.Module,
	listener.Module,
	server.Module,
)
