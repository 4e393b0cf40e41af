package app

import (
	"context"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-refunds/internal/cache"
	"github.com/noah-isme/toko-refunds/internal/clients"
	"github.com/noah-isme/toko-refunds/internal/config"
	"github.com/noah-isme/toko-refunds/internal/health"
	"github.com/noah-isme/toko-refunds/internal/lock"
	"github.com/noah-isme/toko-refunds/internal/pricing"
	"github.com/noah-isme/toko-refunds/internal/refund"
	"github.com/noah-isme/toko-refunds/internal/resilience"
)

// Dependencies enumerates the services a refund run needs, wired from config.
type Dependencies struct {
	Redis      *redis.Client
	Orders     *clients.OrderClient
	Payments   *clients.PaymentClient
	Products   pricing.PriceLookup
	Calculator *pricing.Calculator
	Refunds    *refund.Service
	Health     health.Probe
}

// Build wires collaborator clients, the totals calculator and the refund
// service. rdb may be nil; the price cache is then disabled and the order lock
// must be off.
func Build(cfg *config.Config, logger zerolog.Logger, rdb *redis.Client) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if cfg.RefundLockEnabled && rdb == nil {
		return nil, errors.New("app: refund lock enabled without redis")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	checker := pricing.NewChecker(logger, "refund")

	deps := &Dependencies{
		Redis:    rdb,
		Orders:   clients.NewOrderClient(cfg.OrderServiceURL, collaborator(cfg, logger, "order-service")),
		Payments: clients.NewPaymentClient(cfg.PaymentServiceURL, collaborator(cfg, logger, "payment-service")),
	}

	if cfg.ProductServiceURL != "" {
		deps.Products = pricing.CachedPriceLookup{
			Inner:  clients.NewProductClient(cfg.ProductServiceURL, collaborator(cfg, logger, "product-service")),
			Cache:  cache.New(rdb, cfg.PriceCacheTTL, cfg.CachePrefix),
			Logger: logger,
		}
		deps.Calculator = &pricing.Calculator{
			Prices:    deps.Products,
			Checker:   pricing.NewChecker(logger, "cart"),
			Validator: validate,
		}
	}

	svc := &refund.Service{
		Orders:          deps.Orders,
		Payments:        deps.Payments,
		AllowedGateways: cfg.RefundAllowedGateways,
		Checker:         checker,
		Logger:          logger.With().Str("component", "refund_service").Logger(),
	}
	if cfg.RefundLockEnabled {
		svc.Locker = lock.Locker{
			R:            rdb,
			TTL:          cfg.LockTTL,
			RetryBackoff: cfg.LockRetryBackoff,
			Prefix:       cfg.CachePrefix,
		}
	}
	deps.Refunds = svc

	checks := map[string]health.Pinger{
		"order-service":   deps.Orders,
		"payment-service": deps.Payments,
	}
	if product, ok := deps.Products.(pricing.CachedPriceLookup); ok {
		if pinger, ok := product.Inner.(health.Pinger); ok {
			checks["product-service"] = pinger
		}
	}
	if rdb != nil {
		checks["redis"] = health.PingerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	deps.Health = health.Probe{Checks: checks, Timeout: cfg.OutboundTimeout}
	return deps, nil
}

func collaborator(cfg *config.Config, logger zerolog.Logger, target string) resilience.HTTPClient {
	breaker := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget(target).
		WithLogger(logger)
	return resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return target + " " + r.Method
				}),
			),
		},
		Breaker:     breaker,
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      cfg.RetryJitterPercent,
		Timeout:     cfg.OutboundTimeout,
		Target:      target,
	}
}
