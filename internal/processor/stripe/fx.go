package stripe

import (
	"github.com/znapsite/platform/internal/config"
	"github.com/znapsite/platform/internal/processor"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("processor.stripe",
	fx.Provide(NewFromConfig),
)

// NewFromConfig builds the Stripe client, or nil when no API key is set —
// the deliberate degraded mode for non-billing deployments.
func NewFromConfig(cfg config.Config, logger *zap.Logger) processor.Client {
	if cfg.StripeAPIKey == "" {
		logger.Warn("stripe api key not configured, billing sync disabled")
		return nil
	}
	return New(cfg.StripeAPIKey)
}
