package stripe

import (
	"github.com/despiezo/marketplace/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.stripe",
	fx.Provide(func(cfg config.Config) Client {
		return NewClient(cfg.StripeAPIKey)
	}),
)
