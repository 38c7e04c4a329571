package payment

import (
	"github.com/despiezo/marketplace/internal/payment/repository"
	"github.com/despiezo/marketplace/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.router",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
