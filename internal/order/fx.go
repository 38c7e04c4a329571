package order

import (
	"github.com/despiezo/marketplace/internal/order/repository"
	"github.com/despiezo/marketplace/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
