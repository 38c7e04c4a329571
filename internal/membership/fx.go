package membership

import (
	"github.com/despiezo/marketplace/internal/membership/repository"
	"github.com/despiezo/marketplace/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
