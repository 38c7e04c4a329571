package featured

import (
	"github.com/despiezo/marketplace/internal/featured/service"
	"go.uber.org/fx"
)

var Module = fx.Module("featured.service",
	fx.Provide(service.NewService),
)
