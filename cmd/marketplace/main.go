package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/despiezo/marketplace/internal/catalog"
	"github.com/despiezo/marketplace/internal/checkout"
	"github.com/despiezo/marketplace/internal/clock"
	"github.com/despiezo/marketplace/internal/config"
	"github.com/despiezo/marketplace/internal/escrow"
	"github.com/despiezo/marketplace/internal/featured"
	"github.com/despiezo/marketplace/internal/lock"
	"github.com/despiezo/marketplace/internal/logger"
	"github.com/despiezo/marketplace/internal/membership"
	"github.com/despiezo/marketplace/internal/migration"
	"github.com/despiezo/marketplace/internal/observability"
	"github.com/despiezo/marketplace/internal/order"
	"github.com/despiezo/marketplace/internal/payment"
	"github.com/despiezo/marketplace/internal/providers/stripe"
	"github.com/despiezo/marketplace/internal/server"
	"github.com/despiezo/marketplace/internal/user"
	"github.com/despiezo/marketplace/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		stripe.Module,
		catalog.Module,
		user.Module,
		checkout.Module,
		order.Module,
		membership.Module,
		featured.Module,
		payment.Module,
		escrow.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
