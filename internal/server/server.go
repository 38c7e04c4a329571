package server

import (
	"context"
	"net/http"
	"time"

	checkoutdomain "github.com/despiezo/marketplace/internal/checkout/domain"
	"github.com/despiezo/marketplace/internal/config"
	escrowdomain "github.com/despiezo/marketplace/internal/escrow/domain"
	orderdomain "github.com/despiezo/marketplace/internal/order/domain"
	paymentservice "github.com/despiezo/marketplace/internal/payment/service"
	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	userRepo    userdomain.Repository
	checkoutSvc checkoutdomain.Service
	paymentSvc  *paymentservice.Service
	orderSvc    orderdomain.Service
	orderRepo   orderdomain.Repository
	escrowSvc   escrowdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	UserRepo    userdomain.Repository
	CheckoutSvc checkoutdomain.Service
	PaymentSvc  *paymentservice.Service
	OrderSvc    orderdomain.Service
	OrderRepo   orderdomain.Repository
	EscrowSvc   escrowdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("http.server"),
		userRepo:    p.UserRepo,
		checkoutSvc: p.CheckoutSvc,
		paymentSvc:  p.PaymentSvc,
		orderSvc:    p.OrderSvc,
		orderRepo:   p.OrderRepo,
		escrowSvc:   p.EscrowSvc,
	}

	api := s.engine.Group("/api")

	api.POST("/webhooks/stripe", s.HandleStripeWebhook)

	authed := api.Group("")
	authed.Use(s.AuthRequired())
	{
		authed.POST("/checkout/product", s.HandleCheckoutProduct)
		authed.POST("/checkout/kit", s.HandleCheckoutKit)
		authed.POST("/checkout/feature", s.HandleCheckoutFeature)

		authed.GET("/orders/:id", s.HandleGetOrder)
		authed.POST("/orders/:id/delivered", s.HandleOrderDelivered)
	}

	return s
}
