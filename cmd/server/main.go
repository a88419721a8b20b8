package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/webshop-checkout/internal/checkout"
	"github.com/iliyamo/webshop-checkout/internal/config"
	"github.com/iliyamo/webshop-checkout/internal/database"
	"github.com/iliyamo/webshop-checkout/internal/handler"
	"github.com/iliyamo/webshop-checkout/internal/ledger"
	"github.com/iliyamo/webshop-checkout/internal/limits"
	"github.com/iliyamo/webshop-checkout/internal/membership"
	"github.com/iliyamo/webshop-checkout/internal/middleware"
	"github.com/iliyamo/webshop-checkout/internal/pricing"
	"github.com/iliyamo/webshop-checkout/internal/queue"
	"github.com/iliyamo/webshop-checkout/internal/repository"
	"github.com/iliyamo/webshop-checkout/internal/router"
	"github.com/iliyamo/webshop-checkout/internal/service"
	"github.com/iliyamo/webshop-checkout/internal/vipps"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatalf("database: %v", err)
		}
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	products := repository.NewProductRepo(db)
	reservations := repository.NewReservationRepo(db)
	orders := repository.NewOrderRepo(db)

	stock := ledger.New(reservations, products)
	validator := limits.NewValidator(orders)

	var verifier pricing.Verifier
	if mcfg, ok := config.LoadMembershipConfig(); ok {
		verifier = membership.NewClient(mcfg)
	} else {
		log.Printf("membership verification not configured; member discounts disabled")
	}

	mq := config.LoadRabbitMQConfig()
	assembler := checkout.New(checkout.Deps{
		Products: products,
		Stock:    stock,
		Limits:   validator,
		Verifier: verifier,
		Payments: vipps.NewClient(config.LoadVippsConfig()),
		Orders:   orders,
		Events:   service.NewOrderPublisher(mq.URL, mq.DialTimeout),
		Currency: cfg.Currency,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s err=%v", v.Method, v.URI, v.Status, v.Latency, v.Error)
			return nil
		},
	}))

	h := router.Handlers{
		Auth:     handler.NewAuthHandler(cfg),
		Catalog:  handler.NewCatalogHandler(products, stock),
		Cart:     handler.NewCartHandler(products, stock, validator),
		Checkout: handler.NewCheckoutHandler(assembler),
		Orders:   handler.NewOrderHandler(orders),
		Admin:    handler.NewAdminHandler(stock),
	}
	opt := router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	}
	router.RegisterRoutes(e)
	router.RegisterPublic(e, h, opt)
	router.RegisterShopper(e, h, opt)
	router.RegisterAdmin(e, h, opt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if mq.ConsumerEnabled {
		consumer := &queue.OrderConsumer{URL: mq.URL, LogDir: mq.LogDir}
		g.Go(func() error {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
