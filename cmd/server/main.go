package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ticketon/backend/internal/config"
	"github.com/ticketon/backend/internal/database"
	"github.com/ticketon/backend/internal/handler"
	"github.com/ticketon/backend/internal/middleware"
	"github.com/ticketon/backend/internal/queue"
	"github.com/ticketon/backend/internal/repository"
	"github.com/ticketon/backend/internal/router"
	"github.com/ticketon/backend/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly

	cfg := config.Load()

	var logger *zap.Logger
	var err error
	if cfg.Env == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, response cache and rate limiting disabled")
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	txns := repository.NewTransactionRepo(db)
	vouchers := repository.NewVoucherRepo(db)
	coupons := repository.NewCouponRepo(db)
	points := repository.NewPointRepo(db)

	notifier := queue.NewPublisher(cfg.RabbitURL)
	svc := service.NewTransactionService(db, events, txns, vouchers, coupons, points, notifier, logger)
	svc.CouponSingleUse = cfg.CouponSingleUse

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := service.NewSweeper(txns, svc, cfg.SweepInterval, logger)
	go sweeper.Run(ctx)
	go func() {
		if err := queue.StartNotificationConsumer(cfg.RabbitURL, logger); err != nil {
			logger.Error("notification consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RateLimit(rdb, rlCfg))

	authHandler := handler.NewAuthHandler(cfg, db, users, tokens, points, coupons)
	publicHandler := handler.NewPublicHandler(events)
	customerHandler := handler.NewCustomerHandler(svc, points, coupons)
	organizerHandler := handler.NewOrganizerHandler(events, vouchers, svc)
	organizerHandler.Invalidate = func() { middleware.InvalidateCache(rdb, cacheCfg) }

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, publicHandler, rdb, cacheCfg)
	router.RegisterCustomer(e, customerHandler, cfg.JWTSecret)
	router.RegisterOrganizer(e, organizerHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
