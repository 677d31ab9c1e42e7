package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"updown/internal/client/marketcap"
	"updown/internal/config"
	cronrunner "updown/internal/cron"
	"updown/internal/db"
	"updown/internal/handler"
	"updown/internal/logger"
	gormrepository "updown/internal/repository/gorm"
	"updown/internal/service"

	_ "updown/docs"
)

func main() {
	cfgPath := os.Getenv("UD_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("UD_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	capHTTP := &http.Client{Timeout: cfg.Valuation.Timeout}
	capClient := marketcap.NewClient(capHTTP, cfg.Valuation.BaseURL)
	valuationSvc := &service.ValuationService{
		Repo:         store,
		Client:       capClient,
		Logger:       logger,
		TokenAddress: cfg.Valuation.TokenAddress,
		StreamURL:    cfg.Valuation.StreamURL,
		PollInterval: cfg.Valuation.PollInterval,
		MaxTickAge:   cfg.Valuation.MaxTickAge,
	}
	auditSvc := &service.AuditService{Repo: store, Logger: logger}

	initialLiquidity, err := decimal.NewFromString(cfg.Market.InitialLiquidity)
	if err != nil || !initialLiquidity.IsPositive() {
		logger.Fatal("invalid market.initial_liquidity", zap.String("value", cfg.Market.InitialLiquidity))
	}
	roundSvc := &service.RoundService{
		Repo:             store,
		Valuation:        valuationSvc,
		Logger:           logger,
		Durations:        cfg.Market.Durations,
		InitialLiquidity: initialLiquidity,
	}
	exchangeSvc := &service.ExchangeService{
		Repo:           store,
		Rounds:         roundSvc,
		Audit:          auditSvc,
		Logger:         logger,
		BookLevels:     cfg.Market.BookLevels,
		TradeListLimit: cfg.Market.TradeListLimit,
	}
	settlementSvc := &service.SettlementService{
		Repo:            store,
		Rounds:          roundSvc,
		Valuation:       valuationSvc,
		Audit:           auditSvc,
		Logger:          logger,
		SettleBatchSize: cfg.Market.SettleBatchSize,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	if cfg.RateLimit.Enabled {
		engine.Use(handler.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	orderHandler := &handler.OrderHandler{Exchange: exchangeSvc, Rounds: roundSvc, Logger: logger}
	orderHandler.Register(engine)
	roundHandler := &handler.RoundHandler{Rounds: roundSvc}
	roundHandler.Register(engine)
	settlementHandler := &handler.SettlementHandler{
		Settlements: settlementSvc,
		Logger:      logger,
		CronSecret:  cfg.Cron.Secret,
	}
	settlementHandler.Register(engine)
	marketCapHandler := &handler.MarketCapHandler{Valuation: valuationSvc}
	marketCapHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err = cronRunner.Add(cfg.Cron.SweepSpec, func(ctx context.Context) {
			report, err := settlementSvc.SweepOnce(ctx)
			if err != nil {
				logger.Warn("cron sweep failed", zap.Error(err))
				return
			}
			if report.RoundsClosed > 0 || report.RoundsSettled > 0 || len(report.Deferred) > 0 {
				logger.Info("cron sweep ok",
					zap.Int64("rounds_closed", report.RoundsClosed),
					zap.Int("rounds_settled", report.RoundsSettled),
					zap.Strings("deferred", report.Deferred),
				)
			}
		})
		if err != nil {
			logger.Warn("cron register sweep failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.Valuation.TokenAddress != "" {
		go func() {
			if err := valuationSvc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("valuation feed stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("valuation.token_address empty; rounds will start without a valuation")
	}

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
