package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "einvoice/api/swagger" // swagger docs
	"einvoice/internal/cache"
	"einvoice/internal/config"
	"einvoice/internal/database"
	"einvoice/internal/fbr"
	"einvoice/internal/handler"
	"einvoice/internal/logger"
	"einvoice/internal/metrics"
	"einvoice/internal/middleware"
	"einvoice/internal/repository"
	"einvoice/internal/service"
	"einvoice/internal/storage"
	"einvoice/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           FBR Digital Invoicing API
// @version         1.0
// @description     Sales tax invoices for FBR Digital Invoicing: bulk import, validation and submission.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("invalid configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		zap.L().Fatal("logger init failed", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if cfg.Server.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := database.NewConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	store, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("storage init failed", zap.Error(err))
	}

	kv := cache.New(cfg.Redis)
	fbrClient := fbr.NewClient(cfg.FBR, m)
	auth := middleware.NewAuthenticator(cfg.Auth)

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	// Repository -> Service -> Handler
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	buyerRepo := repository.NewBuyerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	authService := service.NewAuthService(userRepo, orgRepo, auditRepo, txManager, auth, cfg.Auth.RefreshTokenTTL)
	userService := service.NewUserService(userRepo, auditRepo)
	orgService := service.NewOrganizationService(orgRepo, auditRepo)
	buyerService := service.NewBuyerService(buyerRepo, orgRepo, auditRepo, fbrClient, kv, cfg.Redis.RegistrationTTL)
	invoiceService := service.NewInvoiceService(service.InvoiceDeps{
		Invoices:     invoiceRepo,
		Organization: orgRepo,
		Buyers:       buyerRepo,
		Audit:        auditRepo,
		TxManager:    txManager,
		FBR:          fbrClient,
		Locks:        kv,
		Publisher:    wsHub,
		Metrics:      m,
	})
	uploadService := service.NewUploadService(invoiceService, store)
	statisticsService := service.NewStatisticsService(invoiceRepo)
	auditService := service.NewAuditService(auditRepo)

	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(), m.GinMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	metrics.RegisterRoutes(router)
	router.GET("/ws", websocket.ServeWs(wsHub, auth))
	if cfg.Storage.Type == "local" {
		router.Static(cfg.Storage.LocalPublicURL, cfg.Storage.LocalBaseDir)
	}

	api := router.Group("")
	handler.NewAuthHandler(authService, auth).RegisterRoutes(api)
	handler.NewUserHandler(userService, auth).RegisterRoutes(api)
	handler.NewOrganizationHandler(orgService, auth).RegisterRoutes(api)
	handler.NewBuyerHandler(buyerService, auth).RegisterRoutes(api)
	handler.NewInvoiceHandler(invoiceService, uploadService, auth).RegisterRoutes(api)
	handler.NewStatisticsHandler(statisticsService, auth).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
