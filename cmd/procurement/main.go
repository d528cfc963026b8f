package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitfantasy/procurement/internal/config"
	ctrhandler "github.com/bitfantasy/procurement/internal/contract/handler"
	ctrrepo "github.com/bitfantasy/procurement/internal/contract/repository"
	ctrsvc "github.com/bitfantasy/procurement/internal/contract/service"
	dochandler "github.com/bitfantasy/procurement/internal/document/handler"
	docrepo "github.com/bitfantasy/procurement/internal/document/repository"
	docsvc "github.com/bitfantasy/procurement/internal/document/service"
	"github.com/bitfantasy/procurement/internal/middleware"
	"github.com/bitfantasy/procurement/internal/migrations"
	plnhandler "github.com/bitfantasy/procurement/internal/plan/handler"
	plnrepo "github.com/bitfantasy/procurement/internal/plan/repository"
	plnsvc "github.com/bitfantasy/procurement/internal/plan/service"
	prvhandler "github.com/bitfantasy/procurement/internal/provider/handler"
	prvrepo "github.com/bitfantasy/procurement/internal/provider/repository"
	prvsvc "github.com/bitfantasy/procurement/internal/provider/service"
	refhandler "github.com/bitfantasy/procurement/internal/reference/handler"
	refrepo "github.com/bitfantasy/procurement/internal/reference/repository"
	refsvc "github.com/bitfantasy/procurement/internal/reference/service"
	sechandler "github.com/bitfantasy/procurement/internal/security/handler"
	secrepo "github.com/bitfantasy/procurement/internal/security/repository"
	secsvc "github.com/bitfantasy/procurement/internal/security/service"
	"github.com/bitfantasy/procurement/internal/shared/api"
	"github.com/bitfantasy/procurement/internal/shared/blob"
	"github.com/bitfantasy/procurement/internal/shared/crud"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting procurement service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := migrate(db, cfg.Database, zapLogger); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = initRedis(cfg.Redis)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis not reachable, continuing without cache", zap.Error(err))
		}
		defer rdb.Close()
	}

	store, err := initStore(cfg.Storage)
	if err != nil {
		zapLogger.Fatal("Failed to init file storage", zap.Error(err))
	}

	// Security first: its audit log is the sink of every other module.
	secRepos := secrepo.NewRepositories(db)
	secServices := secsvc.NewServices(db, secRepos, secsvc.Options{
		JWT:      cfg.JWT,
		Security: cfg.Security,
		Redis:    rdb,
		Logger:   zapLogger,
	})
	recorder := secServices.Recorder

	if err := secServices.Bootstrap(context.Background(), cfg.Security.BootstrapAdmin, zapLogger); err != nil {
		zapLogger.Fatal("Failed to bootstrap administrator", zap.Error(err))
	}

	overrides := refsvc.Overrides(cfg.ClassifierOverrides)
	refRepos := refrepo.NewRepositories(db)
	refServices := refsvc.NewServices(db, refRepos, overrides)

	prvRepos := prvrepo.NewRepositories(db)
	prvServices := prvsvc.NewServices(db, prvRepos, refRepos)

	plnRepos := plnrepo.NewRepositories(db)
	plnServices := plnsvc.NewServices(db, plnRepos, refRepos)

	ctrRepos := ctrrepo.NewRepositories(db)
	ctrServices := ctrsvc.NewServices(db, ctrRepos, ctrsvc.Deps{
		Refs:       refRepos,
		Providers:  prvRepos,
		Plans:      plnRepos,
		Exclusions: prvServices.Provider,
	}, overrides)

	docRepos := docrepo.NewRepositories(db)
	docServices := docsvc.NewServices(db, docRepos, store, cfg.Storage.MaxSize, zapLogger.Named("files"))

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	registerHealth(router, db, rdb)

	v1 := router.Group("/api/v1")
	secHandlers := sechandler.NewHandlers(secServices, recorder)
	secHandlers.RegisterPublic(v1)

	authorized := v1.Group("", middleware.JWTAuth(cfg.JWT.Secret))
	authz := api.Authorizer(middleware.RequirePermission)
	secHandlers.RegisterRoutes(authorized, authz)
	refhandler.NewHandlers(refServices, recorder).RegisterRoutes(authorized, authz)
	prvhandler.NewHandlers(prvServices, recorder).RegisterRoutes(authorized, authz)
	plnhandler.NewHandlers(plnServices, recorder).RegisterRoutes(authorized, authz)
	ctrhandler.NewHandlers(ctrServices, recorder).RegisterRoutes(authorized, authz)
	dochandler.NewHandlers(docServices, recorder).RegisterRoutes(authorized, authz)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig, zapLogger *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if zapLogger.Core().Enabled(zap.DebugLevel) {
		level = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.New(zap.NewStdLog(zapLogger.Named("gorm")), logger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = crud.OpenSQLite(cfg.Path + "?_foreign_keys=1")
		gormConfig.DisableForeignKeyConstraintWhenMigrating = true
	default:
		dialector = postgres.Open(cfg.DSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// migrate runs the goose migrations on postgres and builds the schema from the
// models on sqlite.
func migrate(db *gorm.DB, cfg config.DatabaseConfig, zapLogger *zap.Logger) error {
	if !cfg.Migrate {
		return nil
	}
	if cfg.Driver == "sqlite" {
		return migrations.AutoMigrate(db)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := migrations.Up(ctx, sqlDB, zapLogger); err != nil {
		return err
	}
	version, err := migrations.Version(ctx, sqlDB)
	if err == nil {
		zapLogger.Info("Database schema up to date", zap.Int64("version", version))
	}
	return nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func initStore(cfg config.StorageConfig) (blob.Store, error) {
	if cfg.Driver == "minio" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return blob.NewMinIOStore(ctx, blob.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
	}
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return blob.NewLocalStore(cfg.LocalPath), nil
}

func registerHealth(r *gin.Engine, db *gorm.DB, rdb *redis.Client) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		state := "ready"
		if status != http.StatusOK {
			state = "not_ready"
		}
		c.JSON(status, gin.H{"status": state, "checks": checks})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version, "build_time": BuildTime})
	})
	r.GET("/metrics", middleware.MetricsHandler())
}
