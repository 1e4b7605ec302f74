package main

// ubuntu 后台执行的方法 nohup ./recipe_back > recipe_back.log 2>&1 &
import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/studieren/recipe_back/auth"
	"github.com/studieren/recipe_back/authz"
	"github.com/studieren/recipe_back/config"
	"github.com/studieren/recipe_back/database"
	"github.com/studieren/recipe_back/gormtool"
	"github.com/studieren/recipe_back/handlers"
	"github.com/studieren/recipe_back/logging"
	"github.com/studieren/recipe_back/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	gin.SetMode(cfg.Server.Mode)

	// 初始化 DB
	db, err := database.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := metrics.RegisterDBStats(sqlDB, cfg.Database.Driver); err != nil {
			logging.Warn().Err(err).Msg("failed to register db stats collector")
		}
	}

	// Redis 可选: 没有时吊销列表只保存在本进程内存中
	var (
		rdb     *redis.Client
		revoked auth.RevocationStore = auth.NewMemoryRevocationStore()
	)
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logging.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		revoked = auth.NewRedisRevocationStore(rdb)
	}

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create enforcer")
	}
	cruder := gormtool.NewCRUDTool(db, rdb, enforcer, nil)

	if cfg.Auth.JWTSecret == "" {
		// 仅限非 release 模式, 重启后旧 token 全部失效
		cfg.Auth.JWTSecret = uuid.NewString() + uuid.NewString()
		logging.Warn().Msg("auth.jwt_secret is empty, using a random secret for this process")
	}
	tokens, err := auth.NewTokenManager(cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create token manager")
	}
	authService := auth.NewService(db, tokens, revoked, cfg.Auth.BcryptCost)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var limiter *auth.RateLimiter
	if cfg.Server.AuthRateLimit > 0 {
		limiter = auth.NewRateLimiter(cfg.Server.AuthRateLimit, cfg.Server.AuthRateWindow)
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					limiter.Cleanup(time.Hour)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	r := handlers.NewRouter(handlers.Deps{
		Tool:    cruder,
		Auth:    authService,
		Server:  cfg.Server,
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
