package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/routecache/internal/config"
	"github.com/xxxsen/routecache/internal/db"
	"github.com/xxxsen/routecache/internal/handler"
	"github.com/xxxsen/routecache/internal/job"
	"github.com/xxxsen/routecache/internal/middleware"
	"github.com/xxxsen/routecache/internal/repo"
	"github.com/xxxsen/routecache/internal/resultcache"
	"github.com/xxxsen/routecache/internal/schedule"
	"github.com/xxxsen/routecache/internal/service"
)

func main() {
	var configPath string
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "routecache",
		Short: "route result cache server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run routecache server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded",
				zap.String("config", configPath),
				zap.String("driver", cfg.DB.Driver),
				zap.String("table", cfg.DB.Table),
			)

			conn, err := db.Open(cfg.DB)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if !cfg.DB.SkipCreateTable {
				if err := conn.EnsureTable(context.Background(), cfg.DB.Table); err != nil {
					logutil.GetLogger(context.Background()).Error("ensure table failed, requests will fail until it exists", zap.Error(err))
				}
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json (optional, environment only when empty)")
	runCmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env when present)")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *db.DB) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.String("addr", addr),
		zap.Int("pool_size", cfg.DB.PoolSize),
		zap.Int("lru_size", cfg.Cache.Size),
	)

	resultRepo := repo.NewResultRepo(conn, cfg.DB.Table)
	store := resultcache.WrapLRU(resultRepo, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	resultService := service.NewResultService(store)

	deps := handler.RouterDeps{
		Results: handler.NewResultHandler(resultService),
		Index:   handler.NewIndexHandler(cfg.HTTP.StaticDir),
	}

	middlewares := []gin.HandlerFunc{
		middleware.RequestID(),
		middleware.CORS(cfg.HTTP.CORSAllowlist),
		middleware.BodyLimit(cfg.HTTP.BodyLimitMB * 1024 * 1024),
		middleware.RateLimit(time.Duration(cfg.HTTP.RateLimitMS) * time.Millisecond),
	}
	if cfg.HTTP.Gzip {
		middlewares = append(middlewares, gzip.Gzip(gzip.DefaultCompression))
	}

	engine, err := webapi.NewEngine(
		"/",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(middlewares...),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Retention.MaxAgeDays > 0 {
		scheduler := schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewResultCleanupJob(store, cfg.Retention.MaxAgeDays), cfg.Retention.Spec); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
