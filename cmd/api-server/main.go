// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-admin/internal/apiserver/auth"
	"user-admin/internal/apiserver/server"
	"user-admin/internal/apiserver/user"
	"user-admin/internal/config"
	"user-admin/internal/shared/infra"
	"user-admin/internal/shared/notify"
	"user-admin/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "配置文件目录（默认 ./configs）")
	seed := flag.Bool("seed", false, "启动时写入演示数据")
	flag.Parse()

	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}

	// 加载配置（.env.{env} + {env}.yaml + 环境变量）
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Component: "api-server",
	})
	logger.Info("starting API server", slog.String("env", string(cfg.Env)), slog.String("config", cfg.String()))

	if err := run(cfg, logger, *seed); err != nil {
		logger.WithError(err).Error("server exited")
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *logging.Logger, seed bool) error {
	ctx := context.Background()
	metrics := server.NewMetrics("user_admin")

	// 存储、Redis、MinIO
	deps, err := infra.New(ctx, cfg, infra.Options{Logger: logger, QueryObserver: metrics.RecordDBQuery})
	if err != nil {
		return err
	}
	defer deps.Close()

	tokens, err := auth.NewTokenService(auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)

	if seed || cfg.Seed.Enabled {
		if err := user.Seed(ctx, deps.Storage, hasher, logger); err != nil {
			return err
		}
	}

	// 邮件异步发送
	dispatcher := notify.NewDispatcher(notify.New(cfg.Email, logger), logger.Named("notify"),
		cfg.Email.Workers, cfg.Email.QueueSize)
	dispatcher.OnDrop = func(notify.Mail) { metrics.EmailDropped() }
	dispatcher.OnResult = func(_ notify.Mail, err error) { metrics.EmailSent(err) }

	// 冻结立即生效时才启用吊销列表
	var revoked auth.RevocationChecker
	if cfg.Auth.FreezePolicy == config.FreezePolicyEager {
		revoked = deps.Cache
	}
	guard := auth.NewGuard(tokens, revoked, logger)

	userDeps := user.Deps{
		Store:       deps.Storage,
		Codes:       deps.Cache,
		Revocations: deps.Cache,
		Hasher:      hasher,
		Tokens:      tokens,
		Mailer:      dispatcher,
		Observer:    metrics,
		Logger:      logger,
	}
	if deps.Avatars != nil {
		userDeps.Avatars = deps.Avatars
	}
	svc := user.NewService(userDeps, user.Options{
		FreezePolicy: cfg.Auth.FreezePolicy,
		CodeTTL:      cfg.Captcha.TTL,
		CodeLength:   cfg.Captcha.Length,
	})

	checks := map[string]server.HealthCheck{}
	for name, fn := range deps.Checks() {
		checks[name] = fn
	}
	h := server.NewHandler(server.Deps{
		Guard:   guard,
		Users:   user.NewHandler(svc, logger),
		Metrics: metrics,
		Logger:  logger,
		Checks:  checks,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	// 优雅关闭
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("server shutdown error")
		}
		// 等待队列中的验证码邮件发送完毕
		if err := dispatcher.Close(ctx); err != nil {
			logger.WithError(err).Warn("email queue not drained")
		}
	}()

	logger.Info("API server listening", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	return nil
}
