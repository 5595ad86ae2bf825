// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：持久化存储（SQLite / PostgreSQL / MongoDB）
//   - Cache：验证码与令牌吊销列表（Redis）
//   - Avatars：头像对象存储（MinIO，可选）
package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"user-admin/internal/config"
	cacheredis "user-admin/internal/shared/cache/redis"
	"user-admin/internal/shared/objstore"
	"user-admin/internal/shared/storage"
	pgdriver "user-admin/internal/shared/storage/driver/postgres"
	sqlitedriver "user-admin/internal/shared/storage/driver/sqlite"
	"user-admin/internal/shared/storage/mongostore"
	"user-admin/internal/shared/storage/repository"
	"user-admin/pkg/logging"
)

// Pinger 可做连通性检查的组件
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options 初始化选项
type Options struct {
	Logger *logging.Logger
	// QueryObserver SQL 查询耗时回调，MongoDB 不使用
	QueryObserver func(operation, table string, d time.Duration)
}

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Storage 持久化存储
	Storage storage.Store

	// Cache 验证码存储与吊销列表
	Cache *cacheredis.Store

	// Avatars 头像存储，未配置 MinIO 时为 nil
	Avatars *objstore.Client
}

// New 按配置连接所有依赖，任一步失败都会关闭已打开的连接
func New(ctx context.Context, cfg *config.Config, opts Options) (*Infrastructure, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Named("infra")

	store, err := OpenStorage(ctx, cfg, logger, opts.QueryObserver)
	if err != nil {
		return nil, err
	}
	i := &Infrastructure{Storage: store}
	logger.Info("storage ready", slog.String("driver", cfg.DatabaseDriver))

	i.Cache, err = cacheredis.NewStoreFromURL(cfg.RedisURL)
	if err != nil {
		i.Close()
		return nil, err
	}
	logger.Info("redis ready")

	if cfg.MinIO.Enabled() {
		i.Avatars, err = objstore.NewClient(cfg.MinIO)
		if err != nil {
			i.Close()
			return nil, err
		}
		if err := i.Avatars.EnsureBucket(ctx); err != nil {
			i.Close()
			return nil, fmt.Errorf("ensure avatar bucket: %w", err)
		}
		logger.Info("object storage ready", slog.String("endpoint", cfg.MinIO.Endpoint))
	} else {
		logger.Warn("minio endpoint not configured, avatar upload disabled")
	}
	return i, nil
}

// OpenStorage 按驱动类型打开存储并执行 Schema 迁移
func OpenStorage(ctx context.Context, cfg *config.Config, logger *logging.Logger,
	observer func(operation, table string, d time.Duration)) (storage.Store, error) {
	switch cfg.DatabaseDriver {
	case "mongodb":
		s, err := mongostore.NewStore(cfg.DatabaseURL, cfg.DatabaseDBName)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return s, nil
	case "postgres":
		db, err := pgdriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		dialect := pgdriver.NewDialect()
		if err := dialect.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return repository.NewStore(db, dialect).WithLogger(logger).WithQueryObserver(observer), nil
	case "sqlite", "":
		if dir := sqliteDir(cfg.DatabaseURL); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := sqlitedriver.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		dialect := sqlitedriver.NewDialect()
		if err := dialect.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return repository.NewStore(db, dialect).WithLogger(logger).WithQueryObserver(observer), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

// sqliteDir 从 DSN 中取出数据库文件所在目录，内存库返回空
func sqliteDir(dsn string) string {
	p := strings.TrimPrefix(strings.TrimPrefix(dsn, "file:"), "sqlite:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" || strings.Contains(p, ":memory:") {
		return ""
	}
	if dir := filepath.Dir(p); dir != "." {
		return dir
	}
	return ""
}

// Checks 健康检查项：database、redis
func (i *Infrastructure) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if p, ok := i.Storage.(Pinger); ok {
		checks["database"] = p.Ping
	}
	if i.Cache != nil {
		checks["redis"] = i.Cache.Ping
	}
	return checks
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var errs []error
	if i.Storage != nil {
		errs = append(errs, i.Storage.Close())
	}
	if i.Cache != nil {
		errs = append(errs, i.Cache.Close())
	}
	return errors.Join(errs...)
}
