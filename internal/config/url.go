package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// buildDatabaseURL 根据驱动类型构建数据库连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	switch strings.ToLower(db.Driver) {
	case "sqlite":
		dbPath := db.Path
		if dbPath == "" {
			dbPath = "/var/lib/user-admin/user-admin.db"
		}
		return fmt.Sprintf("file:%s?cache=shared&mode=rwc", dbPath)
	case "mongodb":
		if db.URI != "" {
			return db.URI
		}
		if db.User != "" && password != "" {
			return fmt.Sprintf("mongodb://%s:%s@%s:%d", db.User, password, db.Host, db.Port)
		}
		return fmt.Sprintf("mongodb://%s:%d", db.Host, db.Port)
	default: // postgres
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
	}
}

// detectDatabaseDriver 检测数据库驱动类型
// 优先级：DATABASE_URL 前缀 > YAML driver 字段 > 默认 sqlite
func detectDatabaseDriver(yamlDriver, databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "file:"), strings.HasPrefix(databaseURL, "sqlite:"):
		return "sqlite"
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(databaseURL, "mongodb://"), strings.HasPrefix(databaseURL, "mongodb+srv://"):
		return "mongodb"
	}
	if d := strings.ToLower(yamlDriver); d == "sqlite" || d == "postgres" || d == "mongodb" {
		return d
	}
	return "sqlite"
}

// buildRedisURL 构建 Redis 连接字符串
// 如果 URL 字段非空，直接使用；否则从 host/port/db/password 构建
func buildRedisURL(redis RedisConfig) string {
	if redis.URL != "" {
		return redis.URL
	}
	if redis.Password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", redis.Password, redis.Host, redis.Port, redis.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

var passwordInURL = regexp.MustCompile(`(://[^:/@]*:)([^@]+)(@)`)

// maskPassword 隐藏密码
func maskPassword(url string) string {
	return passwordInURL.ReplaceAllString(url, "${1}***${3}")
}

// parseEnv 解析环境字符串
func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

// firstEnv 返回第一个非空的环境变量值
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnv 获取环境变量，支持默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s, Redis: %s, FreezePolicy: %s}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL), maskPassword(c.RedisURL), c.Auth.FreezePolicy)
}
