// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（{env}.yaml，如 dev.yaml、test.yaml、prod.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在 .env 文件或环境变量中（YAML 中不存储任何密码）。
//
// 配置路径确定策略：
//  1. --config 命令行参数（显式路径）
//  2. CONFIG_DIR 环境变量
//  3. 按 APP_ENV 选择默认路径：
//     - prod → /etc/user-admin/
//     - dev/test → ./configs/
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// 冻结策略
const (
	FreezePolicyLazy  = "lazy"  // 仅在登录/刷新时拒绝，已签发的访问令牌自然过期
	FreezePolicyEager = "eager" // 冻结时写入吊销列表，守卫立即拒绝
)

// YAMLConfig 统一 YAML 配置文件结构
type YAMLConfig struct {
	APIServer APIServerConfig `yaml:"api_server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	Captcha   CaptchaConfig   `yaml:"captcha"`
	Email     EmailConfig     `yaml:"email"`
	Log       LogConfig       `yaml:"log"`
	Seed      SeedConfig      `yaml:"seed"`
}

// APIServerConfig API Server 配置
type APIServerConfig struct {
	Port string `yaml:"port"`
	URL  string `yaml:"url"` // 对外访问地址
}

// AuthConfig 认证配置
// 注意：JWTSecret 只从 JWT_SECRET 环境变量读取，不存储在 YAML 中
type AuthConfig struct {
	JWTSecret       string        `yaml:"-"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`  // 例如 "30m"
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"` // 例如 "168h"
	FreezePolicy    string        `yaml:"freeze_policy"`     // "lazy" | "eager"
	BcryptCost      int           `yaml:"bcrypt_cost"`
}

// CaptchaConfig 邮箱验证码配置
type CaptchaConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Length int           `yaml:"length"`
}

// EmailConfig SMTP 配置
// Host 为空时使用日志通知器（只打印，不发送）
type EmailConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"-"` // 只从 SMTP_PASSWORD 环境变量读取
	From      string `yaml:"from"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

// Enabled 是否配置了 SMTP
func (e EmailConfig) Enabled() bool {
	return e.Host != ""
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
}

// SeedConfig 演示数据配置
type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "postgres", "sqlite", or "mongodb"
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从环境变量读取（DB_PASSWORD / MONGO_ROOT_PASSWORD）
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	URI      string `yaml:"uri"` // MongoDB 连接 URI（优先于 host/port）
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL（优先于 host/port/db）
}

// MinIOConfig MinIO 对象存储配置（头像上传）
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000，为空表示不启用上传
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"` // 生成头像地址的前缀，默认 http(s)://{endpoint}
}

// Enabled 是否配置了 MinIO
func (m MinIOConfig) Enabled() bool {
	return m.Endpoint != ""
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "postgres", "sqlite", or "mongodb"
	DatabaseURL    string
	DatabaseDBName string // MongoDB 数据库名称
	RedisURL       string
	APIPort        string
	Auth           AuthConfig
	Captcha        CaptchaConfig
	Email          EmailConfig
	MinIO          MinIOConfig
	Log            LogConfig
	Seed           SeedConfig
	ConfigFilePath string // 实际加载的配置文件路径
}
