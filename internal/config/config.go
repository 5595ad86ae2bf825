package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load 加载配置
//  1. 加载 .env.{env}（敏感信息）
//  2. 加载 {env}.yaml
//  3. 环境变量覆盖，构建最终配置
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)
	// .env 文件可能修改了 APP_ENV
	env = parseEnv(getEnv("APP_ENV", string(env)))

	yamlCfg, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}
	return build(env, yamlCfg)
}

// defaultYAMLConfig 硬编码默认值
func defaultYAMLConfig() *yamlConfigInternal {
	return &yamlConfigInternal{YAMLConfig: YAMLConfig{
		APIServer: APIServerConfig{Port: "3005"},
		Database: DatabaseConfig{
			Driver: "sqlite", Path: "data/user-admin.db",
			Host: "localhost", Port: 5432, User: "useradmin", Name: "user_admin", SSLMode: "disable",
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, DB: 1},
		MinIO: MinIOConfig{Bucket: "avatars"},
		Auth: AuthConfig{
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			FreezePolicy:    FreezePolicyLazy,
			BcryptCost:      12,
		},
		Captcha: CaptchaConfig{TTL: 5 * time.Minute, Length: 6},
		Email:   EmailConfig{Port: 587, Workers: 2, QueueSize: 100},
		Log:     LogConfig{Level: "info", Format: "json"},
	}}
}

// yamlConfigInternal 内部包装，记录配置文件来源（不参与 YAML 序列化）
type yamlConfigInternal struct {
	YAMLConfig `yaml:",inline"`
	loadedFrom string
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → {env}.yaml
func loadYAMLConfig(env Environment) (*yamlConfigInternal, error) {
	cfg := defaultYAMLConfig()

	path := findConfigFile(env)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg.YAMLConfig); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.loadedFrom = path
	return cfg, nil
}

// build 合并环境变量并校验
func build(env Environment, y *yamlConfigInternal) (*Config, error) {
	db := y.Database
	db.Password = firstEnv("DB_PASSWORD", "MONGO_ROOT_PASSWORD")
	databaseURL := os.Getenv("DATABASE_URL")
	driver := detectDatabaseDriver(db.Driver, databaseURL)
	db.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(db, db.Password)
	}

	redisCfg := y.Redis
	redisCfg.Password = os.Getenv("REDIS_PASSWORD")
	redisURL := getEnv("REDIS_URL", buildRedisURL(redisCfg))

	authCfg := y.Auth
	authCfg.JWTSecret = os.Getenv("JWT_SECRET")
	if v := os.Getenv("AUTH_FREEZE_POLICY"); v != "" {
		authCfg.FreezePolicy = v
	}
	authCfg.FreezePolicy = strings.ToLower(authCfg.FreezePolicy)
	if authCfg.FreezePolicy != FreezePolicyLazy && authCfg.FreezePolicy != FreezePolicyEager {
		return nil, fmt.Errorf("invalid auth.freeze_policy %q (want lazy or eager)", authCfg.FreezePolicy)
	}
	if authCfg.AccessTokenTTL <= 0 || authCfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("auth token ttl must be positive")
	}

	email := y.Email
	email.Password = os.Getenv("SMTP_PASSWORD")

	minio := y.MinIO
	minio.AccessKey = os.Getenv("MINIO_ROOT_USER")
	minio.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")

	captcha := y.Captcha
	if captcha.TTL <= 0 {
		captcha.TTL = 5 * time.Minute
	}
	if captcha.Length <= 0 {
		captcha.Length = 6
	}

	logCfg := y.Log
	logCfg.Level = getEnv("LOG_LEVEL", logCfg.Level)

	seed := y.Seed
	if v := os.Getenv("SEED_DEMO_DATA"); v != "" {
		seed.Enabled, _ = strconv.ParseBool(v)
	}

	dbName := db.Name
	if dbName == "" {
		dbName = "user_admin"
	}

	return &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		DatabaseDBName: dbName,
		RedisURL:       redisURL,
		APIPort:        getEnv("API_PORT", y.APIServer.Port),
		Auth:           authCfg,
		Captcha:        captcha,
		Email:          email,
		MinIO:          minio,
		Log:            logCfg,
		Seed:           seed,
		ConfigFilePath: y.loadedFrom,
	}, nil
}
