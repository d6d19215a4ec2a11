package main

import (
	"fmt"
	"os"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/common/db"
	"efrog/internal/common/httpmw"
	"efrog/internal/common/mq"
	"efrog/internal/common/storage"
	"efrog/internal/judge/engine"
	"efrog/internal/judge/pool"
	"efrog/internal/judge/testdata"
	submitservice "efrog/internal/submit/service"
	"efrog/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultStatusTTL       = 30 * time.Minute
	defaultFinalTopic      = "judge.result.final"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// StatusConfig holds live status persistence settings.
type StatusConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	FinalTopic string        `yaml:"finalTopic"`
}

// SubmitConfig holds submission intake settings.
type SubmitConfig struct {
	Languages       []string      `yaml:"languages"`
	MaxCodeBytes    int           `yaml:"maxCodeBytes"`
	SourceKeyPrefix string        `yaml:"sourceKeyPrefix"`
	IdempotencyTTL  time.Duration `yaml:"idempotencyTTL"`
	RateUserMax     int           `yaml:"rateUserMax"`
	RateWindow      time.Duration `yaml:"rateWindow"`
	DBTimeout       time.Duration `yaml:"dbTimeout"`
	CacheTimeout    time.Duration `yaml:"cacheTimeout"`
	StorageTimeout  time.Duration `yaml:"storageTimeout"`
	RealtimePath    string        `yaml:"realtimePath"`
}

// DebugConfig holds custom-input run limits.
type DebugConfig struct {
	MaxInputs     int `yaml:"maxInputs"`
	MaxInputBytes int `yaml:"maxInputBytes"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig             `yaml:"server"`
	Logger    logger.Config            `yaml:"logger"`
	Database  db.MySQLConfig           `yaml:"database"`
	Redis     cache.RedisConfig        `yaml:"redis"`
	Kafka     mq.KafkaConfig           `yaml:"kafka"`
	MinIO     storage.MinIOConfig      `yaml:"minio"`
	Engine    engine.ClientConfig      `yaml:"engine"`
	JudgePool pool.Config              `yaml:"judgePool"`
	DebugPool pool.Config              `yaml:"debugPool"`
	PackCache testdata.PackCacheConfig `yaml:"packCache"`
	Status    StatusConfig             `yaml:"status"`
	Submit    SubmitConfig             `yaml:"submit"`
	Debug     DebugConfig              `yaml:"debug"`
	JWT       httpmw.JWTConfig         `yaml:"jwt"`
	CORS      httpmw.CORSConfig        `yaml:"cors"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Engine.BaseURL == "" {
		return nil, fmt.Errorf("engine baseURL is required")
	}
	if cfg.PackCache.RootDir == "" {
		return nil, fmt.Errorf("packCache rootDir is required")
	}
	applyRedisDefaults(&cfg.Redis)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.FinalTopic == "" {
		cfg.Status.FinalTopic = defaultFinalTopic
	}
	if cfg.PackCache.Bucket == "" {
		cfg.PackCache.Bucket = cfg.MinIO.TestDataBucket
	}
	return &cfg, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
}

func (s SubmitConfig) toServiceOptions() (submitservice.RateLimitConfig, submitservice.TimeoutConfig) {
	rate := submitservice.RateLimitConfig{
		UserMax: s.RateUserMax,
		Window:  s.RateWindow,
	}
	timeouts := submitservice.TimeoutConfig{
		DB:      s.DBTimeout,
		Cache:   s.CacheTimeout,
		Storage: s.StorageTimeout,
	}
	return rate, timeouts
}
