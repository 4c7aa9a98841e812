package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"Lee_Social/internal/pkg"
	"Lee_Social/internal/repository/mongo"
	"Lee_Social/internal/repository/mysql"
	"Lee_Social/internal/repository/neo4j"
	"Lee_Social/internal/repository/redis"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix SOCIAL_MONGO__URI -> mongo.uri
	EnvPrefix = "SOCIAL_"
	// ConfigPathEnvVar 配置文件路径
	ConfigPathEnvVar = "CONFIG_PATH"
)

// DefaultConfigPaths 未指定路径时依次查找
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lee-social/config.yaml",
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	Mode string `koanf:"mode" validate:"oneof=debug release test"`
}

type SocialConfig struct {
	FriendsVisibility string        `koanf:"friends_visibility" validate:"oneof=follower friend"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval" validate:"gt=0"`
	ReconcileBatch    int           `koanf:"reconcile_batch" validate:"gte=1"`
	OutboxInterval    time.Duration `koanf:"outbox_interval" validate:"gt=0"`
	OutboxBatch       int           `koanf:"outbox_batch" validate:"gte=1"`
	OutboxMaxRetry    int           `koanf:"outbox_max_retry" validate:"gte=1"`
}

type Config struct {
	Server ServerConfig    `koanf:"server"`
	Mongo  mongo.Config    `koanf:"mongo"`
	Neo4j  neo4j.Config    `koanf:"neo4j"`
	MySQL  mysql.Config    `koanf:"mysql"`
	Redis  redis.Config    `koanf:"redis"`
	Kafka  pkg.KafkaConfig `koanf:"kafka"`
	SMTP   pkg.SMTPConfig  `koanf:"smtp"`
	JWT    pkg.JWTConfig   `koanf:"jwt"`
	Log    pkg.LogConfig   `koanf:"log"`
	Social SocialConfig    `koanf:"social"`
}

// Default 默认值，随后被配置文件和环境变量覆盖
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", Mode: "release"},
		Mongo: mongo.Config{
			URI:      "mongodb://127.0.0.1:27017",
			Database: "social",
			Timeout:  5 * time.Second,
		},
		Neo4j: neo4j.Config{
			URI:     "neo4j://127.0.0.1:7687",
			Timeout: 3 * time.Second,
			Breaker: neo4j.BreakerConfig{
				FailureThreshold: 5,
				MaxRequests:      1,
				Interval:         time.Minute,
				OpenTimeout:      30 * time.Second,
			},
		},
		MySQL: mysql.Config{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnMaxLife:  time.Hour,
		},
		Redis: redis.Config{Addr: "127.0.0.1:6379"},
		Kafka: pkg.KafkaConfig{Topic: "social.relations", WriteTimeout: time.Second},
		SMTP:  pkg.SMTPConfig{Port: 587},
		JWT: pkg.JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Log: pkg.LogConfig{Level: "info", Format: "json"},
		Social: SocialConfig{
			FriendsVisibility: "follower",
			ReconcileInterval: 5 * time.Minute,
			ReconcileBatch:    500,
			OutboxInterval:    5 * time.Second,
			OutboxBatch:       200,
			OutboxMaxRetry:    10,
		},
	}
}

// Load 默认值 < 配置文件 < 环境变量
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if brokers, ok := k.Get("kafka.brokers").(string); ok {
		if err := k.Set("kafka.brokers", splitList(brokers)); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 结构体标签校验
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// envKey SOCIAL_NEO4J__BREAKER__OPEN_TIMEOUT -> neo4j.breaker.open_timeout
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
