package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"connectify/tools/errs"
)

// AppConfig is the whole process configuration, loaded once at startup from a
// TOML file with a handful of environment overrides for containerized runs.
type AppConfig struct {
	Node  NodeConfig  `toml:"node"`
	HTTP  HTTPConfig  `toml:"http"`
	Mongo MongoConfig `toml:"mongo"`
	Redis RedisConfig `toml:"redis"`
	Bus   BusConfig   `toml:"bus"`
	Auth  AuthConfig  `toml:"auth"`
	Log   LogConfig   `toml:"log"`
}

type NodeConfig struct {
	ID          string `toml:"id"`           // unique per gateway instance
	SnowflakeID int64  `toml:"snowflake_id"` // 0~1023
}

type HTTPConfig struct {
	Port int `toml:"port"`
}

type MongoConfig struct {
	URI         string `toml:"uri"`
	Database    string `toml:"database"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	MaxPoolSize uint64 `toml:"max_pool_size"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// BusConfig selects how events reach users connected to other gateway nodes.
// Mode "none" keeps everything in-process (single node deployments).
type BusConfig struct {
	Mode  string      `toml:"mode"` // none | kafka | nats
	Kafka KafkaConfig `toml:"kafka"`
	Nats  NatsConfig  `toml:"nats"`
}

type KafkaConfig struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type NatsConfig struct {
	Servers []string `toml:"servers"`
	Subject string   `toml:"subject"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// PresenceTTL is how long a redis presence entry lives without a heartbeat.
const PresenceTTL = 90 * time.Second

var (
	global AppConfig
	once   sync.Once
)

func defaults() AppConfig {
	return AppConfig{
		Node:  NodeConfig{ID: "gateway-1", SnowflakeID: 1},
		HTTP:  HTTPConfig{Port: 8080},
		Mongo: MongoConfig{URI: "mongodb://localhost:27017", Database: "connectify", MaxPoolSize: 20},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Bus:   BusConfig{Mode: "none", Kafka: KafkaConfig{Topic: "connectify-events"}, Nats: NatsConfig{Subject: "connectify.events"}},
		Log:   LogConfig{Level: "info"},
	}
}

// Load parses the TOML file at path into the process-wide config. Missing
// file is not an error when CONNECTIFY_ALLOW_DEFAULTS is set; defaults apply.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			allowMissing := os.IsNotExist(err) && os.Getenv("CONNECTIFY_ALLOW_DEFAULTS") != ""
			if !allowMissing {
				return nil, errs.WrapMsg(err, "decode config "+path)
			}
		}
	}
	applyEnv(&cfg)
	if cfg.Auth.JWTSecret == "" {
		return nil, errs.ErrArgs.WrapMsg("auth.jwt_secret is required")
	}
	global = cfg
	return &global, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("CONNECTIFY_NODE_ID"); v != "" {
		cfg.Node.ID = v
	}
	if v := os.Getenv("CONNECTIFY_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("CONNECTIFY_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CONNECTIFY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CONNECTIFY_BUS_MODE"); v != "" {
		cfg.Bus.Mode = v
	}
}

// Get returns the loaded config; before Load it returns defaults, which keeps
// unit tests free of config files.
func Get() *AppConfig {
	once.Do(func() {
		if global.Node.ID == "" {
			global = defaults()
		}
	})
	return &global
}
