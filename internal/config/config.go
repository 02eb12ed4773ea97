package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/damoang/angple-messenger/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config 메신저 서버 설정
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	CORS      CORSConfig      `yaml:"cors"`
	Messaging MessagingConfig `yaml:"messaging"`
	Presence  PresenceConfig  `yaml:"presence"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Mode     string `yaml:"mode"` // development, production
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN MySQL DSN 생성
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
	RefreshIn int    `yaml:"refresh_in"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

// MessagingConfig 메시지 저장소 관련 제한값
type MessagingConfig struct {
	MaxBodyLength     int `yaml:"max_body_length"`
	PageSize          int `yaml:"page_size"`
	MaxPageSize       int `yaml:"max_page_size"`
	SendRatePerMinute int `yaml:"send_rate_per_minute"`
	// ChangesTimeout long-poll 최대 대기 (seconds)
	ChangesTimeout int `yaml:"changes_timeout"`
}

// PresenceConfig 타이핑/접속 신호 설정
type PresenceConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
	BufferSize int           `yaml:"buffer_size"`
}

// Default returns a Config populated with defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8083, Mode: "development", LogLevel: "info"},
		Database: DatabaseConfig{
			Host: "localhost", Port: 3306, User: "root", DBName: "angple_messenger",
			MaxIdleConns: 10, MaxOpenConns: 50, ConnMaxLifetime: 300,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379, PoolSize: 20},
		JWT:   JWTConfig{ExpiresIn: 900, RefreshIn: 604800},
		Messaging: MessagingConfig{
			MaxBodyLength:     4000,
			PageSize:          30,
			MaxPageSize:       100,
			SendRatePerMinute: 60,
			ChangesTimeout:    25,
		},
		Presence: PresenceConfig{StaleAfter: 5 * time.Second, BufferSize: 64},
	}
}

// Load reads the YAML file at path on top of Default(), then applies env overrides.
// A missing file is not an error: defaults + env are enough for local runs.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logger.Warn("config file %s not found, using defaults", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment 개발 모드 여부
func (c *Config) IsDevelopment() bool {
	return c.Server.Mode == "development" || c.Server.Mode == "dev" || c.Server.Mode == "local"
}

// Validate checks required values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set JWT_SECRET)")
	}
	if c.Messaging.MaxBodyLength <= 0 {
		return fmt.Errorf("messaging.max_body_length must be positive")
	}
	if c.Messaging.PageSize <= 0 || c.Messaging.MaxPageSize < c.Messaging.PageSize {
		return fmt.Errorf("messaging.page_size must be positive and <= max_page_size")
	}
	if c.Presence.StaleAfter <= 0 {
		return fmt.Errorf("presence.stale_after must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Mode, "APP_MODE")
	setString(&cfg.Server.LogLevel, "LOG_LEVEL")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Int("port", cfg.Server.Port).
		Str("mode", cfg.Server.Mode).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.DBName).
		Str("redis", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)).
		Bool("jwt_secret_present", cfg.JWT.Secret != "").
		Int("max_body_length", cfg.Messaging.MaxBodyLength).
		Dur("presence_stale_after", cfg.Presence.StaleAfter).
		Msg("config resolved")
}
