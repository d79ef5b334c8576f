package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides). The edge and
// central binaries share the type; each reads only its own sections.
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Sync struct {
		URL             string `mapstructure:"url"`
		Token           string `mapstructure:"token"`
		IntervalSeconds int    `mapstructure:"interval_seconds"`
		TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
		CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	} `mapstructure:"sync"`

	Stats struct {
		URL         string `mapstructure:"url"`
		Token       string `mapstructure:"token"`
		AccountID   int64  `mapstructure:"account_id"`
		PushSeconds int    `mapstructure:"push_seconds"`
		QueueSize   int    `mapstructure:"queue_size"`
	} `mapstructure:"stats"`

	Edge struct {
		UpstreamURL string `mapstructure:"upstream_url"`
	} `mapstructure:"edge"`

	Classify struct {
		CountryHeader string `mapstructure:"country_header"`
		RegionHeader  string `mapstructure:"region_header"`
	} `mapstructure:"classify"`

	Bandit struct {
		Policy string `mapstructure:"policy"`
	} `mapstructure:"bandit"`

	Central struct {
		AuthToken string `mapstructure:"auth_token"`
		AccountID int64  `mapstructure:"account_id"`
	} `mapstructure:"central"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("TDS")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Postgres.Port == 0 { c.Postgres.Port = 5432 }
	if c.Postgres.SSLMode == "" { c.Postgres.SSLMode = "disable" }
	if c.Postgres.MaxOpenConns == 0 { c.Postgres.MaxOpenConns = 10 }
	if c.Postgres.MaxIdleConns == 0 { c.Postgres.MaxIdleConns = 10 }
	if c.Sync.IntervalSeconds <= 0 { c.Sync.IntervalSeconds = 60 }
	if c.Sync.TimeoutSeconds <= 0 { c.Sync.TimeoutSeconds = 10 }
	if c.Sync.CacheTTLSeconds <= 0 { c.Sync.CacheTTLSeconds = 300 }
	if c.Stats.PushSeconds <= 0 { c.Stats.PushSeconds = 60 }
	if c.Stats.QueueSize <= 0 { c.Stats.QueueSize = 4096 }
	if c.Classify.CountryHeader == "" { c.Classify.CountryHeader = "CF-IPCountry" }
	if c.Classify.RegionHeader == "" { c.Classify.RegionHeader = "CF-Region" }
	if c.Bandit.Policy == "" { c.Bandit.Policy = "thompson" }
	if c.Listener.Channel == "" { c.Listener.Channel = "tds_data_change" }
	if c.Listener.ReconnectSeconds <= 0 { c.Listener.ReconnectSeconds = 5 }
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) SyncInterval() time.Duration { return time.Duration(c.Sync.IntervalSeconds) * time.Second }
func (c Config) SyncTimeout() time.Duration  { return time.Duration(c.Sync.TimeoutSeconds) * time.Second }
func (c Config) CacheTTL() time.Duration     { return time.Duration(c.Sync.CacheTTLSeconds) * time.Second }
func (c Config) PushInterval() time.Duration { return time.Duration(c.Stats.PushSeconds) * time.Second }
func (c Config) Backoff() time.Duration      { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }
