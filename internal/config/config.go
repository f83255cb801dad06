package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	StaticPath   string        `mapstructure:"static_path"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	HubBuffer    int           `mapstructure:"hub_buffer"`
	Backpressure string        `mapstructure:"backpressure"`
	Secret       string        `mapstructure:"secret"`
	LogLevel     string        `mapstructure:"log_level"`
	HistoryLimit int           `mapstructure:"history_limit"`

	Auth       AuthConfig      `mapstructure:"auth"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Redis      RedisConfig     `mapstructure:"redis"`
	ICEServers []ICEServer     `mapstructure:"ice_servers"`
}

type AuthConfig struct {
	Secret         string `mapstructure:"secret"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
	AllowAnonymous bool   `mapstructure:"allow_anonymous"`
}

type RateLimitConfig struct {
	Events   int           `mapstructure:"events"`
	Interval time.Duration `mapstructure:"interval"`
}

// RedisConfig enables the presence mirror when Addr is set.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// PongWait is how long a connection may stay silent before it is considered dead.
func (c *Config) PongWait() time.Duration {
	return c.PingPeriod * 10 / 9
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("hub_buffer", 256)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("history_limit", 100)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.allow_anonymous", true)
	v.SetDefault("rate_limit.events", 50)
	v.SetDefault("rate_limit.interval", "1s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.presence_ttl", "60s")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Any key can be
// overridden from the environment, e.g. MEETRELAY_AUTH_SECRET.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("MEETRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Bool("anonymous", cfg.Auth.AllowAnonymous).
		Bool("presence", cfg.Redis.Addr != "").
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.PingPeriod <= 0:
		return fmt.Errorf("ping_period must be positive")
	case c.SendBuffer <= 0:
		return fmt.Errorf("send_buffer must be positive")
	case c.Auth.Secret == "" && !c.Auth.AllowAnonymous:
		return fmt.Errorf("auth.secret is required when anonymous access is disabled")
	}
	return nil
}
