package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	appName   = "pqvoice"
	envPrefix = "PQVOICE"
)

type Config struct {
	Mode      string          `mapstructure:"mode"`
	LogLevel  string          `mapstructure:"log_level"`
	Signaling SignalingConfig `mapstructure:"signaling"`
	TLS       TLSConfig       `mapstructure:"tls"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Outbound  OutboundConfig  `mapstructure:"outbound"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`
	Security  SecurityConfig  `mapstructure:"security"`
	Media     MediaConfig     `mapstructure:"media"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type SignalingConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MaxFrameSize int           `mapstructure:"max_frame_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// HTTPConfig is the admin API. It has no authentication, so it binds to
// loopback unless host says otherwise.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type OutboundConfig struct {
	QueueSize int    `mapstructure:"queue_size"`
	Overflow  string `mapstructure:"overflow"`
}

type RoomsConfig struct {
	DefaultMaxParticipants uint32 `mapstructure:"default_max_participants"`
	RemoveEmpty            bool   `mapstructure:"remove_empty"`
}

type SecurityConfig struct {
	RequireKeyExchange bool   `mapstructure:"require_key_exchange"`
	KEMScheme          string `mapstructure:"kem_scheme"`
}

type MediaConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	AudioPort   int           `mapstructure:"audio_port"`
	Codec       string        `mapstructure:"codec"`
	EndpointTTL time.Duration `mapstructure:"endpoint_ttl"`

	// Authenticate requires datagrams sealed with the key derived from the
	// signaling key exchange. Clients that only speak the plain envelope
	// cannot use an authenticated relay.
	Authenticate bool `mapstructure:"authenticate"`
}

type RateLimitConfig struct {
	ChatMessages int           `mapstructure:"chat_messages"`
	ChatInterval time.Duration `mapstructure:"chat_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")

	v.SetDefault("signaling.host", "0.0.0.0")
	v.SetDefault("signaling.port", 8443)
	v.SetDefault("signaling.max_frame_size", 64*1024)
	v.SetDefault("signaling.read_timeout", "5m")
	v.SetDefault("signaling.write_timeout", "5s")

	v.SetDefault("tls.enabled", true)
	v.SetDefault("tls.cert_file", "server.crt")
	v.SetDefault("tls.key_file", "server.key")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", 8080)

	v.SetDefault("outbound.queue_size", 256)
	v.SetDefault("outbound.overflow", "disconnect")

	v.SetDefault("rooms.default_max_participants", 10)
	v.SetDefault("rooms.remove_empty", false)

	v.SetDefault("security.require_key_exchange", false)
	v.SetDefault("security.kem_scheme", "Kyber1024")

	v.SetDefault("media.enabled", true)
	v.SetDefault("media.host", "0.0.0.0")
	v.SetDefault("media.audio_port", 10000)
	v.SetDefault("media.codec", "bincode")
	v.SetDefault("media.endpoint_ttl", "30s")
	v.SetDefault("media.authenticate", false)

	v.SetDefault("ratelimit.chat_messages", 20)
	v.SetDefault("ratelimit.chat_interval", "10s")
}

// Load reads the config file at path, or when path is empty looks for
// config.<CONFIG_ENV>.yaml in ., ./config and the XDG config dir. A missing
// file falls back to defaults. PQVOICE_* env vars override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Info().Str("module", "config").Str("file", path).Msg("loaded config")
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		v.SetConfigName("config." + env)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			log.Warn().Str("module", "config").Str("env", env).Msg("config file not found, using defaults")
		} else {
			log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("loaded config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("signaling", cfg.SignalingAddr()).Bool("tls", cfg.TLS.Enabled).Msg("config ready")
	return &cfg, nil
}

var knownSchemes = map[string]bool{"Kyber1024": true, "ML-KEM-1024": true}

func (c *Config) Validate() error {
	var errs []error
	checkPort := func(name string, p int) {
		if p < 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("%s: port %d out of range", name, p))
		}
	}
	checkPort("signaling.port", c.Signaling.Port)
	checkPort("http.port", c.HTTP.Port)
	checkPort("media.audio_port", c.Media.AudioPort)

	if c.Signaling.MaxFrameSize <= 0 {
		errs = append(errs, errors.New("signaling.max_frame_size must be positive"))
	}
	if c.Signaling.ReadTimeout < 0 || c.Signaling.WriteTimeout < 0 {
		errs = append(errs, errors.New("signaling timeouts must not be negative"))
	}
	if c.Outbound.QueueSize <= 0 {
		errs = append(errs, errors.New("outbound.queue_size must be positive"))
	}
	switch c.Outbound.Overflow {
	case "disconnect", "drop_newest", "drop_oldest":
	default:
		errs = append(errs, fmt.Errorf("outbound.overflow: unknown policy %q", c.Outbound.Overflow))
	}
	if !knownSchemes[c.Security.KEMScheme] {
		errs = append(errs, fmt.Errorf("security.kem_scheme: unknown scheme %q", c.Security.KEMScheme))
	}
	switch c.Media.Codec {
	case "bincode", "cbor":
	default:
		errs = append(errs, fmt.Errorf("media.codec: unknown codec %q", c.Media.Codec))
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls: cert_file and key_file are required"))
	}
	if c.RateLimit.ChatMessages < 0 {
		errs = append(errs, errors.New("ratelimit.chat_messages must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) SignalingAddr() string {
	return net.JoinHostPort(c.Signaling.Host, strconv.Itoa(c.Signaling.Port))
}

func (c *Config) MediaAddr() string {
	return net.JoinHostPort(c.Media.Host, strconv.Itoa(c.Media.AudioPort))
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.HTTP.Host, strconv.Itoa(c.HTTP.Port))
}
