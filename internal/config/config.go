package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`

	Identity Identity `mapstructure:"identity"`
	Signal   Signal   `mapstructure:"signal"`
	REST     REST     `mapstructure:"rest"`
	Chat     Chat     `mapstructure:"chat"`
	Call     Call     `mapstructure:"call"`
	RTC      RTC      `mapstructure:"rtc"`
}

type Identity struct {
	UserID string `mapstructure:"user_id"`
	Token  string `mapstructure:"token"`
}

type Signal struct {
	URL        string        `mapstructure:"url"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

type REST struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Chat struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	HistoryLimit int           `mapstructure:"history_limit"`
	SendLimit    int           `mapstructure:"send_limit"`
	SendWindow   time.Duration `mapstructure:"send_window"`
}

type Call struct {
	RingTimeout    time.Duration `mapstructure:"ring_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	DisposeDelay   time.Duration `mapstructure:"dispose_delay"`
	Video          bool          `mapstructure:"video"`
}

type RTC struct {
	ICEServers []string `mapstructure:"ice_servers"`
	PortMin    uint16   `mapstructure:"port_min"`
	PortMax    uint16   `mapstructure:"port_max"`
}

var (
	ErrMissingIdentity = errors.New("identity.user_id is required")
	ErrMissingSignal   = errors.New("signal.url is required")
)

// Addr is the loopback listen address of the local UI API.
func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// RESTBaseURL is rest.base_url, or the http origin of the signaling url when unset.
func (c *Config) RESTBaseURL() string {
	if c.REST.BaseURL != "" {
		return c.REST.BaseURL
	}
	u, err := url.Parse(c.Signal.URL)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	default:
		u.Scheme = "http"
	}
	return u.Scheme + "://" + u.Host
}

func (c *Config) Validate() error {
	if c.Identity.UserID == "" {
		return ErrMissingIdentity
	}
	if c.Signal.URL == "" {
		return ErrMissingSignal
	}
	if c.RTC.PortMin > c.RTC.PortMax {
		return fmt.Errorf("rtc port range %d-%d is inverted", c.RTC.PortMin, c.RTC.PortMax)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8090)
	v.SetDefault("static_path", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("identity.user_id", "")
	v.SetDefault("identity.token", "")

	v.SetDefault("signal.url", "")
	v.SetDefault("signal.read_limit", 1<<20)
	v.SetDefault("signal.ping_period", "54s")
	v.SetDefault("signal.base_delay", "3s")
	v.SetDefault("signal.max_delay", "30s")
	v.SetDefault("signal.send_buffer", 64)

	v.SetDefault("rest.base_url", "")
	v.SetDefault("rest.timeout", "10s")

	v.SetDefault("chat.poll_interval", "3s")
	v.SetDefault("chat.history_limit", 50)
	v.SetDefault("chat.send_limit", 10)
	v.SetDefault("chat.send_window", "5s")

	v.SetDefault("call.ring_timeout", "30s")
	v.SetDefault("call.connect_timeout", "20s")
	v.SetDefault("call.dispose_delay", "2s")
	v.SetDefault("call.video", false)

	v.SetDefault("rtc.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("rtc.port_min", 0)
	v.SetDefault("rtc.port_max", 0)
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults, then VOICE_*
// environment variables, then any flags in fs bound by their viper key.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if key, ok := f.Annotations[FlagKey]; ok && len(key) == 1 {
				if err := v.BindPFlag(key[0], f); err != nil && bindErr == nil {
					bindErr = err
				}
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Str("addr", cfg.Addr()).Str("user", cfg.Identity.UserID).Msg("config ready")
	return &cfg, nil
}

// FlagKey is the pflag annotation naming the viper key a flag overrides.
const FlagKey = "viper_key"

// BindKey marks flag name in fs as an override for key.
func BindKey(fs *pflag.FlagSet, name, key string) error {
	return fs.SetAnnotation(name, FlagKey, []string{key})
}
