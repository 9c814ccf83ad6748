package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// key levels: MEMORIA_SERVER__ADDR sets server.addr.
const EnvPrefix = "MEMORIA_"

type Config struct {
	Server ServerConfig `koanf:"server"`
	DB     DBConfig     `koanf:"db"`
	Auth   AuthConfig   `koanf:"auth"`
	Review ReviewConfig `koanf:"review"`
	Sync   SyncConfig   `koanf:"sync"`
	Log    LogConfig    `koanf:"log"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type AuthConfig struct {
	Secret   string `koanf:"secret" validate:"required,min=16"`
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`

	// Admins lists the emails allowed to manage fiche sources over HTTP.
	Admins []string `koanf:"admins" validate:"dive,email"`
}

type ReviewConfig struct {
	// MaxInterval caps review intervals; zero leaves them uncapped.
	MaxInterval time.Duration `koanf:"max_interval" validate:"gte=0"`
}

type SyncConfig struct {
	// Schedule is a cron spec for periodic catalog syncs; empty disables it.
	Schedule string `koanf:"schedule"`
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"addr":          "server.addr",
	"db":            "db.path",
	"auth-secret":   "auth.secret",
	"auth-issuer":   "auth.issuer",
	"auth-audience": "auth.audience",
	"auth-admins":   "auth.admins",
	"max-interval":  "review.max_interval",
	"sync-schedule": "sync.schedule",
	"repos-dir":     "sync.repos_dir",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// RegisterFlags adds the config flags, with their defaults, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("db", "memoria.db", "Path to the SQLite database file")
	fs.String("auth-secret", "", "HMAC secret for bearer tokens")
	fs.String("auth-issuer", "", "Required token issuer (optional)")
	fs.String("auth-audience", "", "Required token audience (optional)")
	fs.StringSlice("auth-admins", nil, "Emails allowed to manage fiche sources (comma-separated)")
	fs.Duration("max-interval", 0, "Cap on review intervals (0 = uncapped)")
	fs.String("sync-schedule", "@every 1h", "Cron schedule for fiche source sync (empty disables)")
	fs.String("repos-dir", "repos", "Directory for cloned fiche repositories")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("log-format", "text", "Log format: text or json")
}

// Load layers the YAML file named by --config, MEMORIA_* environment
// variables and parsed flags (later wins; flag defaults fill gaps), then
// validates the result.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s, v string) (string, interface{}) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
		if key == "auth.admins" {
			var admins []string
			for _, a := range strings.Split(v, ",") {
				if a = strings.TrimSpace(a); a != "" {
					admins = append(admins, a)
				}
			}
			return key, admins
		}
		return key, v
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	err = k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the sync schedule.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Sync.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
			return fmt.Errorf("invalid config: sync.schedule: %w", err)
		}
	}
	return nil
}
