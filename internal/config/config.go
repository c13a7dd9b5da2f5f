// Package config loads settings from defaults, an optional YAML file, the
// environment (RECALL_ prefix, .env supported) and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/srs"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of every environment variable read.
const EnvPrefix = "RECALL_"

// Config is the full runtime configuration of recall.
type Config struct {
	DB       string `koanf:"db" validate:"required"`
	Addr     string `koanf:"addr" validate:"required"`
	ReposDir string `koanf:"repos_dir" validate:"required"`

	Log       LogConfig       `koanf:"log"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Scheduler srs.Params      `koanf:"scheduler"`
	CORS      CORSConfig      `koanf:"cors"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// AnalyticsConfig sets the default report window and the timezone that
// cuts calendar days.
type AnalyticsConfig struct {
	Days     int    `koanf:"days" validate:"gte=1,lte=365"`
	Timezone string `koanf:"timezone" validate:"required"`
}

// Location resolves Timezone.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, goerr.Wrap(err, "unknown timezone", goerr.V("timezone", a.Timezone), goerr.T(domain.TagValidation))
	}
	return loc, nil
}

// CORSConfig lists the origins allowed to call the HTTP API.
type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		DB:        "recall.db",
		Addr:      ":8080",
		ReposDir:  "repos",
		Log:       LogConfig{Level: "info", Format: "console"},
		Analytics: AnalyticsConfig{Days: 30, Timezone: "UTC"},
		Scheduler: srs.DefaultParams(),
		CORS:      CORSConfig{Origins: []string{"*"}},
	}
}

// Validate checks field constraints and scheduler consistency.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return goerr.Wrap(err, "invalid configuration",
				goerr.V("field", verrs[0].Namespace()),
				goerr.V("rule", verrs[0].Tag()),
				goerr.T(domain.TagValidation))
		}
		return goerr.Wrap(err, "invalid configuration", goerr.T(domain.TagValidation))
	}
	if err := c.Scheduler.Validate(); err != nil {
		return goerr.Wrap(err, "invalid scheduler configuration")
	}
	if _, err := c.Analytics.Location(); err != nil {
		return err
	}
	return nil
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"db":         "db",
	"addr":       "addr",
	"repos-dir":  "repos_dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"days":       "analytics.days",
	"timezone":   "analytics.timezone",
}

// FlagSet returns the flags understood by Load, with defaults from Default.
func FlagSet(name string) *pflag.FlagSet {
	def := Default()
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML configuration file")
	flags.String("env-file", ".env", "path to a dotenv file; missing files are ignored")
	flags.String("db", def.DB, "path to the SQLite database file")
	flags.String("addr", def.Addr, "HTTP listen address")
	flags.String("repos-dir", def.ReposDir, "directory for git source checkouts")
	flags.String("log-level", def.Log.Level, "log level: debug, info, warn or error")
	flags.String("log-format", def.Log.Format, "log format: console or json")
	flags.Int("days", def.Analytics.Days, "analytics window in days")
	flags.String("timezone", def.Analytics.Timezone, "IANA timezone used to cut calendar days")
	return flags
}

// Load parses args and returns the merged configuration along with the
// remaining positional arguments.
func Load(name string, args []string) (*Config, []string, error) {
	flags := FlagSet(name)
	if err := flags.Parse(args); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to parse flags", goerr.T(domain.TagValidation))
	}

	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, goerr.Wrap(err, "failed to load env file", goerr.V("path", envFile))
		}
	}

	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to load config file", goerr.V("path", path))
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load environment")
	}

	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagValue(flags)), nil); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load flags")
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to decode configuration", goerr.T(domain.TagValidation))
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, flags.Args(), nil
}

var sections = []string{"log", "analytics", "scheduler", "cors"}

// envKey turns RECALL_SCHEDULER_MIN_EASE into scheduler.min_ease. Only the
// first underscore after a known section becomes a dot.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	if key == "cors.origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return key, origins
	}
	return key, value
}

func flagValue(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			// Returning an empty key skips flags that are not settings.
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}
