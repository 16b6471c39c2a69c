package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"salesplan/internal/db"
	"salesplan/internal/importer"
	"salesplan/internal/logger"
	"salesplan/internal/validation"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is loaded from the environment. Nested keys map to upper-case
// variables joined by underscores, so import.max_file_size is read from
// IMPORT_MAX_FILE_SIZE.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"`
	Database db.Config     `mapstructure:"database"`
	Log      logger.Config `mapstructure:"log"`
	Import   ImportConfig  `mapstructure:"import"`
	Auth     AuthConfig    `mapstructure:"auth"`
	Rate     RateConfig    `mapstructure:"rate"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" default:"8080"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" default:"30s"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" default:"60s"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" default:"60s"`
	CORSOrigin     string        `mapstructure:"cors_origin" default:"*"`
}

type ImportConfig struct {
	MaxFileSize         int64  `mapstructure:"max_file_size" default:"10485760"`
	PreviewLimit        int    `mapstructure:"preview_limit" default:"100"`
	FutureHorizonMonths int    `mapstructure:"future_horizon_months" default:"18"`
	MatchCaseSensitive  bool   `mapstructure:"match_case_sensitive" default:"false"`
	HOPRetailer         string `mapstructure:"hop_retailer" default:"HOP"`
}

type AuthConfig struct {
	// APIKeys is a comma separated list of actor:key pairs.
	APIKeys string `mapstructure:"api_keys" default:""`
}

type RateConfig struct {
	PerMinute int `mapstructure:"per_minute" default:"30"`
	Burst     int `mapstructure:"burst" default:"10"`
}

// Load reads dir/.env when present, then the environment.
func Load(dir string) (*Config, error) {
	envPath := filepath.Join(dir, ".env")
	_ = godotenv.Overload(envPath)

	v := viper.New()
	bindValues(v, Config{}, "")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// bindValues registers every tagged field with its default so AutomaticEnv
// can see it.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		v.SetDefault(key, field.Tag.Get("default"))
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, errors.New("database.url is required (DATABASE_URL)"))
	}
	if c.Import.MaxFileSize <= 0 || c.Import.MaxFileSize > 10<<20 {
		errs = append(errs, fmt.Errorf("import.max_file_size must be between 1 and %d bytes", 10<<20))
	}
	if c.Import.PreviewLimit <= 0 {
		errs = append(errs, errors.New("import.preview_limit must be positive"))
	}
	if c.Import.FutureHorizonMonths <= 0 {
		errs = append(errs, errors.New("import.future_horizon_months must be positive"))
	}
	if c.Rate.PerMinute <= 0 || c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("rate.per_minute and rate.burst must be positive"))
	}
	if _, err := c.Auth.Keys(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Keys returns the configured API keys mapped to the actor they identify.
func (a AuthConfig) Keys() (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range strings.Split(a.APIKeys, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		actor, key, ok := strings.Cut(pair, ":")
		actor, key = strings.TrimSpace(actor), strings.TrimSpace(key)
		if !ok || actor == "" || key == "" {
			return nil, fmt.Errorf("auth.api_keys entry %q must look like actor:key", pair)
		}
		if _, dup := keys[key]; dup {
			return nil, fmt.Errorf("auth.api_keys: key for %q is already assigned", actor)
		}
		keys[key] = actor
	}
	return keys, nil
}

func (c *Config) ImporterOptions() importer.Options {
	return importer.Options{
		MaxFileSize:  c.Import.MaxFileSize,
		PreviewLimit: c.Import.PreviewLimit,
		HOPRetailer:  c.Import.HOPRetailer,
		Validation: validation.Options{
			Matcher:       validation.Matcher{CaseSensitive: c.Import.MatchCaseSensitive},
			HorizonMonths: c.Import.FutureHorizonMonths,
		},
	}
}
