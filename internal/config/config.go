package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ehr/careinsights/internal/platform/db"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Env             string        `mapstructure:"ENV"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	DataSource      string        `mapstructure:"DATA_SOURCE"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	DBSchema        string        `mapstructure:"DB_SCHEMA"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS"`
	DataDir         string        `mapstructure:"DATA_DIR"`
	TruthyLiterals  []string      `mapstructure:"TRUTHY_LITERALS"`
	FalsyLiterals   []string      `mapstructure:"FALSY_LITERALS"`
	DatetimeLayouts []string      `mapstructure:"DATETIME_LAYOUTS"`
	ReportTimeout   time.Duration `mapstructure:"REPORT_TIMEOUT"`
	SnapshotTTL     time.Duration `mapstructure:"SNAPSHOT_TTL"`
	SnapshotLoad    time.Duration `mapstructure:"SNAPSHOT_LOAD_TIMEOUT"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey  string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer      string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience    string        `mapstructure:"AUTH_AUDIENCE"`

	v *viper.Viper
}

// layoutSeparator splits DATETIME_LAYOUTS; layouts may contain commas.
const layoutSeparator = "|"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_SOURCE", "postgres")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REPORT_TIMEOUT", "30s")
	v.SetDefault("SNAPSHOT_TTL", "5m")
	v.SetDefault("SNAPSHOT_LOAD_TIMEOUT", "2m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, key := range []string{
		"PORT", "ENV", "LOG_LEVEL", "DATA_SOURCE", "DATABASE_URL", "DB_SCHEMA",
		"DB_MAX_CONNS", "DB_MIN_CONNS", "DATA_DIR", "TRUTHY_LITERALS", "FALSY_LITERALS",
		"DATETIME_LAYOUTS", "REPORT_TIMEOUT", "SNAPSHOT_TTL", "SNAPSHOT_LOAD_TIMEOUT", "CORS_ORIGINS",
		"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"), ",")
	cfg.TruthyLiterals = splitList(v.GetString("TRUTHY_LITERALS"), ",")
	cfg.FalsyLiterals = splitList(v.GetString("FALSY_LITERALS"), ",")
	cfg.DatetimeLayouts = splitList(v.GetString("DATETIME_LAYOUTS"), layoutSeparator)

	if cfg.IsDev() {
		log.Warn().Msg("running in development mode: DevAuthMiddleware grants admin to every request")
	}

	return cfg, nil
}

// splitList splits raw on sep and trims each item. Literal case is kept.
func splitList(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	out := make([]string, 0)
	for _, s := range strings.Split(raw, sep) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the parsed LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ReportOverride returns the MIN_SAMPLE_<ID> and TOP_<ID> settings for a
// report, where <ID> is the upper-cased report identifier. Unset values are nil.
func (c *Config) ReportOverride(id string) (minSample, top *int) {
	if c.v == nil {
		return nil, nil
	}
	key := strings.ToUpper(id)
	if k := "MIN_SAMPLE_" + key; c.v.IsSet(k) {
		n := c.v.GetInt(k)
		minSample = &n
	}
	if k := "TOP_" + key; c.v.IsSet(k) {
		n := c.v.GetInt(k)
		top = &n
	}
	return minSample, top
}

// ValidateOverrides rejects MIN_SAMPLE_<ID> and TOP_<ID> values for ids that
// are not non-negative integers.
func (c *Config) ValidateOverrides(ids ...string) error {
	if c.v == nil {
		return nil
	}
	for _, id := range ids {
		key := strings.ToUpper(id)
		for _, k := range []string{"MIN_SAMPLE_" + key, "TOP_" + key} {
			if !c.v.IsSet(k) {
				continue
			}
			raw := strings.TrimSpace(c.v.GetString(k))
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%s %q is not an integer", k, raw)
			}
			if n < 0 {
				return fmt.Errorf("%s must not be negative, got %d", k, n)
			}
		}
	}
	return nil
}

// Validate checks that the configuration is complete for the selected data
// source and safe to run outside development.
func (c *Config) Validate() error {
	switch c.DataSource {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATA_SOURCE is \"postgres\"")
		}
		if !db.ValidSchema(c.DBSchema) {
			return fmt.Errorf("DB_SCHEMA %q is not a valid schema identifier", c.DBSchema)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case "csv", "parquet":
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when DATA_SOURCE is %q", c.DataSource)
		}
	default:
		return fmt.Errorf("DATA_SOURCE must be \"postgres\", \"csv\", or \"parquet\", got %q", c.DataSource)
	}

	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL %q is not a valid level: %w", c.LogLevel, err)
		}
	}
	if c.ReportTimeout <= 0 {
		return fmt.Errorf("REPORT_TIMEOUT must be positive, got %s", c.ReportTimeout)
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("SNAPSHOT_TTL must not be negative, got %s", c.SnapshotTTL)
	}
	if c.SnapshotLoad <= 0 {
		return fmt.Errorf("SNAPSHOT_LOAD_TIMEOUT must be positive, got %s", c.SnapshotLoad)
	}

	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required outside development (current ENV=%q)", c.Env)
		}
		if len(c.AuthSigningKey) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d", len(c.AuthSigningKey))
		}
	}

	return nil
}
