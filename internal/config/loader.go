package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError reports which stage of loading failed.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadConfig reads the process environment (plus ./.env for local runs)
// into a validated Config. The process clock is pinned to UTC as a side
// effect.
func LoadConfig() (*Config, error) {
	return loadConfig(".env")
}

func loadConfig(dotenvPath string) (*Config, error) {
	time.Local = time.UTC

	env, set := os.LookupEnv("APP_ENV")
	if !set || env == "local" {
		// Existing variables win over the file.
		_ = godotenv.Load(dotenvPath)
		env, set = os.LookupEnv("APP_ENV")
	}
	if !set || env == "" {
		return nil, &ConfigError{Type: ErrMissingEnv, Message: "APP_ENV must be set (local, dev, staging, prod)"}
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "cannot parse environment", Err: err}
	}
	cfg.Build = NewBuildInfo()

	if err := newConfigValidator().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: describeValidation(err), Err: err}
	}
	return cfg, nil
}

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(crossFieldRules, Config{})
	return v
}

// crossFieldRules covers constraints that span sub-configs.
func crossFieldRules(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	// A remote score has to come back before the request deadline.
	if cfg.Model.Remote() && cfg.Model.Timeout >= cfg.Server.RequestTimeout {
		sl.ReportError(cfg.Model.Timeout, "Model.Timeout", "Timeout", "ltfield", "Server.RequestTimeout")
	}
	// Sweeping less often than sessions expire leaves them readable past TTL.
	if cfg.Session.TTL > 0 && cfg.Session.PurgeInterval > cfg.Session.TTL {
		sl.ReportError(cfg.Session.PurgeInterval, "Session.PurgeInterval", "PurgeInterval", "ltefield", "Session.TTL")
	}
}

// describeValidation names each failing field and rule, for example
// "invalid configuration: Session.DatabaseURL (required_if)".
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid configuration"
	}
	var b strings.Builder
	b.WriteString("invalid configuration: ")
	for i, fe := range verrs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
	}
	return b.String()
}
