package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/sinsfetch/sinsfetch/internal/scheduler"
	"github.com/sinsfetch/sinsfetch/pkg/fetch"
	"github.com/spf13/viper"
)

// ConfigError is one invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationErrors lists every invalid setting.
type ValidationErrors []ConfigError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("root", "./SINS")
	v.SetDefault("base_url", catalog.DefaultBaseURL)

	v.SetDefault("download.dry_run", false)
	v.SetDefault("download.groups", []string{})
	v.SetDefault("download.max_concurrent", scheduler.DefaultMaxConcurrent)
	v.SetDefault("download.poll_interval", scheduler.DefaultPollInterval)
	v.SetDefault("download.stall_timeout", "0s")
	v.SetDefault("download.transfer", TransferNative)
	v.SetDefault("download.proxy", "")
	v.SetDefault("download.require_marker", false)
	v.SetDefault("download.fail_exit", false)
	v.SetDefault("download.every", "")
	v.SetDefault("download.progress", false)
	v.SetDefault("download.ssh_key", "")
	v.SetDefault("download.known_hosts", "")
	v.SetDefault("download.retry.attempts", fetch.DefMaxRetries)
	v.SetDefault("download.retry.base_delay", fetch.DefBaseDelay)
	v.SetDefault("download.retry.max_delay", fetch.DefMaxDelay)

	v.SetDefault("ledger.path", "")

	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.password", "")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error: cannot read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error: cannot decode configuration: %w", err)
	}
	cfg.Download.Groups = normalizeGroups(cfg.Download.Groups)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeGroups accepts both list and comma-separated forms.
func normalizeGroups(in []string) []string {
	var out []string
	for _, g := range in {
		out = append(out, catalog.ParseGroups(g)...)
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field, including the group ids and the cron
// expression, and returns ValidationErrors.
func (c *Config) Validate() error {
	var out ValidationErrors
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			out = append(out, ConfigError{Field: fieldPath(fe.Namespace()), Reason: reason(fe)})
		}
	}
	for _, g := range c.Download.Groups {
		if _, ok := catalog.Lookup(g); !ok {
			out = append(out, ConfigError{Field: "download.groups", Reason: fmt.Sprintf("unknown group %q", g)})
		}
	}
	if c.Download.Every != "" {
		if err := scheduler.ValidateCron(c.Download.Every); err != nil {
			out = append(out, ConfigError{Field: "download.every", Reason: err.Error()})
		}
	}
	if len(out) > 0 {
		return out
	}
	return nil
}

// fieldPath turns "Config.download.max_concurrent" into
// "download.max_concurrent".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("%v must be one of: %s", fe.Value(), fe.Param())
	case "url":
		return fmt.Sprintf("%q is not a valid URL", fe.Value())
	case "gte", "gt", "lte", "lt":
		return fmt.Sprintf("%v must be %s %s", fe.Value(), opWord(fe.Tag()), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%v must not be below %s", fe.Value(), fe.Param())
	}
	return fmt.Sprintf("%v fails %s", fe.Value(), fe.Tag())
}

func opWord(tag string) string {
	switch tag {
	case "gte":
		return ">="
	case "gt":
		return ">"
	case "lte":
		return "<="
	}
	return "<"
}
