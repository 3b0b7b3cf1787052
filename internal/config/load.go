package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/zonesync/crypt"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"altrac.api_host":       "https://stage.altrac-api.com",
	"altrac.api_port":       0,
	"altrac.api_version":    "2018.11.30",
	"altrac.resource":       "zones",
	"crypto.aes_key":        "",
	"database.url":          "",
	"database.provider":     "altrac",
	"database.max_conns":    2,
	"batch.concurrency":     1,
	"batch.request_timeout": "30s",
	"batch.retry_max":       2,
	"batch.output_file":     "all_results.json",
	"batch.metrics_file":    "",
	"log.level":             "info",
	"log.pretty":            false,
	"log.file":              "",
}

// legacyEnv maps keys onto environment variable names used by earlier
// deployments. The derived name (key upper-cased, dots as underscores) is
// always accepted as well.
var legacyEnv = map[string][]string{
	"crypto.aes_key": {"EXT_INTEGRATION_AES_KEY"},
}

// Load reads configuration from path (optional YAML) and the environment, then
// validates it. With an empty path ./zonesync.yaml and ./configs/zonesync.yaml
// are tried.
func Load(path string) (Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("zonesync")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		vip.SetDefault(key, value)
	}
	for key, names := range legacyEnv {
		envNames := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := vip.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var s settings
	if err := vip.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// validator counts runes; AES needs bytes
	if n := len(s.Crypto.AESKey); n != crypt.KeySize {
		return nil, fmt.Errorf("invalid config: crypto.aes_key must be %d bytes, got %d", crypt.KeySize, n)
	}
	return &s, nil
}
