package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	BackendURL     string        `mapstructure:"BACKEND_URL"`
	BackendAnonKey string        `mapstructure:"BACKEND_ANON_KEY"`
	BackendSvcKey  string        `mapstructure:"BACKEND_SERVICE_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ViewCacheTTL   time.Duration `mapstructure:"VIEW_CACHE_TTL"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("VIEW_CACHE_TTL", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	for key, val := range map[string]string{
		"DATABASE_URL":        cfg.DatabaseURL,
		"BACKEND_URL":         cfg.BackendURL,
		"BACKEND_ANON_KEY":    cfg.BackendAnonKey,
		"BACKEND_SERVICE_KEY": cfg.BackendSvcKey,
	} {
		if val == "" {
			return Config{}, fmt.Errorf("missing required setting %s", key)
		}
	}
	return cfg, nil
}
