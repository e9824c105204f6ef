package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"

	"github.com/jekabolt/grbpwr-analytics/internal/analytics/ga4"
	"github.com/jekabolt/grbpwr-analytics/internal/analytics/tokenrefresh"
	httpapi "github.com/jekabolt/grbpwr-analytics/internal/api/http"
	"github.com/jekabolt/grbpwr-analytics/internal/auth/jwt"
	"github.com/jekabolt/grbpwr-analytics/internal/ratelimit"
	"github.com/jekabolt/grbpwr-analytics/log"
)

// Config represents the global configuration for the service.
type Config struct {
	Logger       log.Config          `mapstructure:"logger"`
	HTTP         httpapi.Config      `mapstructure:"http"`
	Auth         jwt.Config          `mapstructure:"auth"`
	GA4          ga4.Config          `mapstructure:"ga4"`
	RateLimit    ratelimit.Config    `mapstructure:"rate_limit"`
	TokenRefresh tokenrefresh.Config `mapstructure:"token_refresh"`

	v *viper.Viper
}

// Getter returns the live configuration source. Service-account secrets are read through it
// on every request so they can be rotated without a restart.
func (c *Config) Getter() ga4.Getter {
	return c.v
}

// LoadConfig loads the configuration from a file and/or environment variables.
// Environment variables take precedence over config file values.
// Nested config keys use double underscore, e.g., GA4__PROPERTY_ID for ga4.property_id,
// the common ones are also bound to flat names like GA4_PROPERTY_ID.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))

	setDefaults(v)
	bindEnvVars(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/config/grbpwr-analytics")
		v.AddConfigPath("/etc/grbpwr-analytics")
		// Try to read config, but don't fail if it doesn't exist
		_ = v.ReadInConfig()
	}

	config := Config{v: v}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.GA4.TokenURL != "" && !govalidator.IsURL(c.GA4.TokenURL) {
		return fmt.Errorf("ga4.token_url is not a valid url: %q", c.GA4.TokenURL)
	}
	if c.GA4.Endpoint != "" && !govalidator.IsURL(c.GA4.Endpoint) {
		return fmt.Errorf("ga4.endpoint is not a valid url: %q", c.GA4.Endpoint)
	}
	for _, o := range c.HTTP.AllowedOrigins {
		if !govalidator.IsURL(o) {
			return fmt.Errorf("http.allowed_origins has an invalid url: %q", o)
		}
	}
	if c.TokenRefresh.Enabled && !c.GA4.TokenCache {
		return errors.New("token_refresh.enabled requires ga4.token_cache")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", 0)
	v.SetDefault("logger.add_source", false)

	v.SetDefault("http.port", "8081")
	v.SetDefault("http.address", "0.0.0.0")
	v.SetDefault("http.request_timeout", "60s")

	v.SetDefault("auth.jwt_ttl", "24h")

	v.SetDefault("ga4.token_url", ga4.DefaultTokenURL)
	v.SetDefault("ga4.scope", ga4.ReadonlyScope)
	v.SetDefault("ga4.signer", "rs256")
	v.SetDefault("ga4.http_timeout", "15s")
	v.SetDefault("ga4.query_timeout", "15s")
	v.SetDefault("ga4.token_cache", false)
	v.SetDefault("ga4.token_leeway", "1m")

	rl := ratelimit.DefaultConfig()
	v.SetDefault("rate_limit.window", rl.Window)
	v.SetDefault("rate_limit.per_ip", rl.PerIP)
	v.SetDefault("rate_limit.per_operator", rl.PerOperator)

	tr := tokenrefresh.DefaultConfig()
	v.SetDefault("token_refresh.enabled", tr.Enabled)
	v.SetDefault("token_refresh.worker_interval", tr.WorkerInterval)
}

// bindEnvVars binds environment variables to config keys
// This allows using both nested keys (GA4__PROPERTY_ID) and flat keys (GA4_PROPERTY_ID)
func bindEnvVars(v *viper.Viper) {
	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	v.BindEnv("http.port", "HTTP_PORT")
	v.BindEnv("http.address", "HTTP_ADDRESS")
	v.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	v.BindEnv("http.trust_proxy", "HTTP_TRUST_PROXY")
	v.BindEnv("http.request_timeout", "HTTP_REQUEST_TIMEOUT")

	// Auth
	v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	v.BindEnv("auth.jwt_ttl", "AUTH_JWT_TTL")

	// GA4 service account, read per request
	v.BindEnv(ga4.KeyClientEmail, "GA4_CLIENT_EMAIL")
	v.BindEnv(ga4.KeyPrivateKey, "GA4_PRIVATE_KEY")
	v.BindEnv(ga4.KeyCredentialsJSON, "GA4_CREDENTIALS_JSON")
	v.BindEnv(ga4.KeyPropertyID, "GA4_PROPERTY_ID")

	// GA4 client
	v.BindEnv("ga4.endpoint", "GA4_ENDPOINT")
	v.BindEnv("ga4.token_url", "GA4_TOKEN_URL")
	v.BindEnv("ga4.scope", "GA4_SCOPE")
	v.BindEnv("ga4.signer", "GA4_SIGNER")
	v.BindEnv("ga4.http_timeout", "GA4_HTTP_TIMEOUT")
	v.BindEnv("ga4.query_timeout", "GA4_QUERY_TIMEOUT")
	v.BindEnv("ga4.token_cache", "GA4_TOKEN_CACHE")
	v.BindEnv("ga4.token_leeway", "GA4_TOKEN_LEEWAY")

	// Rate limit
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	v.BindEnv("rate_limit.per_ip", "RATE_LIMIT_PER_IP")
	v.BindEnv("rate_limit.per_operator", "RATE_LIMIT_PER_OPERATOR")

	// Token refresh
	v.BindEnv("token_refresh.enabled", "TOKEN_REFRESH_ENABLED")
	v.BindEnv("token_refresh.worker_interval", "TOKEN_REFRESH_WORKER_INTERVAL")
}
