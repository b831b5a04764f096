package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "SP"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "service-provider.db"
	defaultLogLevel      = "info"
	defaultRequestFormat = "form"
	defaultRejected      = http.StatusUnauthorized
	defaultTimeoutSecs   = 10
	defaultChallenge     = "header"
)

// AuthorizationProviderConfig captures how this deployment talks to its
// authorization provider. RequestFormat and RejectedStatus encode the wire
// conventions of the provider's API generation; neither is ever guessed.
type AuthorizationProviderConfig struct {
	Name             string
	BaseURI          string
	AuthorizationURI string
	AccessToken      string
	Modes            []string
	RequestFormat    string
	RejectedStatus   int
	Timeout          time.Duration
}

// AppConfig captures runtime configuration for the service provider.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	ServiceName        string
	ServiceDomain      string
	ServiceProviderID  string
	Provider           AuthorizationProviderConfig
	ChallengeStyle     string
	CORSEnabled        bool
	CORSAllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("ap.modes", []string{"client", "user"})
	configViper.SetDefault("ap.request_format", defaultRequestFormat)
	configViper.SetDefault("ap.rejected_status", defaultRejected)
	configViper.SetDefault("ap.timeout_seconds", defaultTimeoutSecs)
	configViper.SetDefault("challenge.style", defaultChallenge)
	configViper.SetDefault("cors.enabled", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		ServiceName:       configViper.GetString("sp.name"),
		ServiceDomain:     configViper.GetString("sp.domain"),
		ServiceProviderID: configViper.GetString("sp.id"),
		Provider: AuthorizationProviderConfig{
			Name:             configViper.GetString("ap.name"),
			BaseURI:          configViper.GetString("ap.base_uri"),
			AuthorizationURI: configViper.GetString("ap.authorization_uri"),
			AccessToken:      configViper.GetString("ap.access_token"),
			Modes:            configViper.GetStringSlice("ap.modes"),
			RequestFormat:    configViper.GetString("ap.request_format"),
			RejectedStatus:   configViper.GetInt("ap.rejected_status"),
			Timeout:          time.Duration(configViper.GetInt("ap.timeout_seconds")) * time.Second,
		},
		ChallengeStyle:     configViper.GetString("challenge.style"),
		CORSEnabled:        configViper.GetBool("cors.enabled"),
		CORSAllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.Provider.AuthorizationURI) == "" {
		return fmt.Errorf("ap.authorization_uri is required")
	}
	if strings.TrimSpace(c.Provider.BaseURI) == "" {
		return fmt.Errorf("ap.base_uri is required")
	}
	if c.Provider.RejectedStatus != http.StatusUnauthorized &&
		c.Provider.RejectedStatus != http.StatusNotFound {
		return fmt.Errorf("ap.rejected_status must be 401 or 404")
	}
	switch c.ChallengeStyle {
	case "header", "body":
	default:
		return fmt.Errorf("challenge.style must be header or body")
	}
	if c.CORSEnabled && len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins is required when cors is enabled")
	}
	return nil
}
