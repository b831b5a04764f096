package config

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("ap.authorization_uri", "https://ap.example.com/authorized")
	configViper.Set("ap.base_uri", "https://ap.example.com")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address: %q", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != defaultDatabasePath {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath)
	}
	if cfg.Provider.RejectedStatus != http.StatusUnauthorized {
		t.Fatalf("unexpected default rejected status: %d", cfg.Provider.RejectedStatus)
	}
	if cfg.Provider.RequestFormat != "form" {
		t.Fatalf("unexpected default request format: %q", cfg.Provider.RequestFormat)
	}
	if cfg.Provider.Timeout != 10*time.Second {
		t.Fatalf("unexpected default timeout: %s", cfg.Provider.Timeout)
	}
	if strings.Join(cfg.Provider.Modes, ",") != "client,user" {
		t.Fatalf("unexpected default modes: %v", cfg.Provider.Modes)
	}
	if cfg.ChallengeStyle != "header" {
		t.Fatalf("unexpected default challenge style: %q", cfg.ChallengeStyle)
	}
}

func TestLoadRequiresProviderURIs(t *testing.T) {
	configViper := NewViper()
	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for missing authorization uri")
	}

	configViper.Set("ap.authorization_uri", "https://ap.example.com/authorized")
	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for missing base uri")
	}
}

func TestLoadValidatesRejectedStatus(t *testing.T) {
	configViper := NewViper()
	configViper.Set("ap.authorization_uri", "https://ap.example.com/authorized")
	configViper.Set("ap.base_uri", "https://ap.example.com")
	configViper.Set("ap.rejected_status", http.StatusForbidden)

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for unsupported rejected status")
	}

	configViper.Set("ap.rejected_status", http.StatusNotFound)
	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider.RejectedStatus != http.StatusNotFound {
		t.Fatalf("unexpected rejected status: %d", cfg.Provider.RejectedStatus)
	}
}

func TestLoadValidatesChallengeStyle(t *testing.T) {
	configViper := NewViper()
	configViper.Set("ap.authorization_uri", "https://ap.example.com/authorized")
	configViper.Set("ap.base_uri", "https://ap.example.com")
	configViper.Set("challenge.style", "banner")

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for unknown challenge style")
	}
}

func TestLoadRequiresOriginsWhenCORSEnabled(t *testing.T) {
	configViper := NewViper()
	configViper.Set("ap.authorization_uri", "https://ap.example.com/authorized")
	configViper.Set("ap.base_uri", "https://ap.example.com")
	configViper.Set("cors.enabled", true)

	if _, err := Load(configViper); err == nil {
		t.Fatal("expected error for enabled cors without origins")
	}

	configViper.Set("cors.allowed_origins", []string{"https://radio.example.com"})
	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.CORSEnabled || len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("unexpected cors config: %+v", cfg)
	}
}
