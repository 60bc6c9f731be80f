package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected default provider %q, got %q", ProviderAnthropic, cfg.Provider)
	}
	if cfg.Chat.MaxContextTokens != 150000 {
		t.Errorf("expected max_context_tokens 150000, got %d", cfg.Chat.MaxContextTokens)
	}
	if cfg.Chat.RecentWindow != 100 {
		t.Errorf("expected recent_window 100, got %d", cfg.Chat.RecentWindow)
	}
	if cfg.Chat.SummarizeEvery != 20 {
		t.Errorf("expected summarize_every 20, got %d", cfg.Chat.SummarizeEvery)
	}
	if cfg.Gateway.HealthTimeout != 2*time.Second {
		t.Errorf("expected 2s health timeout, got %v", cfg.Gateway.HealthTimeout)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.workmate.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.Gateway.Platform = PlatformWeb
	original.Gateway.FunctionURL = "https://fn.example.com/chat"
	original.Cache.DefaultTTL = 10 * time.Minute
	original.Server.Port = 9090

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Gateway.Platform != PlatformWeb {
		t.Errorf("platform: got %q, want %q", loaded.Gateway.Platform, PlatformWeb)
	}
	if loaded.Gateway.FunctionURL != original.Gateway.FunctionURL {
		t.Errorf("function_url: got %q", loaded.Gateway.FunctionURL)
	}
	if loaded.Cache.DefaultTTL != 10*time.Minute {
		t.Errorf("default_ttl: got %v", loaded.Cache.DefaultTTL)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("port: got %d", loaded.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("WORKMATE_PROVIDER", "openai")
	t.Setenv("WORKMATE_GATEWAY__PLATFORM", "web")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
	if loaded.Gateway.Platform != PlatformWeb {
		t.Errorf("nested env override failed: got %q", loaded.Gateway.Platform)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"WORKMATE_PROVIDER":                  "provider",
		"WORKMATE_CHAT__RECENT_WINDOW":       "chat.recent_window",
		"WORKMATE_CACHE__REDIS_ADDR":         "cache.redis_addr",
		"WORKMATE_SERVER__ALLOW_ALL_ORIGINS": "server.allow_all_origins",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty provider", func(c *Config) { c.Provider = "" }, true},
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }, true},
		{"empty model", func(c *Config) { c.Model = "" }, true},
		{"zero budget", func(c *Config) { c.Chat.MaxContextTokens = 0 }, true},
		{"zero window", func(c *Config) { c.Chat.RecentWindow = 0 }, true},
		{"zero summarize interval", func(c *Config) { c.Chat.SummarizeEvery = 0 }, true},
		{"bad platform", func(c *Config) { c.Gateway.Platform = "desktop" }, true},
		{"web without transports", func(c *Config) {
			c.Gateway.Platform = PlatformWeb
			c.Gateway.ProxyURL = ""
			c.Gateway.FunctionURL = ""
		}, true},
		{"web with proxy", func(c *Config) { c.Gateway.Platform = PlatformWeb }, false},
		{"zero ttl", func(c *Config) { c.Cache.DefaultTTL = 0 }, true},
		{"negative rpm", func(c *Config) { c.RateLimitRPM = -1 }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"no data dir", func(c *Config) { c.Server.DataDir = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestDefaultModel(t *testing.T) {
	if DefaultModel(ProviderOpenAI) != "gpt-4o" {
		t.Errorf("unexpected openai default: %q", DefaultModel(ProviderOpenAI))
	}
	if DefaultModel("unknown") != DefaultModel(ProviderAnthropic) {
		t.Error("unknown provider should fall back to anthropic default")
	}
}

func TestValidatePort(t *testing.T) {
	for _, s := range []string{"abc", "0", "70000"} {
		if validatePort(s) == nil {
			t.Errorf("validatePort(%q) should fail", s)
		}
	}
	if err := validatePort("8080"); err != nil {
		t.Errorf("validatePort(8080): %v", err)
	}
}
