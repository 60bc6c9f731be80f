package config

import "time"

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]string{
	ProviderAnthropic: "claude-sonnet-4-5-20250929",
	ProviderOpenAI:    "gpt-4o",
	ProviderOllama:    "llama3",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderAnthropic,
		Model:        defaultModels[ProviderAnthropic],
		LogMode:      "dev",
		RateLimitRPM: 60,
		Chat: ChatConfig{
			MaxContextTokens: 150000,
			RecentWindow:     100,
			SummarizeEvery:   20,
			MaxReplyTokens:   4096,
		},
		Gateway: GatewayConfig{
			Platform:      PlatformNative,
			ProxyURL:      "http://localhost:3001",
			HealthTimeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:    5 * time.Minute,
			SweepInterval: time.Minute,
			RedisPrefix:   "workmate:",
		},
		Preload: PreloadConfig{
			Enabled:    true,
			Interval:   15 * time.Minute,
			RouteCap:   10,
			ProjectCap: 10,
		},
		Server: ServerConfig{
			Port:      8080,
			ProxyPort: 3001,
			DataDir:   ".workmate",
		},
	}
}

// DefaultModel returns the default model for a provider, falling back to the
// Anthropic default for unknown providers.
func DefaultModel(provider ProviderType) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return defaultModels[ProviderAnthropic]
}
