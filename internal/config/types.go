package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderOllama    ProviderType = "ollama"
)

// Platform describes where chat requests originate. Browser clients cannot
// call the provider directly because of cross-origin restrictions.
type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformNative Platform = "native"
)

// Config is the top-level workmate configuration, corresponding to .workmate.yml.
type Config struct {
	Provider     ProviderType  `yaml:"provider" koanf:"provider"`
	Model        string        `yaml:"model" koanf:"model"`
	LogMode      string        `yaml:"log_mode" koanf:"log_mode"`
	RateLimitRPM int           `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	Chat         ChatConfig    `yaml:"chat" koanf:"chat"`
	Gateway      GatewayConfig `yaml:"gateway" koanf:"gateway"`
	Cache        CacheConfig   `yaml:"cache" koanf:"cache"`
	Preload      PreloadConfig `yaml:"preload" koanf:"preload"`
	Server       ServerConfig  `yaml:"server" koanf:"server"`
	Auth         AuthConfig    `yaml:"auth" koanf:"auth"`
}

// ChatConfig controls context assembly and summarization.
type ChatConfig struct {
	MaxContextTokens int `yaml:"max_context_tokens" koanf:"max_context_tokens"`
	RecentWindow     int `yaml:"recent_window" koanf:"recent_window"`
	SummarizeEvery   int `yaml:"summarize_every" koanf:"summarize_every"`
	MaxReplyTokens   int `yaml:"max_reply_tokens" koanf:"max_reply_tokens"`
}

// GatewayConfig lists the transports the model gateway may use.
type GatewayConfig struct {
	Platform      Platform      `yaml:"platform" koanf:"platform"`
	ProxyURL      string        `yaml:"proxy_url" koanf:"proxy_url"`
	FunctionURL   string        `yaml:"function_url" koanf:"function_url"`
	FunctionKey   string        `yaml:"function_key" koanf:"function_key"`
	HealthTimeout time.Duration `yaml:"health_timeout" koanf:"health_timeout"`
}

// CacheConfig holds cache TTLs and the optional shared redis tier.
type CacheConfig struct {
	DefaultTTL    time.Duration `yaml:"default_ttl" koanf:"default_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" koanf:"sweep_interval"`
	RedisAddr     string        `yaml:"redis_addr" koanf:"redis_addr"`
	RedisPrefix   string        `yaml:"redis_prefix" koanf:"redis_prefix"`
}

// PreloadConfig controls predictive cache warming.
type PreloadConfig struct {
	Enabled    bool          `yaml:"enabled" koanf:"enabled"`
	Interval   time.Duration `yaml:"interval" koanf:"interval"`
	RouteCap   int           `yaml:"route_cap" koanf:"route_cap"`
	ProjectCap int           `yaml:"project_cap" koanf:"project_cap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int    `yaml:"port" koanf:"port"`
	ProxyPort       int    `yaml:"proxy_port" koanf:"proxy_port"`
	DataDir         string `yaml:"data_dir" koanf:"data_dir"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// AuthConfig controls how requests are mapped to users.
type AuthConfig struct {
	// AllowHeaderUser trusts an X-User-ID header. Development only.
	AllowHeaderUser bool `yaml:"allow_header_user" koanf:"allow_header_user"`
}
