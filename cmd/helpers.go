package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ziadkadry99/workmate/internal/auth"
	"github.com/ziadkadry99/workmate/internal/cache"
	"github.com/ziadkadry99/workmate/internal/chat"
	"github.com/ziadkadry99/workmate/internal/config"
	"github.com/ziadkadry99/workmate/internal/db"
	"github.com/ziadkadry99/workmate/internal/gateway"
	"github.com/ziadkadry99/workmate/internal/llm"
	"github.com/ziadkadry99/workmate/internal/logger"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `workmate init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	mode := cfg.LogMode
	if verbose {
		mode = "dev"
	}
	return logger.New(mode)
}

// createLLMProvider builds the configured provider. A missing key is not
// fatal: the gateway reports it per request.
func createLLMProvider(cfg *config.Config, log *logger.Logger) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if errors.Is(err, llm.ErrMissingAPIKey) {
		log.Warn("provider key not configured", "provider", cfg.Provider, "env", config.APIKeyEnvVar(cfg.Provider))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RateLimitRPM)
	}
	return provider, nil
}

func createGateway(cfg *config.Config, log *logger.Logger) (*gateway.Gateway, error) {
	var provider llm.Provider
	if cfg.Gateway.Platform != config.PlatformWeb {
		p, err := createLLMProvider(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("creating LLM provider: %w", err)
		}
		provider = p
	}
	gwCfg := cfg.Gateway
	if gwCfg.FunctionKey == "" {
		gwCfg.FunctionKey = auth.GetAPIKey("function")
	}
	return gateway.New(gwCfg, cfg.Model, cfg.Chat.MaxReplyTokens, provider, log)
}

func openDatabase(cfg *config.Config) (*db.DB, error) {
	path := filepath.Join(cfg.Server.DataDir, "workmate.db")
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// createCache builds the cache, attaching redis when configured. An
// unreachable redis leaves the cache local-only.
func createCache(ctx context.Context, cfg *config.Config, log *logger.Logger) *cache.Cache {
	cc := cache.Config{DefaultTTL: cfg.Cache.DefaultTTL}
	if cfg.Cache.RedisAddr != "" {
		remote, err := cache.NewRedisRemote(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPrefix)
		if err != nil {
			log.Warn("redis unavailable, using local cache only", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			cc.Remote = remote
		}
	}
	return cache.New(cc, log)
}

func chatConfig(cfg *config.Config) chat.Config {
	return chat.Config{
		MaxContextTokens: cfg.Chat.MaxContextTokens,
		RecentWindow:     cfg.Chat.RecentWindow,
		SummarizeEvery:   cfg.Chat.SummarizeEvery,
	}
}
