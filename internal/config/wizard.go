package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// DefaultPath is where the wizard writes its result.
const DefaultPath = ".workmate.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to workmate! Let's configure the assistant backend.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"anthropic", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.Model = DefaultModel(cfg.Provider)

	// 2. Model override.
	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: cfg.Model,
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Platform.
	platformPrompt := promptui.Select{
		Label: "Where do chat requests come from?",
		Items: []string{
			"native: server or mobile app, provider called directly",
			"web:    browser clients, use a local proxy or hosted function",
		},
	}
	platformIdx, _, err := platformPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("platform selection: %w", err)
	}
	cfg.Gateway.Platform = []Platform{PlatformNative, PlatformWeb}[platformIdx]

	if cfg.Gateway.Platform == PlatformWeb {
		proxyPrompt := promptui.Prompt{
			Label:   "Local proxy URL (blank to skip)",
			Default: cfg.Gateway.ProxyURL,
		}
		if cfg.Gateway.ProxyURL, err = proxyPrompt.Run(); err != nil {
			return nil, fmt.Errorf("proxy url: %w", err)
		}
		fnPrompt := promptui.Prompt{
			Label:   "Hosted function URL (blank to skip)",
			Default: "",
		}
		if cfg.Gateway.FunctionURL, err = fnPrompt.Run(); err != nil {
			return nil, fmt.Errorf("function url: %w", err)
		}
	}

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:    "API server port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	envVar := APIKeyEnvVar(cfg.Provider)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running workmate serve.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if n <= 0 || n > 65535 {
		return fmt.Errorf("port out of range")
	}
	return nil
}
