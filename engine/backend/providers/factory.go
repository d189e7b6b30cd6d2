package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sageleaf/converse/engine/backend"
)

// Factory builds generators from alias configs.
type Factory struct {
	configs map[string]Config
}

// NewFactory returns an empty generator factory.
func NewFactory() *Factory {
	return &Factory{configs: map[string]Config{}}
}

// Register adds or overwrites one alias config.
func (f *Factory) Register(cfg Config) error {
	if f == nil {
		return fmt.Errorf("providers: factory is nil")
	}
	alias := strings.ToLower(strings.TrimSpace(cfg.Alias))
	if alias == "" {
		return fmt.Errorf("providers: alias is required")
	}
	if cfg.API != APIGemini && cfg.API != APIOpenAICompatible {
		return fmt.Errorf("providers: unsupported api type %q", cfg.API)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("providers: model is required for alias %q", alias)
	}
	cfg.Alias = alias
	f.configs[alias] = cfg
	return nil
}

// NewByAlias creates a generator by alias. The persona argument overrides the
// config's system instruction when non-empty, so one alias can serve several
// surfaces.
func (f *Factory) NewByAlias(alias, persona string) (backend.Generator, error) {
	if f == nil {
		return nil, fmt.Errorf("providers: factory is nil")
	}
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return nil, fmt.Errorf("providers: generator alias is required")
	}
	cfg, ok := f.configs[alias]
	if !ok {
		return nil, fmt.Errorf("providers: unknown generator alias %q", alias)
	}
	if strings.TrimSpace(persona) != "" {
		cfg.SystemInstruction = persona
	}
	token, err := resolveToken(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("providers: alias %q: %w", alias, err)
	}

	switch cfg.API {
	case APIGemini:
		return newGemini(cfg, token), nil
	case APIOpenAICompatible:
		return newOpenAICompat(cfg, token), nil
	default:
		return nil, fmt.Errorf("providers: unsupported api type %q", cfg.API)
	}
}

// ListAliases returns registered aliases in sorted order.
func (f *Factory) ListAliases() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.configs))
	for alias := range f.configs {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

func resolveToken(cfg AuthConfig) (string, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" && strings.TrimSpace(cfg.TokenEnv) != "" {
		token = strings.TrimSpace(os.Getenv(cfg.TokenEnv))
	}
	if token == "" {
		return "", fmt.Errorf("auth token is empty")
	}
	return token, nil
}
