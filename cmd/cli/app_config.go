package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sageleaf/converse/engine/backend/providers"
)

const (
	configVersion      = 1
	defaultGenerator   = "gemini-flash"
	defaultTimeoutSecs = 60
)

type appConfig struct {
	Version          int               `json:"version"`
	DefaultGenerator string            `json:"default_generator"`
	Generators       []generatorRecord `json:"generators,omitempty"`
	Personas         map[string]string `json:"personas,omitempty"`
}

type generatorRecord struct {
	Alias          string     `json:"alias"`
	Provider       string     `json:"provider"`
	API            string     `json:"api"`
	Model          string     `json:"model"`
	BaseURL        string     `json:"base_url,omitempty"`
	TimeoutSeconds int        `json:"timeout_seconds,omitempty"`
	MaxOutputTok   int        `json:"max_output_tokens,omitempty"`
	Auth           authRecord `json:"auth"`
}

type authRecord struct {
	Token    string `json:"token,omitempty"`
	TokenEnv string `json:"token_env,omitempty"`
}

type appConfigStore struct {
	path string
	data appConfig
}

func loadOrInitAppConfig(path string) (*appConfigStore, error) {
	if strings.TrimSpace(path) == "" {
		resolved, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	store := &appConfigStore{
		path: path,
		data: defaultAppConfig(),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cli config: read %q: %w", path, err)
		}
		if err := store.save(); err != nil {
			return nil, err
		}
		return store, nil
	}

	var loaded appConfig
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return nil, fmt.Errorf("cli config: parse %q: %w", path, err)
	}
	mergeAppConfigDefaults(&loaded)
	store.data = loaded
	return store, nil
}

func defaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cli config: resolve config dir: %w", err)
	}
	return filepath.Join(base, "converse", "config.json"), nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		Version:          configVersion,
		DefaultGenerator: defaultGenerator,
		Generators: []generatorRecord{
			{
				Alias:    "gemini-flash",
				Provider: "google",
				API:      string(providers.APIGemini),
				Model:    "gemini-2.0-flash",
				Auth:     authRecord{TokenEnv: "GEMINI_API_KEY"},
			},
			{
				Alias:    "openai-compat",
				Provider: "openai-compatible",
				API:      string(providers.APIOpenAICompatible),
				Model:    "gpt-4o-mini",
				BaseURL:  "https://api.openai.com/v1",
				Auth:     authRecord{TokenEnv: "OPENAI_API_KEY"},
			},
		},
		Personas: defaultPersonas(),
	}
}

func defaultPersonas() map[string]string {
	return map[string]string{
		"tutor": "You are a patient, encouraging tutor. Explain concepts step by step " +
			"and check the student's understanding before moving on.",
		"debate": "You are a sharp debate opponent. Take the opposite side of the user's " +
			"position and argue it rigorously but fairly.",
		"assistant": "You are a quick-help assistant. Answer in at most three sentences.",
	}
}

func mergeAppConfigDefaults(cfg *appConfig) {
	if cfg == nil {
		return
	}
	if cfg.Version == 0 {
		cfg.Version = configVersion
	}
	if strings.TrimSpace(cfg.DefaultGenerator) == "" {
		cfg.DefaultGenerator = defaultGenerator
	}
	if len(cfg.Generators) == 0 {
		cfg.Generators = defaultAppConfig().Generators
	}
	if cfg.Personas == nil {
		cfg.Personas = map[string]string{}
	}
	for name, persona := range defaultPersonas() {
		if _, ok := cfg.Personas[name]; !ok {
			cfg.Personas[name] = persona
		}
	}
}

func (s *appConfigStore) save() error {
	if s == nil {
		return fmt.Errorf("cli config: store is nil")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("cli config: create dir: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("cli config: encode: %w", err)
	}
	if err := os.WriteFile(s.path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("cli config: write %q: %w", s.path, err)
	}
	return nil
}

func (s *appConfigStore) DefaultGenerator() string {
	if s == nil {
		return defaultGenerator
	}
	return strings.ToLower(strings.TrimSpace(s.data.DefaultGenerator))
}

func (s *appConfigStore) Persona(surface string) string {
	if s == nil {
		return ""
	}
	return s.data.Personas[strings.ToLower(strings.TrimSpace(surface))]
}

func (s *appConfigStore) GeneratorConfigs() []providers.Config {
	if s == nil || len(s.data.Generators) == 0 {
		return nil
	}
	out := make([]providers.Config, 0, len(s.data.Generators))
	for _, rec := range s.data.Generators {
		alias := strings.ToLower(strings.TrimSpace(rec.Alias))
		if alias == "" {
			continue
		}
		timeout := rec.TimeoutSeconds
		if timeout <= 0 {
			timeout = defaultTimeoutSecs
		}
		out = append(out, providers.Config{
			Alias:        alias,
			Provider:     rec.Provider,
			API:          providers.APIType(strings.ToLower(strings.TrimSpace(rec.API))),
			Model:        rec.Model,
			BaseURL:      rec.BaseURL,
			Timeout:      time.Duration(timeout) * time.Second,
			MaxOutputTok: rec.MaxOutputTok,
			Auth: providers.AuthConfig{
				Token:    rec.Auth.Token,
				TokenEnv: rec.Auth.TokenEnv,
			},
		})
	}
	return out
}
