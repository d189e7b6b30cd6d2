package providers

import "time"

// APIType defines the protocol dialect used by a generation backend.
type APIType string

const (
	APIGemini           APIType = "gemini"
	APIOpenAICompatible APIType = "openai_compatible"
)

// AuthConfig is provider-agnostic auth configuration. Token resolution order
// is Token, then the environment variable named by TokenEnv.
type AuthConfig struct {
	Token    string
	TokenEnv string
}

// Config is a provider-agnostic generator alias definition. SystemInstruction
// is the per-surface persona, fixed for the lifetime of the generator.
type Config struct {
	Alias             string
	Provider          string
	API               APIType
	Model             string
	BaseURL           string
	SystemInstruction string
	Timeout           time.Duration
	MaxOutputTok      int
	Auth              AuthConfig
}
