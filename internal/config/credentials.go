package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvOpenAIKey       = "OPENAI_API_KEY"
	EnvTavilyKey       = "TAVILY_API_KEY"
	EnvAlphaVantageKey = "ALPHA_VANTAGE_API_KEY"
)

// ErrMissingCredential marks a configuration error: a capability cannot be
// built because its secret is not present in the environment.
var ErrMissingCredential = errors.New("missing required credential")

// Credentials holds the API keys of the external capabilities.
type Credentials struct {
	OpenAIKey       string
	TavilyKey       string
	AlphaVantageKey string
}

// LoadCredentials reads the keys from the environment, after merging a local .env
// file when one exists. Variables already set in the process win over .env.
func LoadCredentials() Credentials {
	_ = godotenv.Load()
	return Credentials{
		OpenAIKey:       strings.TrimSpace(os.Getenv(EnvOpenAIKey)),
		TavilyKey:       strings.TrimSpace(os.Getenv(EnvTavilyKey)),
		AlphaVantageKey: strings.TrimSpace(os.Getenv(EnvAlphaVantageKey)),
	}
}

// Require returns a ConfigurationError naming every missing key.
func (c Credentials) Require() error {
	var missing []string
	if c.OpenAIKey == "" {
		missing = append(missing, EnvOpenAIKey)
	}
	if c.TavilyKey == "" {
		missing = append(missing, EnvTavilyKey)
	}
	if c.AlphaVantageKey == "" {
		missing = append(missing, EnvAlphaVantageKey)
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
}
