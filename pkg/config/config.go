// Package config loads runtime settings from the environment (optionally
// seeded from a .env file) and builds the pipeline and transcriber they
// describe.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/catalog"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/llms/anthropic"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/llms/bedrock"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/llms/ollama"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/llms/openai"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/model"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/notes"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/transcribe"
	"github.com/Nephrolytics-ai/clinical-notes/pkg/utils"
	"github.com/joho/godotenv"
)

var ErrConfiguration = errors.New("configuration error")

const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOllama    = "ollama"
)

const (
	envProvider           = "CLINICAL_NOTES_PROVIDER"
	envFastModel          = "CLINICAL_NOTES_FAST_MODEL"
	envAccurateModel      = "CLINICAL_NOTES_ACCURATE_MODEL"
	envTranscribeProvider = "CLINICAL_NOTES_TRANSCRIBE_PROVIDER"
	envTranscribeModel    = "CLINICAL_NOTES_TRANSCRIBE_MODEL"
	envTimeout            = "CLINICAL_NOTES_TIMEOUT"
	envMaxAttempts        = "CLINICAL_NOTES_MAX_ATTEMPTS"
	envMaxTokens          = "CLINICAL_NOTES_MAX_TOKENS"
	envCatalogFile        = "CLINICAL_NOTES_CATALOG_FILE"
	envTermsFile          = "CLINICAL_NOTES_TERMS_FILE"
	envLogLevel           = "LOG_LEVEL"
	envLogFormat          = "LOG_FORMAT"

	defaultTimeout = 120 * time.Second
)

type tierDefaults struct {
	fast     string
	accurate string
}

var providerTierDefaults = map[string]tierDefaults{
	ProviderOpenAI:    {fast: "gpt-4.1-mini", accurate: "gpt-4.1"},
	ProviderGemini:    {fast: "gemini-2.5-flash", accurate: "gemini-2.5-pro"},
	ProviderAnthropic: {fast: "claude-3-5-haiku-latest", accurate: "claude-3-5-sonnet-latest"},
	ProviderBedrock:   {fast: "us.anthropic.claude-3-5-haiku-20241022-v1:0", accurate: "us.anthropic.claude-3-5-sonnet-20241022-v2:0"},
	ProviderOllama:    {fast: "llama3.1", accurate: "llama3.1:70b"},
}

type Config struct {
	Provider           string
	Models             map[notes.ModelTier]string
	TranscribeProvider string
	TranscribeModel    string
	Timeout            time.Duration
	MaxAttempts        int
	// MaxTokens caps each note's completion; zero leaves the provider default.
	MaxTokens   int
	CatalogFile string
	TermsFile   string
	LogLevel    string
	LogFormat   string
}

// Load seeds the environment from settingsFile when it is non-empty, then
// reads and validates the configuration. Variables already present in the
// environment win over the file.
func Load(settingsFile string) (*Config, error) {
	if err := LoadEnvFile(settingsFile); err != nil {
		return nil, err
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return cfg, nil
}

// LoadEnvFile copies unset variables from settingsFile into the environment.
// An empty path is a no-op.
func LoadEnvFile(settingsFile string) error {
	settingsFile = strings.TrimSpace(settingsFile)
	if settingsFile == "" {
		return nil
	}
	if err := godotenv.Load(settingsFile); err != nil {
		return utils.WrapIfNotNil(fmt.Errorf("%w: reading %s: %w", ErrConfiguration, settingsFile, err))
	}
	return nil
}

// FromEnv reads the configuration without validating credentials.
func FromEnv() (*Config, error) {
	provider := strings.ToLower(envOr(envProvider, ProviderOpenAI))
	defaults, ok := providerTierDefaults[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, provider)
	}

	cfg := &Config{
		Provider: provider,
		Models: map[notes.ModelTier]string{
			notes.TierFast:     envOr(envFastModel, defaults.fast),
			notes.TierAccurate: envOr(envAccurateModel, defaults.accurate),
		},
		TranscribeProvider: strings.ToLower(envOr(envTranscribeProvider, ProviderOpenAI)),
		TranscribeModel:    strings.TrimSpace(os.Getenv(envTranscribeModel)),
		Timeout:            defaultTimeout,
		MaxAttempts:        1,
		CatalogFile:        strings.TrimSpace(os.Getenv(envCatalogFile)),
		TermsFile:          strings.TrimSpace(os.Getenv(envTermsFile)),
		LogLevel:           strings.ToLower(envOr(envLogLevel, "info")),
		LogFormat:          strings.ToLower(envOr(envLogFormat, "text")),
	}

	if raw := strings.TrimSpace(os.Getenv(envTimeout)); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrConfiguration, envTimeout, raw)
		}
		cfg.Timeout = timeout
	}

	var err error
	if cfg.MaxAttempts, err = positiveInt(envMaxAttempts, 1); err != nil {
		return nil, err
	}
	if cfg.MaxTokens, err = positiveInt(envMaxTokens, 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing credentials for the text provider and malformed
// settings. Transcription credentials are checked by ValidateTranscription,
// only when a transcriber is built.
func (c *Config) Validate() error {
	if err := requireCredentials(c.Provider); err != nil {
		return err
	}
	switch c.TranscribeProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: transcription provider %q is not supported", ErrConfiguration, c.TranscribeProvider)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: %s must be text or json, got %q", ErrConfiguration, envLogFormat, c.LogFormat)
	}
	return nil
}

// ValidateTranscription reports missing credentials for the transcription
// provider.
func (c *Config) ValidateTranscription() error {
	return requireCredentials(c.TranscribeProvider)
}

func requireCredentials(provider string) error {
	switch provider {
	case ProviderOpenAI:
		return requireEnv(provider, "OPENAI_API_KEY")
	case ProviderGemini:
		return requireEnv(provider, "GEMINI_KEY")
	case ProviderAnthropic:
		return requireEnv(provider, "ANTHROPIC_API_KEY")
	case ProviderBedrock:
		if strings.TrimSpace(os.Getenv("AWS_PROFILE")) != "" {
			return nil
		}
		if err := requireEnv(provider, "AWS_ACCESS_KEY_ID"); err != nil {
			return err
		}
		return requireEnv(provider, "AWS_SECRET_ACCESS_KEY")
	case ProviderOllama:
		return nil
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrConfiguration, provider)
	}
}

func requireEnv(provider, name string) error {
	if strings.TrimSpace(os.Getenv(name)) == "" {
		return fmt.Errorf("%w: %s is required for provider %s", ErrConfiguration, name, provider)
	}
	return nil
}

// Apply configures the process-wide logger.
func (c *Config) Apply() error {
	if err := logging.SetLevel(c.LogLevel); err != nil {
		return utils.WrapIfNotNil(fmt.Errorf("%w: %s: %w", ErrConfiguration, envLogLevel, err))
	}
	logging.SetFormat(c.LogFormat)
	return nil
}

func (c *Config) TextGeneratorFunc() model.NewStringContentGeneratorFunc {
	switch c.Provider {
	case ProviderGemini:
		return gemini.NewStringContentGenerator
	case ProviderAnthropic:
		return anthropic.NewStringContentGenerator
	case ProviderBedrock:
		return bedrock.NewStringContentGenerator
	case ProviderOllama:
		return ollama.NewStringContentGenerator
	default:
		return openai.NewStringContentGenerator
	}
}

func (c *Config) TranscriptionFunc() model.NewAudioTranscriptionGeneratorFunc {
	if c.TranscribeProvider == ProviderGemini {
		return gemini.NewAudioTranscriptionGenerator
	}
	return openai.NewAudioTranscriptionGenerator
}

// LoadCatalog returns the configured billing-code catalog, falling back to
// the embedded default.
func (c *Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.CatalogFile == "" {
		return catalog.Default()
	}
	codes, err := catalog.LoadFile(c.CatalogFile)
	if err != nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	return codes, nil
}

func (c *Config) LoadTerms() (catalog.Terms, error) {
	if c.TermsFile == "" {
		return catalog.DefaultTerms()
	}
	terms, err := catalog.LoadTermsFile(c.TermsFile)
	if err != nil {
		return nil, utils.WrapIfNotNil(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	return terms, nil
}

// NewPipeline wires the configured provider, catalog and term list into a
// notes.Pipeline.
func (c *Config) NewPipeline() (*notes.Pipeline, error) {
	codes, err := c.LoadCatalog()
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	terms, err := c.LoadTerms()
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	generatorOpts := []notes.GeneratorOption{
		notes.WithRetryPolicy(utils.RetryOptions{MaxAttempts: c.MaxAttempts}),
	}
	if c.MaxTokens > 0 {
		generatorOpts = append(generatorOpts, notes.WithProviderOptions(model.WithMaxTokens(c.MaxTokens)))
	}
	generator, err := notes.NewGenerator(c.TextGeneratorFunc(), c.Models, generatorOpts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return notes.NewPipeline(generator, codes, terms, notes.WithRequestTimeout(c.Timeout))
}

// NewTranscriber builds a transcriber for the configured audio backend.
func (c *Config) NewTranscriber(opts ...transcribe.Option) (*transcribe.Transcriber, error) {
	if err := c.ValidateTranscription(); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	audioOpts := model.AudioOptions{Model: c.TranscribeModel}
	return transcribe.NewTranscriber(c.TranscriptionFunc(), append([]transcribe.Option{transcribe.WithAudioOptions(audioOpts)}, opts...)...)
}

func envOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func positiveInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrConfiguration, name, raw)
	}
	return value, nil
}
