package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/notes"
	"github.com/stretchr/testify/suite"
)

var managedEnv = []string{
	envProvider, envFastModel, envAccurateModel, envTranscribeProvider, envTranscribeModel,
	envTimeout, envMaxAttempts, envMaxTokens, envCatalogFile, envTermsFile, envLogLevel, envLogFormat,
	"OPENAI_API_KEY", "GEMINI_KEY", "ANTHROPIC_API_KEY",
	"AWS_PROFILE", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
}

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// SetupTest unsets every variable the package reads; t.Setenv restores them.
func (s *ConfigSuite) SetupTest() {
	for _, name := range managedEnv {
		s.T().Setenv(name, "")
		s.Require().NoError(os.Unsetenv(name))
	}
}

func (s *ConfigSuite) TestDefaults() {
	s.T().Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal(ProviderOpenAI, cfg.Provider)
	s.Equal("gpt-4.1-mini", cfg.Models[notes.TierFast])
	s.Equal("gpt-4.1", cfg.Models[notes.TierAccurate])
	s.Equal(defaultTimeout, cfg.Timeout)
	s.Equal(1, cfg.MaxAttempts)
	s.Zero(cfg.MaxTokens)
	s.Equal("text", cfg.LogFormat)
	s.NotNil(cfg.TextGeneratorFunc())
	s.NotNil(cfg.TranscriptionFunc())
}

func (s *ConfigSuite) TestMissingCredentialIsConfigurationError() {
	_, err := Load("")
	s.ErrorIs(err, ErrConfiguration)
	s.Contains(err.Error(), "OPENAI_API_KEY")
}

func (s *ConfigSuite) TestProviderDefaultsAndOverrides() {
	s.T().Setenv(envProvider, "Gemini")
	s.T().Setenv(envTranscribeProvider, "gemini")
	s.T().Setenv("GEMINI_KEY", "g-test")
	s.T().Setenv(envAccurateModel, "gemini-exp")

	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal(ProviderGemini, cfg.Provider)
	s.Equal("gemini-2.5-flash", cfg.Models[notes.TierFast])
	s.Equal("gemini-exp", cfg.Models[notes.TierAccurate])
}

func (s *ConfigSuite) TestBedrockAcceptsProfileOrKeys() {
	s.T().Setenv(envProvider, ProviderBedrock)

	_, err := Load("")
	s.ErrorIs(err, ErrConfiguration)

	s.T().Setenv("AWS_PROFILE", "clinic")
	_, err = Load("")
	s.NoError(err)
}

func (s *ConfigSuite) TestOllamaNeedsNoKey() {
	s.T().Setenv(envProvider, ProviderOllama)

	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal("llama3.1", cfg.Models[notes.TierFast])

	_, err = cfg.NewPipeline()
	s.NoError(err)
}

func (s *ConfigSuite) TestTranscriptionKeyCheckedOnlyWhenTranscribing() {
	s.T().Setenv(envProvider, ProviderAnthropic)
	s.T().Setenv("ANTHROPIC_API_KEY", "ak-test")

	cfg, err := Load("")
	s.Require().NoError(err)

	_, err = cfg.NewTranscriber()
	s.ErrorIs(err, ErrConfiguration)
	s.Contains(err.Error(), "OPENAI_API_KEY")

	s.T().Setenv("OPENAI_API_KEY", "sk-test")
	_, err = cfg.NewTranscriber()
	s.NoError(err)
}

func (s *ConfigSuite) TestRejectsBadValues() {
	s.T().Setenv("OPENAI_API_KEY", "sk-test")

	cases := map[string]string{
		envProvider:           "watson",
		envTimeout:            "soon",
		envMaxAttempts:        "0",
		envMaxTokens:          "-5",
		envTranscribeProvider: "anthropic",
		envLogFormat:          "xml",
	}
	for name, value := range cases {
		s.T().Setenv(name, value)
		_, err := Load("")
		s.ErrorIs(err, ErrConfiguration, name)
		s.Require().NoError(os.Unsetenv(name))
	}
}

func (s *ConfigSuite) TestSettingsFileSeedsEnvironment() {
	dir := s.T().TempDir()
	settings := filepath.Join(dir, ".env")
	s.Require().NoError(os.WriteFile(settings, []byte("OPENAI_API_KEY=sk-file\nCLINICAL_NOTES_TIMEOUT=45s\nCLINICAL_NOTES_MAX_ATTEMPTS=3\n"), 0o600))

	cfg, err := Load(settings)
	s.Require().NoError(err)
	s.Equal(45*time.Second, cfg.Timeout)
	s.Equal(3, cfg.MaxAttempts)
	s.Equal("sk-file", os.Getenv("OPENAI_API_KEY"))
}

func (s *ConfigSuite) TestMissingSettingsFile() {
	_, err := Load(filepath.Join(s.T().TempDir(), "missing.env"))
	s.ErrorIs(err, ErrConfiguration)
}

func (s *ConfigSuite) TestCatalogAndTermsFiles() {
	s.T().Setenv("OPENAI_API_KEY", "sk-test")
	dir := s.T().TempDir()
	catalogPath := filepath.Join(dir, "codes.yaml")
	termsPath := filepath.Join(dir, "terms.yaml")
	s.Require().NoError(os.WriteFile(catalogPath, []byte("codes:\n  - code: \"90837\"\n    description: Psychotherapy, 60 minutes\n"), 0o600))
	s.Require().NoError(os.WriteFile(termsPath, []byte("terms:\n  - Soul Retrieval\n"), 0o600))
	s.T().Setenv(envCatalogFile, catalogPath)
	s.T().Setenv(envTermsFile, termsPath)

	cfg, err := Load("")
	s.Require().NoError(err)

	codes, err := cfg.LoadCatalog()
	s.Require().NoError(err)
	s.Equal(1, codes.Len())
	s.Equal("90837", codes.First().Code)

	terms, err := cfg.LoadTerms()
	s.Require().NoError(err)
	s.Equal([]string{"soul retrieval"}, []string(terms))

	pipeline, err := cfg.NewPipeline()
	s.Require().NoError(err)
	s.Equal(codes.Codes(), pipeline.Catalog().Codes())

	_, err = cfg.NewTranscriber()
	s.NoError(err)
}

func (s *ConfigSuite) TestBadCatalogFile() {
	cfg := &Config{CatalogFile: filepath.Join(s.T().TempDir(), "nope.yaml")}
	_, err := cfg.LoadCatalog()
	s.ErrorIs(err, ErrConfiguration)
}

func (s *ConfigSuite) TestApplyRejectsUnknownLevel() {
	cfg := &Config{LogLevel: "chatty", LogFormat: "text"}
	s.ErrorIs(cfg.Apply(), ErrConfiguration)

	cfg.LogLevel = "info"
	s.NoError(cfg.Apply())
}
