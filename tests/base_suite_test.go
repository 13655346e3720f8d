package tests

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ExternalDependenciesSuite loads credentials for live-service suites from
// SETTINGS_FILE, or $HOME/.env when unset. Values in the file replace any
// already in the environment.
type ExternalDependenciesSuite struct {
	suite.Suite
	settingsFile string
}

func (s *ExternalDependenciesSuite) SetupSuite() {
	settingsFromEnv := strings.TrimSpace(os.Getenv("SETTINGS_FILE"))
	settingsFile := settingsFromEnv
	if settingsFile == "" {
		homeDir, err := os.UserHomeDir()
		require.NoError(s.T(), err)
		settingsFile = filepath.Join(homeDir, ".env")
	}
	s.settingsFile = settingsFile

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		require.NoError(s.T(), logging.SetLevel(level))
	}

	if _, err := os.Stat(settingsFile); err != nil {
		// A missing default $HOME/.env just means every suite skips.
		if errors.Is(err, os.ErrNotExist) && settingsFromEnv == "" {
			return
		}
		require.NoError(s.T(), err)
	}

	require.NoError(s.T(), godotenv.Overload(settingsFile))
}

func (s *ExternalDependenciesSuite) SettingsFile() string {
	return s.settingsFile
}
