package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name     string        `env:"TEST_NAME" yaml:"name" default:"fallback"`
	Port     int           `env:"TEST_PORT" yaml:"port" default:"8080"`
	Timeout  time.Duration `env:"TEST_TIMEOUT" yaml:"timeout" default:"30s"`
	Debug    bool          `env:"TEST_DEBUG" yaml:"debug"`
	Tags     []string      `env:"TEST_TAGS" yaml:"tags"`
	Nested   nestedConfig  `yaml:"nested"`
	Required string        `env:"TEST_REQUIRED" yaml:"required" required:"true"`
}

type nestedConfig struct {
	Value string `env:"TEST_NESTED_VALUE" yaml:"value" default:"inner"`
}

func TestGetConfigFromEnvVars(t *testing.T) {
	t.Setenv("TEST_NAME", "from-env")
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_TIMEOUT", "1m")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_TAGS", "a, b,c")
	t.Setenv("TEST_REQUIRED", "present")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Tags)
	assert.Equal(t, "inner", cfg.Nested.Value)
}

func TestDefaultsApplied(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "present")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "fallback", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestRequiredFieldMissing(t *testing.T) {
	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_REQUIRED")
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("TEST_PORT", "not-a-number")
	t.Setenv("TEST_REQUIRED", "present")

	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_PORT")
}

func TestGetConfigYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "name: from-file\nport: 7070\nrequired: file-value\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	// env wins over file
	t.Setenv("TEST_NAME", "from-env")

	var cfg testConfig
	require.NoError(t, GetConfig(&cfg, path, false))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "file-value", cfg.Required)
}

func TestGetConfigMissingFile(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "present")

	var cfg testConfig
	assert.Error(t, GetConfig(&cfg, "/nonexistent/config.yaml", false))
	assert.NoError(t, GetConfig(&cfg, "/nonexistent/config.yaml", true))
}

type validatedConfig struct {
	Mode string `env:"TEST_MODE" default:"strict"`
}

func (c *validatedConfig) Validate() error {
	if c.Mode != "strict" && c.Mode != "lenient" {
		return fmt.Errorf("mode must be strict or lenient, got %q", c.Mode)
	}
	return nil
}

func TestValidatorInvoked(t *testing.T) {
	t.Setenv("TEST_MODE", "chaotic")

	var cfg validatedConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chaotic")
}
