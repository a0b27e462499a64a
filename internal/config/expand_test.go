package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv_SubstitutesSetVariable(t *testing.T) {
	t.Setenv("AMANMCP_TEST_VAR", "hello")
	assert.Equal(t, "value=hello", ExpandEnv("value=${AMANMCP_TEST_VAR}"))
}

func TestExpandEnv_FallsBackToDefaultWhenUnset(t *testing.T) {
	os.Unsetenv("AMANMCP_TEST_UNSET")
	assert.Equal(t, "level=info", ExpandEnv("level=${AMANMCP_TEST_UNSET:-info}"))
}

func TestExpandEnv_EmptyVariableUsesDefaultToo(t *testing.T) {
	t.Setenv("AMANMCP_TEST_EMPTY", "")
	assert.Equal(t, "level=info", ExpandEnv("level=${AMANMCP_TEST_EMPTY:-info}"))
}

func TestExpandEnv_NoDefaultAndUnsetYieldsEmptyString(t *testing.T) {
	os.Unsetenv("AMANMCP_TEST_UNSET2")
	assert.Equal(t, "level=", ExpandEnv("level=${AMANMCP_TEST_UNSET2}"))
}

func TestExpandEnv_MultipleReferencesInOneString(t *testing.T) {
	t.Setenv("AMANMCP_TEST_A", "foo")
	t.Setenv("AMANMCP_TEST_B", "bar")
	assert.Equal(t, "foo-bar", ExpandEnv("${AMANMCP_TEST_A}-${AMANMCP_TEST_B}"))
}

func TestExpandEnv_DefaultValueCanContainColons(t *testing.T) {
	os.Unsetenv("AMANMCP_TEST_URL")
	assert.Equal(t, "http://localhost:11434", ExpandEnv("${AMANMCP_TEST_URL:-http://localhost:11434}"))
}

func TestExpandEnv_PlainStringWithoutReferencesIsUnchanged(t *testing.T) {
	assert.Equal(t, "no vars here", ExpandEnv("no vars here"))
}

func TestExpandEnv_UnterminatedReferenceIsLeftAlone(t *testing.T) {
	assert.Equal(t, "value=${BROKEN", ExpandEnv("value=${BROKEN"))
}

func TestLoadYAML_ExpandsEnvironmentVariablesBeforeParsing(t *testing.T) {
	t.Setenv("AMANMCP_TEST_LOG_LEVEL", "warn")
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, ".amanmcp.yaml")
	content := "server:\n  log_level: \"${AMANMCP_TEST_LOG_LEVEL:-debug}\"\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(content), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.loadYAML(yamlPath))

	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoadYAML_ExpandedDefaultAppliesWhenEnvUnset(t *testing.T) {
	os.Unsetenv("AMANMCP_TEST_TRANSPORT")
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, ".amanmcp.yaml")
	content := "server:\n  transport: \"${AMANMCP_TEST_TRANSPORT:-stdio}\"\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(content), 0o644))

	cfg := NewConfig()
	require.NoError(t, cfg.loadYAML(yamlPath))

	assert.Equal(t, "stdio", cfg.Server.Transport)
}
