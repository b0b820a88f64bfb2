package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/domain"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("studio-a")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "studio-a", cfg.Studio.ID)
	assert.Equal(t, 10, cfg.Formats.MultiRoleCap)
	assert.Equal(t, 4, cfg.CharacterCount(domain.FormatMulti))
	assert.Equal(t, 2, cfg.CharacterCount(domain.FormatDuet))
	assert.True(t, cfg.Workflow.AllowBackward)
	assert.True(t, cfg.Contracts.AnnotateReverts)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte(`
studio:
  id: north
workflow:
  allow_backward: false
formats:
  multi_role_cap: 6
`))
	require.NoError(t, err)
	assert.Equal(t, "north", cfg.Studio.ID)
	assert.False(t, cfg.Workflow.AllowBackward)
	assert.True(t, cfg.Workflow.AllowSkip)
	assert.Equal(t, 6, cfg.Formats.MultiRoleCap)
	assert.Equal(t, 1, cfg.CharacterCount(domain.FormatSolo))
	assert.Equal(t, 5, cfg.Store.RetryAttempts)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"missing id":    "studio:\n  id: \"\"\n",
		"cap too large": "studio:\n  id: s\nformats:\n  multi_role_cap: 11\n",
		"solo two":      "studio:\n  id: s\nformats:\n  intake_characters:\n    Solo: 2\n",
		"bad format":    "studio:\n  id: s\nformats:\n  intake_characters:\n    Trio: 3\n",
		"bad retries":   "studio:\n  id: s\nstore:\n  retry_attempts: 0\n",
		"bad webhook":   "studio:\n  id: s\nnotifications:\n  webhook_url: \"ftp://x\"\n",
		"neg weight":    "studio:\n  id: s\nmatching:\n  weights:\n    age: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "studioline.yml"), []byte(GenerateDefault("disk")), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "disk", cfg.Studio.ID)
}

func TestYAMLRoundTrip(t *testing.T) {
	cfg := Default("round")
	cfg.Matching.Limit = 3
	data, err := cfg.YAML()
	require.NoError(t, err)
	parsed, err := FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.Matching.Limit)
	assert.Equal(t, "round", parsed.Studio.ID)
}
