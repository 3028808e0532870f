package fleet

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigBuilderRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gunicorn.d")

	path, err := NewConfigBuilder("shop", dir).
		WithMode(ModeDjango).
		WithUser("shop").
		WithGroup("shop").
		WithWorkingDir("/srv/shop").
		WithPython("/opt/venv/bin/python").
		WithEnv("DJANGO_SETTINGS_MODULE", "shop.settings").
		WithEnv("DEBUG", "false").
		WithArgs("--workers", "4").
		WithArgs("--bind", "127.0.0.1:8001").
		Build()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shop"), path)

	assert.FileExists(t, path)

	raw, err := LoadFile(path)
	require.NoError(t, err)
	cfg, err := NewServiceConfig(path, "/run", "/log", raw)
	require.NoError(t, err)

	assert.Equal(t, ModeDjango, cfg.Mode)
	assert.Equal(t, "shop", cfg.User)
	assert.Equal(t, "shop", cfg.Group)
	assert.Equal(t, "/srv/shop", cfg.WorkingDir)
	assert.Equal(t, "/opt/venv/bin/python", cfg.Python)
	assert.Equal(t, map[string]string{"DJANGO_SETTINGS_MODULE": "shop.settings", "DEBUG": "false"}, cfg.Environment)
	assert.Equal(t, []string{"--workers", "4", "--bind", "127.0.0.1:8001"}, cfg.Args)
}

func TestConfigBuilderOmitsDefaults(t *testing.T) {
	dir := t.TempDir()

	path, err := NewConfigBuilder("bare", dir).Build()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))

	raw, err := LoadFile(path)
	require.NoError(t, err)
	cfg, err := NewServiceConfig(path, "/run", "/log", raw)
	require.NoError(t, err)
	assert.Equal(t, ModeWSGI, cfg.Mode)
	assert.Equal(t, DefaultUser, cfg.User)
}

func TestConfigBuilderValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		builder *ConfigBuilder
	}{
		{"empty name", NewConfigBuilder("", dir)},
		{"path name", NewConfigBuilder("a/b", dir)},
		{"dot", NewConfigBuilder("..", dir)},
		{"ignored underscore", NewConfigBuilder("_draft", dir)},
		{"ignored example", NewConfigBuilder("app.example", dir)},
		{"bad mode", NewConfigBuilder("app", dir).WithMode("uwsgi")},
		{"no dir", NewConfigBuilder("app", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConfigBuilderOverwrite(t *testing.T) {
	dir := t.TempDir()

	_, err := NewConfigBuilder("app", dir).WithMode(ModeWSGI).Build()
	require.NoError(t, err)

	_, err = NewConfigBuilder("app", dir).WithMode(ModePaster).Build()
	assert.ErrorIs(t, err, fs.ErrExist)

	path, err := NewConfigBuilder("app", dir).WithMode(ModePaster).WithOverwrite(true).Build()
	require.NoError(t, err)

	raw, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "paster", raw["mode"])
}
