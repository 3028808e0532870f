package fleet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileFormats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "shop",
			content: `# gunicorn service
mode: django
working_dir: /srv/shop
environment:
  DJANGO_SETTINGS_MODULE: shop.settings
  WORKERS: 4
args:
  - --bind
  - 127.0.0.1:8001
`,
		},
		{
			name: "shop.toml",
			content: `mode = "django"
working_dir = "/srv/shop"
args = ["--bind", "127.0.0.1:8001"]

[environment]
DJANGO_SETTINGS_MODULE = "shop.settings"
WORKERS = 4
`,
		},
		{
			name: "shop.json",
			content: `{
  // served behind nginx
  "mode": "django",
  "working_dir": "/srv/shop",
  "environment": {"DJANGO_SETTINGS_MODULE": "shop.settings", "WORKERS": 4},
  "args": ["--bind", "127.0.0.1:8001",],
}
`,
		},
		{
			name:    "shop.conf",
			content: `{"mode": "django", "working_dir": "/srv/shop", "environment": {"DJANGO_SETTINGS_MODULE": "shop.settings", "WORKERS": 4}, "args": ["--bind", "127.0.0.1:8001"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name, tt.content)

			raw, err := LoadFile(path)
			require.NoError(t, err)

			cfg, err := NewServiceConfig(path, "/run", "/log", raw)
			require.NoError(t, err)

			assert.Equal(t, ModeDjango, cfg.Mode)
			assert.Equal(t, "/srv/shop", cfg.WorkingDir)
			assert.Equal(t, "www-data", cfg.User)
			assert.Equal(t, []string{"--bind", "127.0.0.1:8001"}, cfg.Args)
			assert.Equal(t, map[string]string{"DJANGO_SETTINGS_MODULE": "shop.settings", "WORKERS": "4"}, cfg.Environment)
		})
	}
}

func TestLoadFileEmpty(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"empty", "comments", "blank.toml", "blank.json"} {
		content := ""
		if name == "comments" {
			content = "# nothing configured yet\n"
		}
		raw, err := LoadFile(writeFile(t, dir, name, content))
		require.NoError(t, err, name)
		assert.Empty(t, raw, name)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"scalar", "just a string\n"},
		{"list", "- mode\n- wsgi\n"},
		{"broken.toml", "mode = \n"},
		{"broken.json", "{\"mode\": }"},
		{"python-code", "CONFIG = {\n    'mode': 'wsgi',\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, dir, tt.name, tt.content))
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrConfiguration)
}
