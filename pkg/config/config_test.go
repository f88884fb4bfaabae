package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exportmap.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "rest", cfg.Source.Kind)
	assert.Equal(t, 5.0, cfg.View.DetailZoom)
	assert.Equal(t, time.Hour, cfg.View.SnapshotTTL.Std())

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "kind: rest")
	assert.Contains(t, string(written), "# Options: rest, postgres, sqlite, static")
}

func TestLoad_ExistingFile(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config, written string)
	}{
		{
			name: "values override defaults",
			yaml: "source:\n  kind: static\nview:\n  detail_zoom: 7\n  fly_duration: 2s\ndb:\n  cache_max_age: 2w\n",
			check: func(t *testing.T, cfg *Config, written string) {
				assert.Equal(t, "static", cfg.Source.Kind)
				assert.Equal(t, 7.0, cfg.View.DetailZoom)
				assert.Equal(t, 2*time.Second, cfg.View.FlyDuration.Std())
				assert.Equal(t, 2*Week, cfg.DB.CacheMaxAge.Std())
				assert.Equal(t, "memory", cfg.Session.Store, "unset fields keep defaults")
				assert.NotContains(t, written, "session:", "existing file is not rewritten")
			},
		},
		{
			name: "secrets come from the environment",
			yaml: "source:\n  key: \"\"\n",
			env: map[string]string{
				"EXPORTMAP_SOURCE_KEY":      "env_secret_key",
				"EXPORTMAP_CONTACT_WEBHOOK": "https://hooks.example.org/contact",
			},
			check: func(t *testing.T, cfg *Config, written string) {
				assert.Equal(t, "env_secret_key", cfg.Source.Key)
				assert.Equal(t, "https://hooks.example.org/contact", cfg.Contact.WebhookURL)
				assert.NotContains(t, written, "env_secret_key")
			},
		},
		{
			name: "file value beats environment",
			yaml: "source:\n  key: file_key\n",
			env:  map[string]string{"EXPORTMAP_SOURCE_KEY": "env_secret_key"},
			check: func(t *testing.T, cfg *Config, _ string) {
				assert.Equal(t, "file_key", cfg.Source.Key)
			},
		},
		{name: "malformed yaml", yaml: "view: [not a map]", wantErr: true},
		{name: "unknown source kind", yaml: "source:\n  kind: ftp\n", wantErr: true},
		{name: "detail zoom out of range", yaml: "view:\n  detail_zoom: 30\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "exportmap.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			written, err := os.ReadFile(path)
			require.NoError(t, err)
			tt.check(t, cfg, string(written))
		})
	}
}

func TestGenerateDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "default_config.yaml")
	require.NoError(t, GenerateDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Bibliography.Timeout.Std())

	require.NoError(t, GenerateDefault(path), "existing file is left alone")
}
