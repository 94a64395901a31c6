package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dsp-reconciler/config"
)

func TestFromMap_Defaults(t *testing.T) {
	c, err := config.FromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "dsp.db", c.DBPath)
	assert.Equal(t, "upload_dsp/", c.UploadFolder)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, int64(32<<20), c.MaxUploadSize)
	assert.Equal(t, "/metrics", c.MetricsPath)
	assert.Equal(t, 30*time.Second, c.ShutdownTimeout)
	assert.Equal(t, ":8080", c.Address())
	assert.Equal(t, logrus.InfoLevel, c.LogrusLogLevel())
}

func TestFromMap_Overrides(t *testing.T) {
	c, err := config.FromMap(map[string]string{
		"PORT":             "9090",
		"CORS_ORIGINS":     "https://a.example,https://b.example",
		"LOG_LEVEL":        "debug",
		"LOG_FORMAT":       "json",
		"SHUTDOWN_TIMEOUT": "5s",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.Equal(t, 5*time.Second, c.ShutdownTimeout)

	logger := c.Logger()
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

func TestFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"port not a number", map[string]string{"PORT": "http"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"zero upload size", map[string]string{"MAX_UPLOAD_SIZE": "0"}},
		{"relative metrics path", map[string]string{"METRICS_PATH": "metrics"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromMap(tt.environ)
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("UPLOAD_FOLDER=/srv/dsp\n"), 0o600))

	// godotenv does not override variables already set, and t.Setenv
	// restores them afterwards.
	t.Setenv("DB_PATH", "/tmp/test.db")
	os.Unsetenv("UPLOAD_FOLDER")
	t.Cleanup(func() { os.Unsetenv("UPLOAD_FOLDER") })

	c, err := config.Load(file, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/dsp", c.UploadFolder)
	assert.Equal(t, "/tmp/test.db", c.DBPath)
}

func TestLoadEnv_NoFiles(t *testing.T) {
	n, err := config.LoadEnv([]string{filepath.Join(t.TempDir(), "nope.env")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
