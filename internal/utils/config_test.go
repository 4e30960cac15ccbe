package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mettke/mean-image/internal/imagefmt"
)

// isolate runs the test from an empty directory with an empty HOME so no
// stray config.yaml is picked up
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaultConfig(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "text", cfg.ReportFormat)
	assert.True(t, filepath.IsAbs(cfg.OutputDir))
	resolved, _ := filepath.EvalSymlinks(dir)
	actual, _ := filepath.EvalSymlinks(cfg.OutputDir)
	assert.Equal(t, resolved, actual)

	assert.Equal(t, ImageConfig{Width: 512, Height: 512}, cfg.Image)
	assert.Equal(t, AttackConfig{Width: 65500, Height: 65500}, cfg.Attack)
	assert.Equal(t, imagefmt.DefaultJPEGQuality, cfg.JPEG.Quality)
	assert.Equal(t, 256, cfg.GIF.NumColors)
	assert.False(t, cfg.Parallel)
	assert.False(t, cfg.Probe)

	formats, err := cfg.SelectedFormats()
	require.NoError(t, err)
	assert.Equal(t, imagefmt.All(), formats)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, `
log_level: debug
log_format: json
output_dir: out
report_format: toml
formats: [gif, bmp]
parallel: true
probe: true
image:
  width: 64
  height: 48
  seed: 99
attack:
  width: 30000
  height: 20000
jpeg:
  quality: 90
gif:
  num_colors: 64
`)

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "toml", cfg.ReportFormat)
	assert.Equal(t, "out", filepath.Base(cfg.OutputDir))
	assert.True(t, cfg.Parallel)
	assert.True(t, cfg.Probe)
	assert.Equal(t, ImageConfig{Width: 64, Height: 48, Seed: 99}, cfg.Image)
	assert.Equal(t, AttackConfig{Width: 30000, Height: 20000}, cfg.Attack)
	assert.Equal(t, 90, cfg.JPEG.Quality)
	assert.Equal(t, 64, cfg.GIF.NumColors)

	formats, err := cfg.SelectedFormats()
	require.NoError(t, err)
	assert.Equal(t, []imagefmt.Format{imagefmt.FormatGIF, imagefmt.FormatBMP}, formats)
}

func TestLoadConfigSearchPath(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, "attack:\n  width: 1234\n")

	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(1234), cfg.Attack.Width)
	assert.Equal(t, uint32(65500), cfg.Attack.Height)
}

func TestLoadConfigMissingFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadConfigFromFile(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint32(512), cfg.Image.Width)
}

func TestLoadConfigFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("MEAN_IMAGE_LOG_LEVEL", "warn")
	t.Setenv("MEAN_IMAGE_ATTACK_WIDTH", "4000")
	t.Setenv("MEAN_IMAGE_IMAGE_SEED", "7")
	t.Setenv("MEAN_IMAGE_FORMATS", "png,jpeg")
	t.Setenv("MEAN_IMAGE_PROBE", "true")

	cfg, err := LoadDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, uint32(4000), cfg.Attack.Width)
	assert.Equal(t, int64(7), cfg.Image.Seed)
	assert.True(t, cfg.Probe)

	formats, err := cfg.SelectedFormats()
	require.NoError(t, err)
	assert.Equal(t, []imagefmt.Format{imagefmt.FormatPNG, imagefmt.FormatJPEG}, formats)
}

func TestLoadConfigWithOverrides(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "attack:\n  width: 1000\n  height: 1000\n")
	t.Setenv("MEAN_IMAGE_ATTACK_HEIGHT", "2000")

	cfg, err := LoadConfigWithOverrides(path, map[string]interface{}{
		"attack.width":  uint32(3000),
		"formats":       []string{"bmp"},
		"report_format": "JSON",
	})
	require.NoError(t, err)

	assert.Equal(t, uint32(3000), cfg.Attack.Width, "override beats file")
	assert.Equal(t, uint32(2000), cfg.Attack.Height, "env beats file")
	assert.Equal(t, []string{"bmp"}, cfg.Formats)
	assert.Equal(t, "json", cfg.ReportFormat)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		override map[string]interface{}
	}{
		{"invalid log level", map[string]interface{}{"log_level": "verbose"}},
		{"invalid log format", map[string]interface{}{"log_format": "xml"}},
		{"invalid report format", map[string]interface{}{"report_format": "yaml"}},
		{"unknown format", map[string]interface{}{"formats": []string{"tiff"}}},
		{"empty formats", map[string]interface{}{"formats": []string{}}},
		{"zero image width", map[string]interface{}{"image.width": 0}},
		{"image too large for 16-bit fields", map[string]interface{}{"image.height": 70000}},
		{"zero attack height", map[string]interface{}{"attack.height": 0}},
		{"jpeg quality too high", map[string]interface{}{"jpeg.quality": 101}},
		{"too many gif colors", map[string]interface{}{"gif.num_colors": 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := LoadConfigWithOverrides("", tt.override)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()

	nested := filepath.Join(base, "a", "b")
	require.NoError(t, EnsureDir(nested))
	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	require.NoError(t, EnsureDir(nested), "existing directory is fine")

	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, EnsureDir(file))
	assert.Error(t, EnsureDir(""))
}
