package core

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[application]
name = "testbed"
width = 800

[renderer]
frames_in_flight = 3
vsync = true
clear_color = [0.1, 0.2, 0.3, 1.0]
`))
	require.NoError(t, err)

	assert.Equal(t, "testbed", cfg.Application.Name)
	assert.Equal(t, uint32(800), cfg.Application.StartWidth)
	assert.Equal(t, uint32(720), cfg.Application.StartHeight, "unset keys keep their default")
	assert.Equal(t, uint32(3), cfg.Renderer.FramesInFlight)
	assert.Equal(t, uint32(3), cfg.Renderer.DesiredImageCount)
	assert.True(t, cfg.Renderer.VSync)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.0}, cfg.Renderer.ClearColor)
	assert.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, cfg.Renderer.ValidationLayers)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `[renderer`},
		{"zero frames in flight", "[renderer]\nframes_in_flight = 0"},
		{"too many frames in flight", "[renderer]\nframes_in_flight = 4"},
		{"zero image count", "[renderer]\ndesired_image_count = 0"},
		{"zero width", "[application]\nwidth = 0"},
		{"bad log level", "[log]\nlevel = \"chatty\""},
		{"clear colour out of range", "[renderer]\nclear_color = [2.0, 0.0, 0.0, 1.0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkwrap.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nvsync = false\n"), 0o644))

	cw, err := WatchConfig(path)
	require.NoError(t, err)
	defer cw.Close()

	// An invalid write is skipped, the next valid one is delivered.
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nframes_in_flight = 9\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nvsync = true\n"), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-cw.Changes():
			if cfg.Renderer.VSync {
				return
			}
		case <-deadline:
			t.Fatal("config reload was not delivered")
		}
	}
}

func TestConfigWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vkwrap.toml")
	cw, err := WatchConfig(path)
	require.NoError(t, err)
	assert.NoError(t, cw.Close())
	assert.NoError(t, cw.Close())
}
