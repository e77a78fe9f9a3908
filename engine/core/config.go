package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// MaxFramesInFlight bounds the number of frame slots the renderer cycles through.
const MaxFramesInFlight = 3

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"height"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Number of frame slots (sync sets, command buffers) cycled round-robin.
	FramesInFlight uint32 `toml:"frames_in_flight"`
	// Requested swapchain image count, clamped to what the surface supports.
	DesiredImageCount uint32 `toml:"desired_image_count"`
	// When false the low latency mailbox mode is preferred over FIFO.
	VSync bool `toml:"vsync"`
	// Enables the validation layers and the debug report messenger.
	Validation       bool       `toml:"validation"`
	ValidationLayers []string   `toml:"validation_layers"`
	ClearColor       [4]float32 `toml:"clear_color"`
}

type Config struct {
	Application ApplicationConfig `toml:"application"`
	Log         LogConfig         `toml:"log"`
	Renderer    RendererConfig    `toml:"renderer"`
}

func DefaultConfig() *Config {
	return &Config{
		Application: ApplicationConfig{
			Name:        "vkwrap",
			StartPosX:   100,
			StartPosY:   100,
			StartWidth:  1280,
			StartHeight: 720,
		},
		Log: LogConfig{
			Level: "info",
		},
		Renderer: RendererConfig{
			FramesInFlight:    2,
			DesiredImageCount: 3,
			VSync:             false,
			Validation:        false,
			ValidationLayers:  []string{"VK_LAYER_KHRONOS_validation"},
			ClearColor:        [4]float32{0.0, 0.0, 0.2, 1.0},
		},
	}
}

// ParseConfig decodes data on top of the defaults, so partial files are fine.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig reads the TOML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		LogInfo("config file '%s' not found, using defaults", path)
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func (c *Config) Validate() error {
	if c.Application.StartWidth == 0 || c.Application.StartHeight == 0 {
		return fmt.Errorf("invalid window size %dx%d", c.Application.StartWidth, c.Application.StartHeight)
	}
	if c.Renderer.FramesInFlight < 1 || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("frames_in_flight must be within [1, %d], got %d", MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	if c.Renderer.DesiredImageCount < 1 {
		return fmt.Errorf("desired_image_count must be at least 1")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("clear_color[%d] = %f is outside [0, 1]", i, v)
		}
	}
	return nil
}

// ConfigWatcher reloads the configuration file whenever it is written and
// delivers the result on Changes. Invalid files are logged and skipped.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan *Config
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func WatchConfig(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		path:    abs,
		watcher: w,
		changes: make(chan *Config, 1),
		done:    make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.start()
	return cw, nil
}

// Changes delivers the most recent successfully parsed configuration.
func (cw *ConfigWatcher) Changes() <-chan *Config {
	return cw.changes
}

func (cw *ConfigWatcher) Close() error {
	var err error
	cw.once.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}

func (cw *ConfigWatcher) start() {
	defer cw.wg.Done()
	for {
		select {
		case e, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path || !e.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogWarn("ignoring config reload: %s", err)
				continue
			}
			cw.publish(cfg)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			LogError("%s", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) publish(cfg *Config) {
	select {
	case cw.changes <- cfg:
	default:
		// Only the latest configuration matters.
		select {
		case <-cw.changes:
		default:
		}
		cw.changes <- cfg
	}
}
