package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

type Config struct {
	API      APIConfig      `yaml:"api"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Playback PlaybackConfig `yaml:"playback"`
	Log      LogConfig      `yaml:"log"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	WSURL   string        `yaml:"ws_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type ViewerConfig struct {
	FPS             int     `yaml:"fps"`
	SpringFrequency float64 `yaml:"spring_frequency"`
	SpringDamping   float64 `yaml:"spring_damping"`
	ZoomStep        float64 `yaml:"zoom_step"` // factor per zoom key press
	PanStep         float64 `yaml:"pan_step"`  // fraction of the viewport per pan key press
}

type PlaybackConfig struct {
	Player         string        `yaml:"player"` // "mpv" or "simulated"
	Binary         string        `yaml:"binary"`
	ExtraArgs      []string      `yaml:"extra_args"`
	StatusInterval time.Duration `yaml:"status_interval"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
}

type LogConfig struct {
	File      string `yaml:"file"`
	Verbosity int    `yaml:"verbosity"`
}

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Viewer: ViewerConfig{
			FPS:             60,
			SpringFrequency: 6.0,
			SpringDamping:   1.0,
			ZoomStep:        1.25,
			PanStep:         0.1,
		},
		Playback: PlaybackConfig{
			Player:         "mpv",
			Binary:         "mpv",
			StatusInterval: 250 * time.Millisecond,
			StopTimeout:    2 * time.Second,
		},
		Log: LogConfig{
			File: DefaultLogFile(),
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config { return defaultConfig() }

// Load reads path and applies it on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		klog.V(1).Infof("config %s not found, using defaults", path)
		return defaultConfig(), nil
	}
	return cfg, err
}

// Validate rejects settings the viewer and player cannot run with.
func (c *Config) Validate() error {
	if c.Viewer.FPS <= 0 {
		return fmt.Errorf("viewer.fps must be positive, got %d", c.Viewer.FPS)
	}
	if c.Viewer.ZoomStep <= 1 {
		return fmt.Errorf("viewer.zoom_step must be greater than 1, got %v", c.Viewer.ZoomStep)
	}
	if c.Viewer.PanStep <= 0 || c.Viewer.PanStep > 1 {
		return fmt.Errorf("viewer.pan_step must be in (0, 1], got %v", c.Viewer.PanStep)
	}
	switch c.Playback.Player {
	case "mpv", "simulated":
	default:
		return fmt.Errorf("playback.player must be mpv or simulated, got %q", c.Playback.Player)
	}
	return nil
}

// DefaultPath is the config location under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mediadeck.yaml"
	}
	return filepath.Join(dir, "mediadeck", "config.yaml")
}

// DefaultLogFile is the log location under the user state directory.
func DefaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "mediadeck", "mediadeck.log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "mediadeck", "mediadeck.log")
	}
	return filepath.Join(os.TempDir(), "mediadeck.log")
}

// Watch reloads path whenever it changes and sends each successfully parsed
// config on the returned channel. Parse errors are logged and skipped. The
// channel is closed when ctx is done.
func Watch(ctx context.Context, path string) (<-chan *Config, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory so editors that replace the file are seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	out := make(chan *Config, 1)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					klog.Warningf("config reload: %v", err)
					continue
				}
				klog.Infof("config reloaded from %s", path)
				select {
				case <-out:
				default:
				}
				out <- cfg
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				klog.Warningf("config watch: %v", err)
			}
		}
	}()
	return out, nil
}
