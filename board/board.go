// Package board loads the YAML description of a panel board: its wiring,
// display parameters, touch controller and logging.
package board

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flavioheleno/sh8601"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// DisplayConfig describes the panel.
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Clock is the pixel clock with its unit, e.g. "40MHz".
	Clock        string        `yaml:"clock"`
	DrawRows     int           `yaml:"draw_rows"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	SoftReset    bool          `yaml:"soft_reset"`
	// Brightness applied after bring-up, 0-255. Unset means 255.
	Brightness *int `yaml:"brightness"`
}

// PinConfig assigns the panel signals to GPIO numbers.
type PinConfig struct {
	CS    int `yaml:"cs"`
	SCLK  int `yaml:"sclk"`
	D0    int `yaml:"d0"`
	D1    int `yaml:"d1"`
	D2    int `yaml:"d2"`
	D3    int `yaml:"d3"`
	RST   int `yaml:"rst"`
	PWREN int `yaml:"pwren"`
}

// SPIConfig selects the SPI port the panel is attached to.
type SPIConfig struct {
	// Port is the periph.io port name, empty for the first one.
	Port       string `yaml:"port"`
	SingleLane bool   `yaml:"single_lane"`
	Chunk      int    `yaml:"chunk"`
}

// TouchConfig describes the touch controller.
type TouchConfig struct {
	Enabled bool `yaml:"enabled"`
	// Bus is the periph.io I²C bus name, empty for the first one.
	Bus  string `yaml:"bus"`
	Addr uint16 `yaml:"addr"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Config is the top-level board configuration.
type Config struct {
	Display DisplayConfig `yaml:"display"`
	Pins    PinConfig     `yaml:"pins"`
	SPI     SPIConfig     `yaml:"spi"`
	Touch   TouchConfig   `yaml:"touch"`
	Log     LogConfig     `yaml:"log"`

	// Refresh is the cron schedule of the demo redraw, e.g. "@every 1s".
	Refresh string `yaml:"refresh"`
}

const maxBrightness = 255

// Default returns the configuration of the 1.43" 466x466 board.
func Default() *Config {
	p := sh8601.DefaultPins
	brightness := maxBrightness
	return &Config{
		Display: DisplayConfig{
			Width:      466,
			Height:     466,
			Clock:      "40MHz",
			DrawRows:   20,
			Brightness: &brightness,
		},
		Pins: PinConfig{
			CS:    int(p.CS),
			SCLK:  int(p.SCLK),
			D0:    int(p.D0),
			D1:    int(p.D1),
			D2:    int(p.D2),
			D3:    int(p.D3),
			RST:   int(p.RST),
			PWREN: int(p.PWREN),
		},
		Touch: TouchConfig{
			Enabled: true,
			Addr:    0x38,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Refresh: "@every 1s",
	}
}

// Normalize fills in missing values with the defaults so that partial files
// still describe a complete board.
func (c *Config) Normalize() {
	d := Default()
	if c.Display.Width <= 0 {
		c.Display.Width = d.Display.Width
	}
	if c.Display.Height <= 0 {
		c.Display.Height = d.Display.Height
	}
	if c.Display.Clock == "" {
		c.Display.Clock = d.Display.Clock
	}
	if c.Display.DrawRows <= 0 {
		c.Display.DrawRows = d.Display.DrawRows
	}
	if c.Display.FlushTimeout < 0 {
		c.Display.FlushTimeout = 0
	}
	if b := c.Display.Brightness; b == nil {
		c.Display.Brightness = d.Display.Brightness
	} else if v := min(max(*b, 0), maxBrightness); v != *b {
		c.Display.Brightness = &v
	}
	if c.Pins == (PinConfig{}) {
		c.Pins = d.Pins
	}
	if c.Touch.Addr == 0 {
		c.Touch.Addr = d.Touch.Addr
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		c.Log.Level = d.Log.Level
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		c.Log.Format = d.Log.Format
	}
	if c.Refresh == "" {
		c.Refresh = d.Refresh
	}
}

// Load loads the configuration from the YAML file at path.
//
// A missing file is created with the defaults (mode 0600) and the defaults
// are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("board: config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("board: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with mode 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("board: config path is empty")
	}
	if cfg == nil {
		return errors.New("board: config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sh8601-board-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Brightness returns the display brightness, 255 when unset.
func (c *Config) Brightness() byte {
	if c.Display.Brightness == nil {
		return maxBrightness
	}
	return byte(min(max(*c.Display.Brightness, 0), maxBrightness))
}

// PanelPins converts the pin section.
func (c *Config) PanelPins() sh8601.Pins {
	p := c.Pins
	return sh8601.Pins{
		CS:    sh8601.Pin(p.CS),
		SCLK:  sh8601.Pin(p.SCLK),
		D0:    sh8601.Pin(p.D0),
		D1:    sh8601.Pin(p.D1),
		D2:    sh8601.Pin(p.D2),
		D3:    sh8601.Pin(p.D3),
		RST:   sh8601.Pin(p.RST),
		PWREN: sh8601.Pin(p.PWREN),
	}
}

// Opts returns the driver options described by the display and pin
// sections.
func (c *Config) Opts(log logrus.FieldLogger) (*sh8601.Opts, error) {
	var clock physic.Frequency
	if err := clock.Set(c.Display.Clock); err != nil {
		return nil, fmt.Errorf("board: display clock %q: %w", c.Display.Clock, err)
	}
	return &sh8601.Opts{
		W:            c.Display.Width,
		H:            c.Display.Height,
		Pins:         c.PanelPins(),
		Clock:        clock,
		DrawRows:     c.Display.DrawRows,
		FlushTimeout: c.Display.FlushTimeout,
		SoftReset:    c.Display.SoftReset,
		Logger:       log,
	}, nil
}

// Logger returns a logrus logger configured by the log section.
func (c *Config) Logger() (*logrus.Logger, error) {
	l := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	l.SetLevel(level)
	switch strings.ToLower(c.Log.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
