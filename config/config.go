// Package config loads plotter settings from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/mastercactapus/plotter/coord"
	"github.com/mastercactapus/plotter/logging"
	"github.com/mastercactapus/plotter/machine"
	"github.com/mastercactapus/plotter/machine/ebb"
	"github.com/mastercactapus/plotter/motion"
	"github.com/mastercactapus/plotter/sequence"
)

// Config is the complete set of plotter settings.
type Config struct {
	// Model selects the travel area of a known machine. Explicit width
	// and height override it.
	Model string `mapstructure:"model"`

	Motion Motion `mapstructure:"motion"`
	Pen    Pen    `mapstructure:"pen"`
	Device Device `mapstructure:"device"`
	Log    Log    `mapstructure:"log"`

	// StatusAddr is the listen address of the status server; empty
	// disables it.
	StatusAddr string `mapstructure:"status_addr"`
}

type Motion struct {
	// Velocity in mm/s.
	Velocity float64 `mapstructure:"velocity"`
	// Acceleration in mm/s².
	Acceleration      float64 `mapstructure:"acceleration"`
	StepsPerMM        float64 `mapstructure:"steps_per_mm"`
	Width             float64 `mapstructure:"width"`
	Height            float64 `mapstructure:"height"`
	JunctionDeviation float64 `mapstructure:"junction_deviation"`
	// Tolerance is the largest distance in mm between a curve and its
	// flattened polyline.
	Tolerance    float64       `mapstructure:"tolerance"`
	TimeSlice    time.Duration `mapstructure:"time_slice"`
	ReturnHome   bool          `mapstructure:"return_home"`
	AllowReverse bool          `mapstructure:"allow_reverse"`
}

// Pen positions are servo percentages; speeds are percent per second.
type Pen struct {
	Up        float64       `mapstructure:"up"`
	Down      float64       `mapstructure:"down"`
	UpSpeed   float64       `mapstructure:"up_speed"`
	DownSpeed float64       `mapstructure:"down_speed"`
	UpDelay   time.Duration `mapstructure:"up_delay"`
	DownDelay time.Duration `mapstructure:"down_delay"`
}

type Device struct {
	// Port is a serial device path, or the port name on the bridge. Empty
	// means autodetect.
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
	// Bridge is the websocket URL of a serial-port-json-server.
	Bridge string `mapstructure:"bridge"`

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ConnectRetries int           `mapstructure:"connect_retries"`
	StatusTimeout  time.Duration `mapstructure:"status_timeout"`
	CommandMargin  time.Duration `mapstructure:"command_margin"`
	Retries        int           `mapstructure:"retries"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Models maps machine names to their travel area in mm.
var Models = map[string]motion.Bounds{
	"v3":   {Width: 215.9, Height: 279.4},
	"v3a3": {Width: 279.4, Height: 431.8},
	"sea3": {Width: 279.4, Height: 431.8},
	"mini": {Width: 160, Height: 101},
}

var (
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidTolerance = errors.New("tolerance must be positive")
	ErrInvalidPen       = errors.New("pen positions must be within 0-100")
	ErrInvalidSpeed     = errors.New("pen speeds must be positive")
	ErrInvalidSlice     = errors.New("time slice must be positive")
	ErrInvalidBaud      = errors.New("baud must be positive")
)

// Default returns the settings of a V3 with a fine pen.
func Default() Config {
	drv := ebb.DefaultConfig()
	return Config{
		Model: "v3",
		Motion: Motion{
			Velocity:          20,
			Acceleration:      160,
			StepsPerMM:        80,
			Width:             Models["v3"].Width,
			Height:            Models["v3"].Height,
			JunctionDeviation: 0.05,
			Tolerance:         0.05,
			TimeSlice:         100 * time.Millisecond,
			ReturnHome:        true,
			AllowReverse:      true,
		},
		Pen: Pen{
			Up:        60,
			Down:      30,
			UpSpeed:   150,
			DownSpeed: 150,
		},
		Device: Device{
			Baud:           115200,
			ConnectTimeout: drv.ConnectTimeout,
			ConnectRetries: drv.ConnectRetries,
			StatusTimeout:  drv.StatusTimeout,
			CommandMargin:  drv.CommandMargin,
			Retries:        drv.Retries,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads YAML settings on top of Default.
func Load(r io.Reader) (Config, error) {
	cfg := Default()

	var raw map[string]interface{}
	err := yaml.NewDecoder(r).Decode(&raw)
	if errors.Is(err, io.EOF) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	// a model sets the bounds first so explicit values still win
	if m, ok := raw["model"].(string); ok {
		if err := cfg.SetModel(m); err != nil {
			return cfg, err
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFile reads settings from path. An empty path returns Default.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SetModel applies the bounds of a known model.
func (c *Config) SetModel(name string) error {
	b, ok := Models[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	c.Model = name
	c.Motion.Width, c.Motion.Height = b.Width, b.Height
	return nil
}

// Validate checks every setting the pipeline depends on.
func (c Config) Validate() error {
	if err := c.Limits().Validate(); err != nil {
		return err
	}
	switch {
	case !(c.Motion.Tolerance > 0):
		return ErrInvalidTolerance
	case c.Motion.TimeSlice <= 0:
		return ErrInvalidSlice
	case c.Pen.Up < 0 || c.Pen.Up > 100 || c.Pen.Down < 0 || c.Pen.Down > 100:
		return ErrInvalidPen
	case !(c.Pen.UpSpeed > 0) || !(c.Pen.DownSpeed > 0):
		return ErrInvalidSpeed
	case c.Device.Baud <= 0:
		return ErrInvalidBaud
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Limits returns the motion planner settings.
func (c Config) Limits() motion.Limits {
	return motion.Limits{
		MaxVelocity:       c.Motion.Velocity,
		MaxAcceleration:   c.Motion.Acceleration,
		StepsPerMM:        motion.StepsPerMM{X: c.Motion.StepsPerMM, Y: c.Motion.StepsPerMM},
		Bounds:            motion.Bounds{Width: c.Motion.Width, Height: c.Motion.Height},
		JunctionDeviation: c.Motion.JunctionDeviation,
		Home:              coord.Point{},
		ReturnHome:        c.Motion.ReturnHome,
	}
}

// Sequence returns the stroke ordering options.
func (c Config) Sequence() sequence.Options {
	return sequence.Options{AllowReverse: c.Motion.AllowReverse}
}

// Driver returns the device driver settings.
func (c Config) Driver() ebb.Config {
	cfg := ebb.DefaultConfig()
	cfg.ConnectTimeout = c.Device.ConnectTimeout
	cfg.ConnectRetries = c.Device.ConnectRetries
	cfg.StatusTimeout = c.Device.StatusTimeout
	cfg.CommandMargin = c.Device.CommandMargin
	cfg.Retries = c.Device.Retries
	return cfg
}

// Session returns the session controller settings.
func (c Config) Session() machine.Config {
	cfg := machine.DefaultConfig()
	cfg.Pen = machine.Pen{
		Up:        c.Pen.Up,
		Down:      c.Pen.Down,
		UpSpeed:   c.Pen.UpSpeed,
		DownSpeed: c.Pen.DownSpeed,
		UpDelay:   c.Pen.UpDelay,
		DownDelay: c.Pen.DownDelay,
	}
	cfg.TimeSlice = c.Motion.TimeSlice
	return cfg
}
