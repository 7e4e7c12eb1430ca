package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastercactapus/plotter/motion"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	lim := cfg.Limits()
	assert.Equal(t, 20.0, lim.MaxVelocity)
	assert.Equal(t, 160.0, lim.MaxAcceleration)
	assert.Equal(t, motion.StepsPerMM{X: 80, Y: 80}, lim.StepsPerMM)
	assert.Equal(t, motion.Bounds{Width: 215.9, Height: 279.4}, lim.Bounds)
	assert.True(t, lim.ReturnHome)

	sess := cfg.Session()
	assert.Equal(t, 60.0, sess.Pen.Up)
	assert.Equal(t, 30.0, sess.Pen.Down)
	assert.Equal(t, 100*time.Millisecond, sess.TimeSlice)
	assert.True(t, cfg.Sequence().AllowReverse)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(strings.NewReader(`
model: mini
motion:
  velocity: 35
  acceleration: 400.5
  time_slice: 50ms
  return_home: false
pen:
  up: 70
  up_delay: 250ms
device:
  port: /dev/ttyACM0
  retries: 5
  command_margin: 1s
log:
  level: debug
  format: json
status_addr: ":8080"
`))
	require.NoError(t, err)

	assert.Equal(t, "mini", cfg.Model)
	assert.Equal(t, 35.0, cfg.Motion.Velocity)
	assert.Equal(t, 400.5, cfg.Motion.Acceleration)
	assert.Equal(t, 50*time.Millisecond, cfg.Motion.TimeSlice)
	assert.False(t, cfg.Motion.ReturnHome)
	assert.Equal(t, motion.Bounds{Width: 160, Height: 101}, cfg.Limits().Bounds)

	assert.Equal(t, 70.0, cfg.Pen.Up)
	assert.Equal(t, 30.0, cfg.Pen.Down, "unset values keep their default")
	assert.Equal(t, 250*time.Millisecond, cfg.Session().Pen.UpDelay)

	drv := cfg.Driver()
	assert.Equal(t, 5, drv.Retries)
	assert.Equal(t, time.Second, drv.CommandMargin)
	assert.Equal(t, "/dev/ttyACM0", cfg.Device.Port)
	assert.Equal(t, 115200, cfg.Device.Baud)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.StatusAddr)
}

func TestLoad_ModelOverride(t *testing.T) {
	cfg, err := Load(strings.NewReader("model: V3A3\nmotion:\n  width: 250\n"))
	require.NoError(t, err)
	assert.Equal(t, motion.Bounds{Width: 250, Height: 431.8}, cfg.Limits().Bounds)
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"yaml":     "motion: [",
		"unknown":  "motion:\n  speed: 5\n",
		"model":    "model: huge\n",
		"duration": "motion:\n  time_slice: soon\n",
		"velocity": "motion:\n  velocity: 0\n",
		"pen":      "pen:\n  up: 120\n",
		"speed":    "pen:\n  down_speed: -1\n",
		"slice":    "motion:\n  time_slice: 0s\n",
		"level":    "log:\n  level: loud\n",
		"baud":     "device:\n  baud: 0\n",
	} {
		_, err := Load(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadFile("does-not-exist.yaml")
	assert.Error(t, err)
}
