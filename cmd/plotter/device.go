package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mastercactapus/plotter/config"
	"github.com/mastercactapus/plotter/link"
	"github.com/mastercactapus/plotter/machine"
	"github.com/mastercactapus/plotter/machine/ebb"
	"github.com/mastercactapus/plotter/metrics"
	"github.com/mastercactapus/plotter/spjs"
)

var errBridgePort = errors.New("a port name is required with --bridge")

// connect opens the device over the bridge when one is configured, or a
// local serial port otherwise.
func connect(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*ebb.Driver, error) {
	var open ebb.Opener
	if cfg.Device.Bridge != "" {
		if cfg.Device.Port == "" {
			return nil, errBridgePort
		}
		open = spjs.Opener(cfg.Device.Bridge, cfg.Device.Port, cfg.Device.Baud, log.With("component", "spjs"))
	} else {
		open = link.Serial(cfg.Device.Port, cfg.Device.Baud)
	}

	drv := ebb.NewDriver(open, cfg.Driver(), ebb.WithLogger(log.With("component", "ebb")), ebb.WithMetrics(m))
	if err := drv.Connect(ctx); err != nil {
		drv.Close()
		return nil, err
	}
	log.Info("connected", "firmware", drv.FirmwareVersion())
	return drv, nil
}

// withSession connects and runs fn against a fresh session.
func withSession(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics, fn func(*machine.Session) error) error {
	drv, err := connect(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer drv.Close()

	sess := machine.NewSession(drv, cfg.Session(), machine.WithLogger(log.With("component", "session")), machine.WithMetrics(m))
	return fn(sess)
}
