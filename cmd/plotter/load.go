package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mastercactapus/plotter/config"
	"github.com/mastercactapus/plotter/gcode"
	"github.com/mastercactapus/plotter/geometry"
	"github.com/mastercactapus/plotter/motion"
	"github.com/mastercactapus/plotter/sequence"
	"github.com/mastercactapus/plotter/svg"
)

// loadDrawing picks a loader by file extension.
func loadDrawing(path string) (geometry.Drawing, error) {
	f, err := os.Open(path)
	if err != nil {
		return geometry.Drawing{}, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return svg.Parse(f)
	case ".gcode", ".nc", ".ngc", ".gc", ".g":
		return gcode.Drawing(f)
	}
	return geometry.Drawing{}, fmt.Errorf("%s: unsupported file type", path)
}

// loadJob runs the whole planning pipeline for a drawing file.
func loadJob(path string, cfg config.Config, log *slog.Logger) (motion.Job, error) {
	d, err := loadDrawing(path)
	if err != nil {
		return motion.Job{}, err
	}
	paths, err := geometry.Extract(d, cfg.Motion.Tolerance)
	if err != nil {
		return motion.Job{}, err
	}

	opts := cfg.Sequence()
	strokes := sequence.Sequence(paths, opts)
	log.Debug("sequenced",
		"paths", len(paths),
		"strokes", len(strokes),
		"travel_mm", sequence.TravelDistance(strokes, opts.Start),
	)

	return motion.Plan(sequence.Paths(strokes), cfg.Limits())
}
