package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mastercactapus/plotter/gcode"
	"github.com/mastercactapus/plotter/motion"
)

var planCmd = &cobra.Command{
	Use:   "plan FILE",
	Short: "Plan a drawing without a device and print a summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		job, err := loadJob(args[0], cfg, log)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), job)

		out, _ := cmd.Flags().GetString("gcode")
		switch out {
		case "":
			return nil
		case "-":
			return gcode.Export(cmd.OutOrStdout(), job)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := gcode.Export(f, job); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	},
}

func printSummary(w io.Writer, job motion.Job) {
	travel, draw, pen := job.Counts()
	down, up := job.DrawDistance()
	scale := job.Limits.StepsPerMM.X
	dur := time.Duration(job.Duration() * float64(time.Second)).Round(time.Second)

	fmt.Fprintf(w, "steps:    %d (%d draw, %d travel, %d pen)\n", len(job.Steps), draw, travel, pen)
	fmt.Fprintf(w, "pen down: %.1f mm\n", down/scale)
	fmt.Fprintf(w, "pen up:   %.1f mm\n", up/scale)
	fmt.Fprintf(w, "motion:   %s\n", dur)
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().String("gcode", "", "Write the planned job as G-code to this file (- for stdout)")
}
