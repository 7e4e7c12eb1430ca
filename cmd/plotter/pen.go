package main

import (
	"github.com/spf13/cobra"

	"github.com/mastercactapus/plotter/machine"
)

var penCmd = &cobra.Command{
	Use:       "pen up|down",
	Short:     "Raise or lower the pen",
	ValidArgs: []string{"up", "down"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), cfg, log, nil, func(sess *machine.Session) error {
			if args[0] == "up" {
				return sess.PenUp(cmd.Context())
			}
			return sess.PenDown(cmd.Context())
		})
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Raise the pen and return the carriage to where the motors were enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), cfg, log, nil, func(sess *machine.Session) error {
			return sess.Home(cmd.Context())
		})
	},
}

func init() {
	rootCmd.AddCommand(penCmd, homeCmd)
}
