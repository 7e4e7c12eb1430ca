package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mastercactapus/plotter/machine"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show firmware, motor, pen and position status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), cfg, log, nil, func(sess *machine.Session) error {
			info, err := sess.Identify(cmd.Context())
			if err != nil {
				return err
			}
			pen := "down"
			if info.PenUp {
				pen = "up"
			}
			steps := cfg.Limits().StepsPerMM
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "firmware: %s\n", info.Version)
			fmt.Fprintf(w, "motors:   %+v\n", info.Motors)
			fmt.Fprintf(w, "pen:      %s\n", pen)
			fmt.Fprintf(w, "position: %.2f, %.2f mm (%d, %d steps)\n",
				float64(info.Position.X)/steps.X, float64(info.Position.Y)/steps.Y,
				info.Position.X, info.Position.Y)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
