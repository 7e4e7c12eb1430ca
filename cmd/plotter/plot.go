package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mastercactapus/plotter/fault"
	"github.com/mastercactapus/plotter/machine"
	"github.com/mastercactapus/plotter/metrics"
	"github.com/mastercactapus/plotter/motion"
)

var plotCmd = &cobra.Command{
	Use:   "plot FILE",
	Short: "Plot a drawing",
	Long: `Plot an SVG or G-code drawing.

While plotting, type "p" and enter to pause, "r" to resume or "a" to abort.
Interrupting the process aborts the job and raises the pen. A stopped job
can be continued with --from; the plotter homes before resuming.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup(cmd)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetInt("from")
		if addr, _ := cmd.Flags().GetString("status"); cmd.Flags().Changed("status") {
			cfg.StatusAddr = addr
		}

		job, err := loadJob(args[0], cfg, log)
		if err != nil {
			return err
		}
		log.Info("planned", "steps", len(job.Steps), "motion", time.Duration(job.Duration()*float64(time.Second)).Round(time.Second))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)

		return withSession(ctx, cfg, log, m, func(sess *machine.Session) error {
			var srv *statusServer
			if cfg.StatusAddr != "" {
				srv = newStatusServer(sess, reg, log.With("component", "status"))
				go srv.listen(ctx, cfg.StatusAddr)
			}
			go watch(ctx, sess, srv, log)
			if term.IsTerminal(int(os.Stdin.Fd())) {
				go controls(os.Stdin, sess, log)
			}

			return plot(ctx, sess, job, from, log)
		})
	},
}

// plot runs job from step from. A resumed job homes first since a new
// session does not know where the pen is.
func plot(ctx context.Context, sess *machine.Session, job motion.Job, from int, log *slog.Logger) error {
	if from > 0 {
		log.Info("homing before resume", "from", from)
		if err := sess.Home(ctx); err != nil {
			log.Error("home", "kind", fault.KindOf(err), "err", err)
			return err
		}
	}

	err := sess.Run(ctx, job, machine.RunOptions{From: from})
	st := sess.Status()
	switch {
	case err == nil:
		log.Info("done", "steps", st.Total)
		return nil
	case errors.Is(err, machine.ErrAborted):
		log.Warn("aborted", "resume_from", st.Next)
		raise(sess, log)
	default:
		log.Error("job stopped", "kind", fault.KindOf(err), "resume_from", st.Next, "err", err)
	}
	return err
}

// raise lifts the pen after an abort so it does not bleed into the paper.
func raise(sess *machine.Session, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.PenUp(ctx); err != nil {
		log.Error("raise pen", "err", err)
	}
}

// watch logs outcome changes and feeds the status server.
func watch(ctx context.Context, sess *machine.Session, srv *statusServer, log *slog.Logger) {
	var last machine.Outcome
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-sess.Changes():
			if st.Outcome != last {
				log.Info("job "+st.Outcome.String(), "done", st.Done, "total", st.Total)
				last = st.Outcome
			}
			if srv != nil {
				srv.publish(st)
			}
		}
	}
}

// controls reads pause, resume and abort commands, one per line.
func controls(r io.Reader, sess *machine.Session, log *slog.Logger) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		switch strings.ToLower(strings.TrimSpace(s.Text())) {
		case "p", "pause":
			sess.Pause()
		case "r", "resume":
			sess.Resume()
		case "a", "abort":
			if err := sess.Abort(); err != nil {
				log.Error("abort", "err", err)
			}
		case "":
		default:
			log.Warn("unknown control; use p, r or a", "input", s.Text())
		}
	}
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotCmd.Flags().Int("from", 0, "Resume a stopped job at this step")
	plotCmd.Flags().String("status", "", "Serve read-only status over HTTP on this address")
}
