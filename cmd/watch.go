package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sketchcad/internal/session"
	"github.com/conneroisu/sketchcad/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <sketch.yaml>",
	Aliases: []string{"w"},
	Short:   "Re-solve a sketch whenever its file changes",
	Long: `Watch observes a sketch document and re-solves on every change,
printing fresh diagnostics. Rapid editor write bursts are debounced
into a single solve.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		path := args[0]
		solveOnce := func() {
			sess, err := session.Open(path, cfg, log)
			if err != nil {
				cmd.PrintErrf("reload failed: %v\n", err)
				return
			}
			res, err := sess.Solve(ctx)
			if err != nil {
				cmd.PrintErrf("solve failed: %v\n", err)
				return
			}
			printResult(cmd, res)
		}
		solveOnce()

		w, err := watcher.New(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond, log)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Stop()

		w.AddFilter(watcher.SketchFilter)
		w.AddFilter(watcher.PathFilter(path))
		w.AddHandler(func(events []watcher.ChangeEvent) error {
			cmd.Printf("-- %s changed, re-solving\n", path)
			solveOnce()
			return nil
		})
		if err := w.AddPath(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		w.Start(ctx)

		cmd.Printf("Watching %s (ctrl-c to stop)\n", path)
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
