package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sketchcad/internal/preview"
	"github.com/conneroisu/sketchcad/internal/session"
)

var serveCmd = &cobra.Command{
	Use:     "serve [sketch.yaml]",
	Aliases: []string{"preview"},
	Short:   "Serve a live preview of a sketch",
	Long: `Serve starts the preview server: GET /state returns a JSON snapshot
and /ws streams a frame after every change, accepting interactive drag
requests back.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var sess *session.Session
		if len(args) == 1 {
			sess, err = session.Open(args[0], cfg, log)
			if err != nil {
				return fmt.Errorf("opening sketch: %w", err)
			}
		} else {
			sess = session.New(cfg, log)
		}
		if _, err := sess.Solve(ctx); err != nil {
			return fmt.Errorf("initial solve: %w", err)
		}

		srv := preview.NewServer(sess, cfg, log)
		cmd.Printf("Preview at http://%s (ctrl-c to stop)\n", srv.Addr())
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "preview server port")
	serveCmd.Flags().String("host", "", "preview server host")
	viper.BindPFlag("preview.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("preview.host", serveCmd.Flags().Lookup("host"))
	rootCmd.AddCommand(serveCmd)
}
