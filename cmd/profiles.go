package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sketchcad/internal/session"
)

var profilesSolveFirst bool

var profilesCmd = &cobra.Command{
	Use:     "profiles <sketch.yaml>",
	Aliases: []string{"p"},
	Short:   "Extract closed regions from a sketch",
	Long: `Profiles extracts the closed regions bounded by non-construction
geometry: each profile is one outer loop plus any holes nested inside
it. By default the sketch is solved first so the regions reflect
constrained geometry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := session.Open(args[0], cfg, log)
		if err != nil {
			return fmt.Errorf("opening sketch: %w", err)
		}
		if profilesSolveFirst {
			if _, err := sess.Solve(ctx); err != nil {
				return fmt.Errorf("solving: %w", err)
			}
		}

		profiles := sess.Profiles()
		if len(profiles) == 0 {
			cmd.Println("No closed regions found")
			return nil
		}
		for i, p := range profiles {
			cmd.Printf("Profile %d: area %.6g, %d boundary entities, %d holes\n",
				i+1, p.Outer.Area, len(p.Outer.Entities), len(p.Holes))
			for j, h := range p.Holes {
				cmd.Printf("  hole %d: area %.6g\n", j+1, h.Area)
			}
		}
		return nil
	},
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesSolveFirst, "solve", true, "solve the sketch before extracting")
	rootCmd.AddCommand(profilesCmd)
}
