package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sketchcad/internal/session"
	"github.com/conneroisu/sketchcad/internal/solver"
)

var solveWrite bool

var solveCmd = &cobra.Command{
	Use:     "solve <sketch.yaml>",
	Aliases: []string{"s"},
	Short:   "Solve a sketch and report constraint diagnostics",
	Long: `Solve loads a sketch document, re-evaluates formula-driven dimensions,
runs the constraint solver, and prints per-component diagnostics:
status, remaining degrees of freedom, and any conflicting or redundant
constraints. With --write the solved geometry is written back.`,
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
		res, err := sess.Solve(ctx)
		if err != nil {
			return fmt.Errorf("solving: %w", err)
		}

		printResult(cmd, res)

		if solveWrite {
			if err := sess.Save(args[0]); err != nil {
				return fmt.Errorf("writing solved sketch: %w", err)
			}
			cmd.Printf("Wrote solved geometry to %s\n", args[0])
		}
		return nil
	},
}

func printResult(cmd *cobra.Command, res *solver.Result) {
	cmd.Printf("Status: %s\n", res.Status)
	cmd.Printf("Degrees of freedom: %d\n", res.TotalDOF())
	for i, comp := range res.Components {
		cmd.Printf("Component %d: %s, %d entities, %d constraints, dof %d, rank %d, %d iterations\n",
			i+1, comp.Status, len(comp.Entities), len(comp.Constraints),
			comp.DOF, comp.Rank, comp.Iterations)
		if len(comp.Conflicts) > 0 {
			cmd.Printf("  conflicting constraints: %v\n", comp.Conflicts)
		}
		if len(comp.Redundant) > 0 {
			cmd.Printf("  redundant constraints: %v\n", comp.Redundant)
		}
	}
}

func init() {
	solveCmd.Flags().BoolVarP(&solveWrite, "write", "w", false, "write solved geometry back to the document")
	rootCmd.AddCommand(solveCmd)
}
