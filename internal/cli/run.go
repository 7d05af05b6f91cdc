package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rotationdash/internal/operations"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [sequence]",
		Short: "Run a stage sequence (default: full)",
		Long: `Run the stages of a named sequence in catalog order, stopping at the first
failure of a stage that is not allowed to fail. Use "rotationctl stages" to
list the configured sequences.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			name := operations.SequenceFull
			if len(args) == 1 {
				name = args[0]
			}

			run, err := s.core.Pipeline.RunSequence(commandContext(cmd), name)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, res := range run.Results {
				printResult(w, res)
			}
			ok, summary := run.Summary()
			fmt.Fprintf(w, "%s %s in %s (run %s)\n", tag(ok), summary, run.Duration().Round(time.Millisecond), run.ID)
			if !ok {
				return ErrFailed
			}
			return nil
		},
	}
}

func newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <index>",
		Short: "Run one catalog stage by its 1-based position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid stage index %q: must be an integer", args[0])
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			res, err := s.core.Pipeline.RunStage(commandContext(cmd), position)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			if !res.Succeeded {
				return ErrFailed
			}
			return nil
		},
	}
}

func tag(ok bool) string {
	if ok {
		return "[OK]"
	}
	return "[FAIL]"
}

// printResult writes one line per stage. Allowed failures are marked so the
// reader knows the pipeline carried on with existing data.
func printResult(w io.Writer, res operations.StageResult) {
	line := fmt.Sprintf("%-6s %-20s %10s  %s", tag(res.Succeeded), res.StageName,
		res.Duration.Round(time.Millisecond), res.Message)
	if !res.Succeeded {
		line += fmt.Sprintf(" [%s]", res.Kind)
		if res.AllowFail {
			line += " (allowed, continuing)"
		}
	}
	fmt.Fprintln(w, line)
}
