package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"rotationdash/internal/validation"
)

func newStagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "List catalog stages and sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			stages := s.core.Pipeline.Stages()
			sequences := s.core.Pipeline.Sequences()

			w := cmd.OutOrStdout()
			if check, _ := cmd.Flags().GetBool("check"); check {
				return printChecks(w, validation.NewStageValidator(s.logger).Check(stages))
			}
			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				data, _ := json.MarshalIndent(map[string]interface{}{
					"stages":    stages,
					"sequences": sequences,
				}, "", "  ")
				fmt.Fprintln(w, string(data))
				return nil
			}

			fmt.Fprintf(w, "%-4s %-20s %-8s %-10s %s\n", "POS", "STAGE", "TIMEOUT", "ALLOWFAIL", "EXECUTABLE")
			fmt.Fprintf(w, "%-4s %-20s %-8s %-10s %s\n",
				strings.Repeat("-", 4),
				strings.Repeat("-", 20),
				strings.Repeat("-", 8),
				strings.Repeat("-", 10),
				strings.Repeat("-", 10))
			for i, st := range stages {
				fmt.Fprintf(w, "%-4d %-20s %-8s %-10t %s\n",
					i+1, st.Name, st.Timeout(), st.AllowFail, st.ExecutablePath)
			}

			fmt.Fprintln(w)
			for _, seq := range sequences {
				fmt.Fprintf(w, "%-10s %s\n", seq.Name, strings.Join(seq.Stages, " -> "))
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", "Output format: table or json")
	cmd.Flags().Bool("check", false, "Verify every stage script and working directory exists")
	return cmd
}

func printChecks(w io.Writer, checks []validation.StageCheck) error {
	failed := 0
	for _, c := range checks {
		fmt.Fprintf(w, "%-6s %d %s\n", tag(c.OK), c.Position, c.Name)
		for _, p := range c.Problems {
			fmt.Fprintf(w, "         %s\n", p)
		}
		if !c.OK {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(w, "%d of %d stage(s) cannot be launched\n", failed, len(checks))
		return ErrFailed
	}
	return nil
}
