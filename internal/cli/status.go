package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rotationdash/internal/artifacts"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show artifact freshness",
		Long: `Show every expected pipeline output with its age. Missing and stale
artifacts are reported as [FAIL]; with --strict they also make the command
exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			statuses := s.core.Dashboard.Artifacts(commandContext(cmd))

			w := cmd.OutOrStdout()
			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				data, _ := json.MarshalIndent(statuses, "", "  ")
				fmt.Fprintln(w, string(data))
				return nil
			}

			var stale, missing int
			for _, st := range statuses {
				ok := st.Exists && !st.Stale()
				switch {
				case !st.Exists:
					missing++
				case st.Stale():
					stale++
				}
				age := "-"
				if st.Exists {
					age = fmt.Sprintf("%dd", st.AgeDays)
				}
				fmt.Fprintf(w, "%-6s %-20s %-8s %5s  %s\n", tag(ok), st.Key, st.Freshness, age, st.Path)
			}
			fmt.Fprintf(w, "%d artifact(s): %d stale, %d missing\n", len(statuses), stale, missing)
			if stale > 0 {
				fmt.Fprintln(w, artifacts.StaleHint)
			}

			if strict, _ := cmd.Flags().GetBool("strict"); strict && stale+missing > 0 {
				return ErrFailed
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", "Output format: table or json")
	cmd.Flags().Bool("strict", false, "Exit non-zero when any artifact is stale or missing")
	return cmd
}
