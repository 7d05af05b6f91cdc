package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"rotationdash/internal/signals"
)

func newMarkersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers <symbol>",
		Short: "Align a symbol's trade signals with its price series",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			set, err := s.core.Dashboard.Markers(commandContext(cmd), args[0])
			if err != nil {
				return err
			}

			if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
				if err := writeWorkbook(path, set.Markers); err != nil {
					return err
				}
				s.logger.Info("markers exported",
					slog.String("path", path),
					slog.Int("count", len(set.Markers)))
			}

			w := cmd.OutOrStdout()
			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				data, _ := json.MarshalIndent(set, "", "  ")
				fmt.Fprintln(w, string(data))
				return nil
			}

			for _, m := range set.Markers {
				exact := "exact"
				if !m.ExactMatch {
					exact = "next"
				}
				fmt.Fprintf(w, "%-6s %s %-4s %s %12.4f %s\n", tag(true),
					m.Signal.Date.Format(signals.DateLayout), m.Signal.Action,
					m.DateUsed.Format(signals.DateLayout), m.PriceUsed, exact)
			}
			fmt.Fprintf(w, "%s: %d signal(s), %d placed, %d without a price\n",
				set.Symbol, set.Signals, len(set.Markers), set.Unresolved)
			return nil
		},
	}
	cmd.Flags().String("format", "table", "Output format: table or json")
	cmd.Flags().String("xlsx", "", "Also write the markers to this .xlsx file")
	return cmd
}

func writeWorkbook(path string, markers []signals.AlignedMarker) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return signals.ExportMarkers(f, markers)
}
