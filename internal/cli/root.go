package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var version = "dev"

// ErrFailed is returned when a command ran to completion but reported a
// failure. Its [FAIL] lines are already printed.
var ErrFailed = errors.New("failed")

func SetVersion(v string) {
	version = v
}

// NewRootCmd builds the rotationctl command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rotationctl",
		Short: "rotationctl drives the industry-rotation data pipeline",
		Long: `rotationctl runs the industry-rotation refresh pipeline in-process and
reports on the artifacts it produces.

Configuration is read the same way as rotationd: defaults, then the YAML
file (--config, ROTATION_CONFIG_FILE or ./config.yaml), then ROTATION_*
environment variables. Logs go to stderr; results go to stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to the YAML config file")
	root.PersistentFlags().String("project-root", "", "Project root (overrides config and discovery)")
	root.PersistentFlags().Bool("remote", false, "Read artifacts from the remote base URL")
	root.PersistentFlags().String("log-level", "warn", "Log level for stderr output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newStageCmd())
	root.AddCommand(newStagesCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newMarkersCmd())
	return root
}

// Execute runs the command tree with ctx
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
