package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"rotationdash/internal/app"
	"rotationdash/internal/config"
	"rotationdash/internal/infrastructure"
	"rotationdash/internal/operations"
)

// Test hooks. Nil selects the production collaborators.
var (
	stageRunner operations.StageRunner
	httpClient  *http.Client
)

// session is the domain core built for one command invocation
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	core   *app.Core
	stop   func() bool
}

// openSession loads configuration from the persistent flags and builds the
// core. Cancelling the command context aborts any run it starts.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level, _ := cmd.Flags().GetString("log-level")
	logger := infrastructure.NewLogger(cmd.ErrOrStderr(), level)

	if err := app.ResolveRoot(cfg, logger); err != nil {
		return nil, err
	}

	core, err := app.BuildCore(cfg, app.CoreOptions{
		Logger:     logger,
		Runner:     stageRunner,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		core:   core,
		stop:   context.AfterFunc(commandContext(cmd), core.Pipeline.Close),
	}, nil
}

func (s *session) close() {
	s.stop()
	s.core.Pipeline.Close()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFrom(path)
	}
	if err != nil {
		return nil, err
	}

	if root, _ := cmd.Flags().GetString("project-root"); root != "" {
		cfg.Project.Root = root
	}
	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		cfg.Source.Mode = config.SourceRemote
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
