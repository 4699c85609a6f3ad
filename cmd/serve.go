package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/omnigrid/internal/config"
	"github.com/conneroisu/omnigrid/internal/logging"
	"github.com/conneroisu/omnigrid/internal/server"
	"github.com/conneroisu/omnigrid/internal/watcher"
)

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(viper.GetViper(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, args, logger)
	if err != nil {
		return err
	}

	if cfg.Watch {
		rw, err := startWatcher(ctx, cfg.Root, logger)
		if err != nil {
			logger.Warn(ctx, err, "file watching disabled", "root", cfg.Root)
		} else {
			defer rw.Stop()
		}
	}

	srv := server.New(cfg, server.WithLogger(logger.WithComponent("server")))
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// newLogger builds the process logger from the log flags.
func newLogger(v *viper.Viper, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(v.GetString(config.KeyLogLevel))
	if err != nil {
		return nil, err
	}
	format := v.GetString(config.KeyLogFormat)
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: out,
	}), nil
}

func startWatcher(ctx context.Context, root string, logger logging.Logger) (*watcher.RootWatcher, error) {
	rw, err := watcher.New(root, watcher.DefaultDebounce, logger)
	if err != nil {
		return nil, err
	}
	rw.AddFilter(watcher.NoHiddenFilter)
	rw.AddFilter(watcher.NoTempFilter)
	rw.AddHandler(rw.LogHandler(ctx))
	rw.Start(ctx)

	logger.Info(ctx, "watching root for changes", "root", root)

	return rw, nil
}
