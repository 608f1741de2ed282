// Package cli wires configuration, adapters and stages behind the
// shortsfactory command.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ai-shorts-factory/internal/config"
	"ai-shorts-factory/internal/logging"
)

// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	closers []func() error
}

func (a *app) onClose(fn func() error) { a.closers = append(a.closers, fn) }

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Debug("close", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRoot()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "shortsfactory",
		Short:         "Generate and publish vertical short videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().String("config", "config.yaml", "YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		scriptCmd(a),
		voiceCmd(a),
		speakersCmd(a),
		imagesCmd(a),
		mediaCmd(a),
		composeCmd(a),
		publishCmd(a),
		runCmd(a),
		topicCmd(a),
		authCmd(a),
		scheduleCmd(a),
		enqueueCmd(a),
		workerCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}
