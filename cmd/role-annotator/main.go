package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/role-annotator/annotation/logging"
	"github.com/theimaginaryfoundation/role-annotator/annotation/provider"
)

var version = "dev"

// app carries the process dependencies so commands can run against an in-memory filesystem and
// a scripted completer in tests.
type app struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	newCompleter func(provider.Config) (provider.Completer, error)
}

func newApp() *app {
	return &app{
		fs:           afero.NewOsFs(),
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		getenv:       os.Getenv,
		newCompleter: provider.New,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "role-annotator",
		Short: "Label the social role of every dialogue utterance with a language model",
		Long: `role-annotator assigns one of Protagonist, Supporter, Neutral, Gatekeeper or
Attacker to each utterance of a dialogue dataset. Results are written after every
dialogue, so an interrupted run picks up where it stopped.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	addConfigFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(a), newStatusCmd(a), newSummarizeCmd(a))
	return root
}

// load resolves the configuration and the logger for a command.
func (a *app) load(cmd *cobra.Command) (Config, *logrus.Logger, error) {
	flags := cmd.Flags()
	envFile, err := flags.GetString("env-file")
	if err != nil {
		return Config{}, nil, err
	}
	if envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !(errors.Is(err, fs.ErrNotExist) && !flags.Changed("env-file")) {
			return Config{}, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := resolveConfig(a.fs, flags, a.getenv)
	if err != nil {
		return Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: a.stderr})
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, log, nil
}
