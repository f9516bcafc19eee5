// Command reelcat is the entrypoint for the reelcat movie concatenator.
// It layers flags, environment and config file into one Config, validates
// it, and either runs the system check (--check) or joins the inputs into a
// single output movie.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/backmassage/reelcat/internal/check"
	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/display"
	"github.com/backmassage/reelcat/internal/libav"
	"github.com/backmassage/reelcat/internal/logging"
	"github.com/backmassage/reelcat/internal/pipeline"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// exitError carries a process exit code out of RunE.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	var ee exitError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ee):
		return ee.code
	default:
		// Flag parse and config errors happen before a logger exists.
		fmt.Fprintf(os.Stderr, "reelcat: %v\n", err)
		return exitFailure
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "reelcat [flags] <input>... -o <output>",
		Short: "Join movies into one output with continuous timestamps",
		Long: "reelcat decodes every input in order, converts it to one target format and\n" +
			"re-encodes the result into a single file. Directories are expanded to their\n" +
			"media files in sorted order.",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(cmd.Flags(), &cfg, args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), &cfg)
		},
	}
	config.BindFlags(cmd.Flags(), &cfg)
	return cmd
}

// run executes a validated configuration. Failures are logged here and
// reported to execute as an exitError.
func run(ctx context.Context, cfg *config.Config) error {
	log, err := logging.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	display.PrintBanner(os.Stdout, config.Version)

	// 1. System check only.
	if cfg.CheckOnly {
		if !check.RunCheck(cfg, log, libav.HasEncoder) {
			return exitError{exitFailure}
		}
		return nil
	}

	// 2. Fail fast when ffprobe or an encoder is missing.
	if !cfg.DryRun {
		if err := check.CheckDeps(cfg, libav.HasEncoder); err != nil {
			log.Error("%v", err)
			return exitError{exitFailure}
		}
	}
	if cfg.DryRun {
		log.Warn("DRY RUN")
	}

	// 3. Probe, plan and concatenate.
	backend := libav.New(libav.Options{DecoderThreads: cfg.DecoderThreads, Verbose: cfg.Verbose})
	stats, err := pipeline.Run(ctx, cfg, log, pipeline.Deps{Backend: backend})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, concat.ErrAborted) {
		log.Warn("Interrupted after %d/%d sources; no output written", stats.Completed, stats.Total)
		return exitError{exitInterrupted}
	}
	log.Error("%v", err)
	return exitError{exitFailure}
}
