package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/logpress/internal/logmaker"
	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	_ = logger.Sync()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		out      string
		seed     uint64
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "logmaker <entries>",
		Short: "Generate a synthetic line-delimited JSON log",
		Long: `Generate a synthetic line-delimited JSON log of animal containers.

Each entry carries container, timestamp, msg, level, happiness and id.
Levels are skewed so that FATAL and ERROR entries stay rare.

Example:
  logmaker 1000000 --out example.json --seed 42`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return errors.Newf(errors.ErrorTypeValidation, "entries must be a non-negative integer, got %q", args[0])
			}

			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console"}); err != nil {
				return err
			}
			log := logger.Get().With(zap.String("component", "logmaker"), zap.String("output", out))

			opts := []logmaker.Option{}
			if cmd.Flags().Changed("seed") {
				opts = append(opts, logmaker.WithSeed(seed))
			}

			start := time.Now()
			if err := logmaker.NewGenerator(opts...).WriteFile(cmd.Context(), out, n, log); err != nil {
				return err
			}
			log.Info("log created", zap.Int("entries", n), zap.Duration("duration", time.Since(start)))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", logmaker.DefaultOutput, "Output file")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible output")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
