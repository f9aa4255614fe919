package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/logger"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(viper.New())
	err := a.rootCmd().ExecuteContext(ctx)
	if cerr := a.close(context.Background()); cerr != nil {
		fmt.Fprintln(os.Stderr, "failed to flush traces:", cerr)
	}
	_ = logger.Sync()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for errors in how logpress was invoked and 1 otherwise
func exitCode(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeConfig,
		errors.ErrorTypeUnsupportedFormat, errors.ErrorTypeInvalidComparator:
		return 2
	default:
		return 1
	}
}
