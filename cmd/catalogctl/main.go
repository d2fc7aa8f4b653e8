package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/open-sspm/catalogctl/internal/catalog"
	"github.com/open-sspm/catalogctl/internal/logging"
)

const (
	exitCodeFailure   = 1
	exitCodeConfig    = 2
	exitCodeHTTP      = 3
	exitCodeTransport = 4
	exitCodeDecode    = 5
	exitCodeCanceled  = 130
)

func main() {
	code := runMain(Execute, os.Stderr)
	if code != 0 {
		os.Exit(code)
	}
}

func runMain(execute func() error, stderr io.Writer) int {
	if err := execute(); err != nil {
		return exitCodeForError(err, stderr)
	}
	return 0
}

func exitCodeForError(err error, stderr io.Writer) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.silent {
			emitCommandError(resolveErrorForExitError(ee, err), "command failed", ee.code, stderr)
		}
		return ee.code
	}

	if errors.Is(err, context.Canceled) {
		emitCommandError(err, "command canceled", exitCodeCanceled, stderr)
		return exitCodeCanceled
	}

	code := exitCodeForCatalogError(err)
	emitCommandError(err, "command failed", code, stderr)
	return code
}

func exitCodeForCatalogError(err error) int {
	var (
		cfgErr       *catalog.ConfigError
		httpErr      *catalog.HTTPError
		transportErr *catalog.TransportError
		decodeErr    *catalog.DecodeError
	)
	switch {
	case errors.As(err, &cfgErr):
		return exitCodeConfig
	case errors.As(err, &httpErr):
		return exitCodeHTTP
	case errors.As(err, &transportErr):
		return exitCodeTransport
	case errors.As(err, &decodeErr):
		return exitCodeDecode
	default:
		return exitCodeFailure
	}
}

func emitCommandError(err error, message string, exitCode int, stderr io.Writer) {
	ctx := currentCommandExecutionContext()
	if !ctx.UsesStructuredLog {
		if exitCode == exitCodeCanceled {
			fmt.Fprintln(stderr, "canceled")
			return
		}
		fmt.Fprintln(stderr, err)
		return
	}

	logger := loggerForFatalPath(ctx, stderr)
	attrs := []any{"exit_code", exitCode, "error", err}
	var httpErr *catalog.HTTPError
	if errors.As(err, &httpErr) {
		attrs = append(attrs, "status_code", httpErr.StatusCode)
	}
	logger.Error(message, attrs...)
}

func loggerForFatalPath(ctx commandExecutionContext, stderr io.Writer) *slog.Logger {
	cfg, err := logging.LoadConfigFromEnv()
	if err != nil {
		cfg = logging.DefaultConfig()
	}
	return logging.NewLogger(cfg, stderr, ctx.CommandPath)
}

func resolveErrorForExitError(ee *exitError, fallback error) error {
	if ee != nil && ee.err != nil {
		return ee.err
	}
	return fallback
}
