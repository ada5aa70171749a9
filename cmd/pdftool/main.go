// Command pdftool performs page operations on PDF documents.
//
// On success it prints the output path to stdout without a trailing newline
// and exits 0. On failure it prints one KIND::message line to stderr and
// exits with the code of the failure kind.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/gcp"
	"github.com/Lllllllleong/pdftoolkit/internal/models"
	"github.com/Lllllllleong/pdftoolkit/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger, closeLog, err := newLogger()
	if err != nil {
		err = failure.Wrap(failure.IO, err, "Failed to open log file")
		fmt.Fprintln(stderr, failure.Line(err))
		return failure.ExitCode(err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	var operator *services.Operator
	defer func() {
		if operator != nil {
			operator.Close()
		}
	}()

	ran := false
	process := func(ctx context.Context, req *models.OperationRequest) (*models.OperationResult, error) {
		ran = true
		cfg, err := services.LoadOperatorConfig(models.AccessCLI)
		if err != nil {
			return nil, failure.Wrap(failure.InvalidArgument, err, "Invalid configuration")
		}
		operator, err = services.NewOperator(ctx, *cfg, logger)
		if err != nil {
			return nil, failure.Wrap(failure.Unexpected, err, "Failed to initialize")
		}
		return operator.Process(ctx, req)
	}

	cmd := newRootCommand(stdout, process)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err = cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if _, ok := failure.As(err); !ok && !ran {
		err = failure.Wrap(failure.InvalidArgument, err, "Invalid arguments")
	}
	logger.Error("pdftool failed.", "error", err)
	fmt.Fprintln(stderr, failure.Line(err))
	return failure.ExitCode(err)
}

// newLogger returns a JSON logger writing to PDFTOOL_LOG_FILE, or discarding
// everything when it is unset so that stderr only carries the error line.
func newLogger() (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: parseLevel(gcp.GetEnv("PDFTOOL_LOG_LEVEL", "info"))}
	path := gcp.GetEnv("PDFTOOL_LOG_FILE", "")
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, opts)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
