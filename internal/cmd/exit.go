package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/notifyd/notifyd/internal/health"
	"github.com/notifyd/notifyd/internal/observability"
)

// ExitError carries a semantic exit code out of a command. Commands return it
// from RunE so their deferred cleanup runs; Exit turns it into the process
// exit status.
type ExitError struct {
	Code    foundry.ExitCode
	Message string
	Err     error
	// Unhealthy names the dependencies behind a health failure.
	Unhealthy []string
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if len(e.Unhealthy) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Unhealthy, ", "))
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// unhealthyExit reports a degraded readiness report as an external service
// failure.
func unhealthyExit(report health.Readiness) *ExitError {
	var names []string
	for name, record := range report.Dependencies {
		if !record.Healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return &ExitError{
		Code:      foundry.ExitExternalServiceUnavailable,
		Message:   "One or more dependencies are unhealthy",
		Unhealthy: names,
	}
}

// Exit terminates the process for an error returned by Execute. ExitError
// keeps its code; anything else exits with ExitFailure.
func Exit(err error) {
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		msg := exitErr.Message
		var extra []zap.Field
		if len(exitErr.Unhealthy) > 0 {
			extra = append(extra, zap.Strings("unhealthy_dependencies", exitErr.Unhealthy))
			if observability.CLILogger == nil {
				msg = fmt.Sprintf("%s: %s", msg, strings.Join(exitErr.Unhealthy, ", "))
			}
		}
		exitWith(observability.CLILogger, exitErr.Code, msg, exitErr.Err, extra...)
		return
	}
	ExitWithCodeStderr(foundry.ExitFailure, "Command execution failed", err)
}

// ExitWithCode logs the error with exit code metadata and exits. Only call it
// before a command has acquired anything that needs closing.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	exitWith(logger, exitCode, msg, err)
}

// ExitWithCodeStderr is ExitWithCode for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	exitWith(nil, exitCode, msg, err)
}

func exitWith(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error, extra ...zap.Field) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger != nil {
		fields := append(exitFields(info, err), extra...)
		logger.Error(msg, fields...)
	} else {
		writeExitReport(os.Stderr, info, msg, err)
	}
	os.Exit(info.Code)
}

// exitFields describes the exit code and, for an error envelope, its code,
// correlation ID and underlying cause.
func exitFields(info foundry.ExitCodeInfo, err error) []zap.Field {
	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if info.RetryHint != "" {
		fields = append(fields, zap.String("retry_hint", info.RetryHint))
	}

	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if cause := envelopeCause(envelope); cause != "" {
			fields = append(fields, zap.String("cause", cause))
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

func writeExitReport(w io.Writer, info foundry.ExitCodeInfo, msg string, err error) {
	switch e := err.(type) {
	case nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case *errors.ErrorEnvelope:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s (correlation: %s)\n", msg, e.Code, e.Message, e.CorrelationID)
		if cause := envelopeCause(e); cause != "" {
			fmt.Fprintf(w, "Underlying error: %s\n", cause)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}
	fmt.Fprintf(w, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
}

// envelopeCause returns the wrapped error text. WithOriginal stores it as a
// string.
func envelopeCause(envelope *errors.ErrorEnvelope) string {
	switch original := envelope.Original.(type) {
	case string:
		return original
	case error:
		return original.Error()
	default:
		return ""
	}
}
