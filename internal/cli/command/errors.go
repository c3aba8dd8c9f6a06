package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/cli/output"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/core/domain"
	"github.com/NASA-AMMOS/aerie-cli-sub000/internal/telemetry/logger"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// Report prints err for the operator on w and records the full chain in
// the debug log, along with the stack Report was called from. It never
// prints a stack on w.
func Report(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		logger.Debug("interrupted", "error", err)
		fmt.Fprintln(w, "interrupted")
		return ExitInterrupted
	}

	if errors.Is(err, domain.ErrNoActiveSession) {
		cause, _ := domain.NoSessionCauseOf(err)
		logger.Info("no active session", "cause", string(cause), "error", err)
		output.Warnf(w, "No active session. Run \"aerie-cli activate\" to start one.")
		return ExitError
	}

	kind := domain.Kind(err)
	logger.Debug("command failed",
		"kind", kind,
		"error", err.Error(),
		"chain", errorChain(err),
		"report_stack", string(debug.Stack()),
	)
	output.Errorf(w, "error (%s): %s", kind, err)
	return ExitError
}

// errorChain flattens the wrapped errors of err, depth first.
func errorChain(err error) []string {
	var chain []string
	var walk func(error, int)
	walk = func(e error, depth int) {
		if e == nil {
			return
		}
		chain = append(chain, strings.Repeat("  ", depth)+fmt.Sprintf("%T: %v", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner, depth+1)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap(), depth+1)
		}
	}
	walk(err, 0)
	return chain
}
