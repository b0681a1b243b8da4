// Command fraudctl serves and queries the fraud decision engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/model"
	"fraud-gate/pkg/transaction"

	// Artifact kinds available to --model.
	_ "fraud-gate/pkg/model/ensemble"
	_ "fraud-gate/pkg/model/linear"
)

// Exit codes. A missing decision never exits 0.
const (
	exitOK          = 0
	exitError       = 1
	exitInvalid     = 2
	exitUnavailable = 3
	exitInference   = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case transaction.IsContractViolation(err):
		return exitInvalid
	case model.IsUnavailable(err):
		return exitUnavailable
	case errors.Is(err, engine.ErrInferenceFailed):
		return exitInference
	default:
		return exitError
	}
}
