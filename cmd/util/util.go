package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/vaultsync/pkg/errors"
)

// Exit codes returned by the vaultsync binary. Monitoring that runs the
// binary on a schedule is expected to treat ExitAlreadyRunning as benign.
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitAlreadyRunning = 2
)

// Mocked out for unit testing.
var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	if msg, ok := errors.GetFriendlyMessage(err); ok {
		fmt.Fprintln(stderr, msg)
	} else {
		log.Error(err)
	}
	exit(ExitFailure)
}

// HandlePanic catches panics and logs them before exiting. It must be
// deferred.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Unexpected panic: %v", r)
		exit(ExitFailure)
	}
}

// Exit terminates the process with the given code.
func Exit(code int) {
	exit(code)
}
