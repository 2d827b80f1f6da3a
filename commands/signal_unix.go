//go:build linux || darwin

package commands

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// signalContext is canceled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, unix.SIGTERM)
}
