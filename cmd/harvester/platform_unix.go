//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// enableANSI does nothing here: every Unix terminal we target renders
// escape sequences as-is.
func enableANSI() {}

// registerSignals wires graceful shutdown to SIGINT and SIGTERM.
func registerSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
}
