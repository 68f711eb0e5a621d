//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals stop serve and chat gracefully; service managers send SIGTERM.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
