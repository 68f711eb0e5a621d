//go:build windows

package main

import "os"

// terminationSignals stop serve and chat gracefully; Windows only delivers Ctrl+C.
var terminationSignals = []os.Signal{os.Interrupt}
