//go:build windows

package main

import (
	"os"
	"os/signal"
	"syscall"
	"unsafe"
)

const (
	// STD_OUTPUT_HANDLE is -11 as a DWORD.
	stdOutputHandle                 = ^uintptr(0) - 10 + 1
	enableVirtualTerminalProcessing = 0x0004
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procGetStdHandle   = kernel32.NewProc("GetStdHandle")
	procGetConsoleMode = kernel32.NewProc("GetConsoleMode")
	procSetConsoleMode = kernel32.NewProc("SetConsoleMode")
)

// enableANSI switches the console into virtual-terminal mode so the
// color codes in the banner and summary render on Windows 10 and later.
// Failures are ignored; worst case the output carries raw escapes.
func enableANSI() {
	handle, _, _ := procGetStdHandle.Call(stdOutputHandle)
	if handle == 0 {
		return
	}
	var mode uint32
	if r, _, _ := procGetConsoleMode.Call(handle, uintptr(unsafe.Pointer(&mode))); r == 0 {
		return
	}
	procSetConsoleMode.Call(handle, uintptr(mode|enableVirtualTerminalProcessing))
}

// registerSignals wires graceful shutdown to Ctrl+C. SIGTERM does not
// exist on Windows.
func registerSignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT)
}
