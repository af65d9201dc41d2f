package config

import (
	"io"
	"os"
)

// TerminalIO carries the streams a run reads and writes, so tests can swap in
// buffers. Results go to Stdout, everything else to Stderr.
type TerminalIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

var DefaultTermIO = TerminalIO{
	Stdin:  os.Stdin,
	Stdout: os.Stdout,
	Stderr: os.Stderr,
}
