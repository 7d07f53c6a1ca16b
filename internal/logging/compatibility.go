package logging

import (
	"log"
	"strings"
)

// stdWriter forwards standard library log output (third-party packages that
// call log.Printf) into the global logger at INFO level.
type stdWriter struct{}

func (stdWriter) Write(p []byte) (int, error) {
	Info("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// ReplaceStandardLogger replaces the standard log package output with our logging system
func ReplaceStandardLogger() {
	if globalLogger != nil {
		log.SetOutput(stdWriter{})
		log.SetFlags(0) // Remove flags since our logger handles them
	}
}
