package common

import (
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[udstrace] ", log.LstdFlags|log.Lmicroseconds)
)

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// SetOutput redirects the package logger, used by the daemon to attach the
// rotating log file.
func SetOutput(w interface{ Write(p []byte) (int, error) }) {
	logger.SetOutput(w)
}
