package logging

import (
	"fmt"
	"os"
)

// EarlyLog covers the window before zap exists: config parse failures
// and logger construction failures. Plain stderr lines, no levels
// beyond what those two cases need.
type EarlyLog struct{}

func NewEarlyLog() *EarlyLog {
	return &EarlyLog{}
}

func (l *EarlyLog) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ERROR: "+msg+"\n", args...)
}

func (l *EarlyLog) Fatal(msg string, args ...interface{}) {
	l.Error(msg, args...)
	os.Exit(1)
}
