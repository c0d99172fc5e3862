// Package logger provides the process-wide logger for gridnet. It fans
// each line out to any number of writers so the interactive TUI can
// capture logs in a ring buffer while headless runs write to stdout.
// Init must be called before the other functions; until then everything
// falls through to the standard log package.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger fans log lines out to multiple writers.
type Logger struct {
	mu      sync.Mutex
	outputs []io.Writer
}

var (
	globalLogger *Logger
	once         sync.Once
	globalBuffer *LogBuffer
	bufferOnce   sync.Once
)

// GlobalLogBuffer returns the shared ring buffer the TUI reads from.
func GlobalLogBuffer() *LogBuffer {
	bufferOnce.Do(func() {
		globalBuffer = NewLogBuffer(1000)
	})
	return globalBuffer
}

// Init initializes the global logger.
func Init(writeToStdout bool) {
	once.Do(func() {
		outputs := []io.Writer{}
		if writeToStdout {
			outputs = append(outputs, os.Stdout)
		}
		globalLogger = &Logger{outputs: outputs}
	})
}

// AddOutput adds a writer, e.g. the TUI's buffer writer.
func AddOutput(w io.Writer) error {
	if globalLogger == nil {
		return errors.New("logger not initialized: call logger.Init() first")
	}
	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()
	globalLogger.outputs = append(globalLogger.outputs, w)
	return nil
}

// Printf logs a formatted line. Vehicle-scoped callers prefix the line
// with "[vehicleName] " so the buffer writer can tag it.
func Printf(format string, v ...interface{}) {
	if globalLogger == nil {
		log.Printf(format, v...)
		return
	}

	globalLogger.mu.Lock()
	defer globalLogger.mu.Unlock()

	msg := strings.TrimSuffix(fmt.Sprintf(format, v...), "\n") + "\n"
	for _, output := range globalLogger.outputs {
		output.Write([]byte(msg))
	}
}

// Infof logs an info-level formatted line.
func Infof(format string, v ...interface{}) {
	Printf("[INFO] "+format, v...)
}

// Info logs an info-level line.
func Info(v ...interface{}) {
	Printf("[INFO] %s", fmt.Sprint(v...))
}

// Errorf logs an error-level formatted line.
func Errorf(format string, v ...interface{}) {
	Printf("[ERROR] "+format, v...)
}
