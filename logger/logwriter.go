package logger

import (
	"bytes"
	"io"
	"regexp"
	"strings"
	"sync"
)

// LogBufferWriter is an io.Writer that feeds a LogBuffer, extracting the
// vehicle name from lines of the form "[vehicle] message".
type LogBufferWriter struct {
	buffer *LogBuffer
	buf    bytes.Buffer
	mu     sync.Mutex
}

var vehicleTagRegex = regexp.MustCompile(`^\[([^\]]+)\]\s*(.*)$`)

// NewLogBufferWriter creates a writer feeding buffer.
func NewLogBufferWriter(buffer *LogBuffer) *LogBufferWriter {
	return &LogBufferWriter{buffer: buffer}
}

// Write implements io.Writer, buffering until complete lines arrive.
func (lw *LogBufferWriter) Write(p []byte) (n int, err error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buf.Write(p)
	for {
		line, err := lw.buf.ReadString('\n')
		if err == io.EOF {
			// Partial line stays buffered for the next Write.
			lw.buf.WriteString(line)
			break
		}
		if err != nil {
			return len(p), err
		}

		line = strings.TrimSuffix(line, "\n")
		if len(line) == 0 {
			continue
		}

		vehicle := "system"
		message := line
		if matches := vehicleTagRegex.FindStringSubmatch(line); len(matches) == 3 {
			vehicle = matches[1]
			message = matches[2]
		}
		lw.buffer.Add(vehicle, message)
	}

	return len(p), nil
}
