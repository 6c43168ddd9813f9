package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// TextWriter prints one human-readable line per host and a summary footer
type TextWriter struct {
	file      *os.File
	writer    *bufio.Writer
	startTime time.Time
	count     int
}

// NewTextWriter creates a text writer to the specified file
// Use "-" for stdout
func NewTextWriter(filename string, startTime time.Time) (*TextWriter, error) {
	file, err := openOutput(filename)
	if err != nil {
		return nil, err
	}

	return &TextWriter{
		file:      file,
		writer:    bufio.NewWriter(file),
		startTime: startTime,
	}, nil
}

// NewTextWriterFromWriter creates a text writer from an existing io.Writer
func NewTextWriterFromWriter(w io.Writer, startTime time.Time) *TextWriter {
	return &TextWriter{
		writer:    bufio.NewWriter(w),
		startTime: startTime,
	}
}

// Write prints a result as "<ip> [(hostname)] rtt <d> open: ...; closed: ..."
func (w *TextWriter) Write(result *scanner.HostResult) error {
	line := result.Addr.String()
	if result.Hostname != "" {
		line += " (" + result.Hostname + ")"
	}
	line += fmt.Sprintf(" rtt %s %s\n", result.RTT.Round(time.Microsecond), result.String())

	if _, err := w.writer.WriteString(line); err != nil {
		return err
	}
	w.count++
	return nil
}

// Close writes the footer, flushes and closes the file
func (w *TextWriter) Close() error {
	footer := fmt.Sprintf("\n%d host(s) up, scanned in %s\n", w.count, time.Since(w.startTime).Round(time.Millisecond))
	if _, err := w.writer.WriteString(footer); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}

	// Don't close stdout
	if w.file != nil && w.file != os.Stdout {
		return w.file.Close()
	}
	return nil
}

// Count returns the number of results written
func (w *TextWriter) Count() int {
	return w.count
}
