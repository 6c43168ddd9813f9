package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// Record is the serialized form of one host result
type Record struct {
	IP          string   `json:"ip"`
	Hostname    string   `json:"hostname,omitzero"`
	RTTMs       float64  `json:"rtt_ms"`
	OpenPorts   []uint16 `json:"open_ports"`
	ClosedPorts []uint16 `json:"closed_ports"`
	Summary     string   `json:"summary"`
}

// NewRecord converts a host result for serialization
func NewRecord(h *scanner.HostResult) Record {
	open, closed := h.Status.Open, h.Status.Closed
	if open == nil {
		open = []uint16{}
	}
	if closed == nil {
		closed = []uint16{}
	}

	return Record{
		IP:          h.Addr.String(),
		Hostname:    h.Hostname,
		RTTMs:       float64(h.RTT.Microseconds()) / 1000.0,
		OpenPorts:   open,
		ClosedPorts: closed,
		Summary:     h.String(),
	}
}

// Writer writes host results as JSONL (JSON Lines) - one JSON object per line
// This format is ideal for streaming, piping to jq, and processing large datasets
type Writer struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// openOutput creates filename, or returns stdout for "-" and ""
func openOutput(filename string) (*os.File, error) {
	if filename == "-" || filename == "" {
		return os.Stdout, nil
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}

// NewWriter creates a JSONL writer to the specified file
// Use "-" for stdout
func NewWriter(filename string) (*Writer, error) {
	file, err := openOutput(filename)
	if err != nil {
		return nil, err
	}

	return &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024), // 64KB buffer
	}, nil
}

// NewWriterFromWriter creates a JSONL writer from an existing io.Writer
// Useful for testing or custom output destinations
func NewWriterFromWriter(w io.Writer) *Writer {
	return &Writer{
		writer: bufio.NewWriterSize(w, 64*1024),
	}
}

// Write writes a single host result as a JSON line
func (w *Writer) Write(result *scanner.HostResult) error {
	data, err := json.Marshal(NewRecord(result))
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}

	w.count++

	// Flush every 100 results for responsive output
	if w.count%100 == 0 {
		return w.writer.Flush()
	}

	return nil
}

// Flush forces any buffered data to be written
func (w *Writer) Flush() error {
	return w.writer.Flush()
}

// Close flushes and closes the writer
func (w *Writer) Close() error {
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
func (w *Writer) Count() int {
	return w.count
}
