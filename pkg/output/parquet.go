package output

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/velemoonkon/portsweep/pkg/ports"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// ParquetRow is a flattened representation of HostResult for Parquet storage
// Port lists are stored in compact range form, e.g. "1-1024,8080"
type ParquetRow struct {
	IP       string  `parquet:"ip,zstd"`
	Hostname string  `parquet:"hostname,zstd"`
	IsIPv6   bool    `parquet:"is_ipv6"`
	RTTMs    float64 `parquet:"rtt_ms"`

	OpenPorts   string `parquet:"open_ports,zstd,dict"`
	ClosedPorts string `parquet:"closed_ports,zstd,dict"`
	OpenCount   int32  `parquet:"open_count"`
	ClosedCount int32  `parquet:"closed_count"`
}

// ParquetWriter writes host results to a Parquet file
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[ParquetRow]
	count  int
}

// NewParquetWriter creates a Parquet writer with zstd compression
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	if filename == "-" || filename == "" {
		return nil, fmt.Errorf("parquet cannot write to stdout, use -o file.parquet")
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[ParquetRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("portsweep", "1.0.0", "go"),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write converts a HostResult to a flat ParquetRow and writes it
func (w *ParquetWriter) Write(result *scanner.HostResult) error {
	row := hostResultToParquetRow(result)

	if _, err := w.writer.Write([]ParquetRow{row}); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}

	w.count++
	return nil
}

// Flush forces buffered data to be written
func (w *ParquetWriter) Flush() error {
	return w.writer.Flush()
}

// Close finalizes and closes the Parquet file
func (w *ParquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written
func (w *ParquetWriter) Count() int {
	return w.count
}

// hostResultToParquetRow flattens a HostResult into a ParquetRow
func hostResultToParquetRow(r *scanner.HostResult) ParquetRow {
	return ParquetRow{
		IP:          r.Addr.String(),
		Hostname:    r.Hostname,
		IsIPv6:      r.Addr.Is6(),
		RTTMs:       float64(r.RTT.Microseconds()) / 1000.0,
		OpenPorts:   ports.FormatRanges(r.Status.Open),
		ClosedPorts: ports.FormatRanges(r.Status.Closed),
		OpenCount:   int32(len(r.Status.Open)),
		ClosedCount: int32(len(r.Status.Closed)),
	}
}
