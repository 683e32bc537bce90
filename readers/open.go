package readers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/catalogetl/core"
)

// Format identifies an input file format.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
	FormatJSON    Format = "jsonl"
)

// DetectFormat maps a file extension onto a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".parq", ".pq":
		return FormatParquet, nil
	case ".csv":
		return FormatCSV, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported input format for %q", path)
	}
}

// Open returns the DataSource for path, chosen by extension. Parquet options apply only to
// Parquet inputs; CSV inputs are read with a header row.
func Open(path string, options ...ReaderOption) (core.DataSource, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatParquet:
		return NewParquetReader(path, options...)
	case FormatCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, &CSVReaderError{Op: "open_file", Err: err}
		}
		r, err := NewCSVReader(f, WithCSVHasHeaders(true))
		if err != nil {
			f.Close()
			return nil, err
		}
		return r, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, &JSONReaderError{Op: "open_file", Err: err}
		}
		return NewJSONReader(f), nil
	}
}
