package readers

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/catalogetl/core"
)

// ParquetReaderError provides structured error information for parquet reader operations
type ParquetReaderError struct {
	Op  string // Operation that failed (e.g., "read", "load_batch", "open_file", "schema")
	Err error  // Underlying error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// Terminal reports whether the reader must stop after this error. A batch that failed to
// load fails the same way on every retry.
func (e *ParquetReaderError) Terminal() bool {
	return e.Op == "load_batch"
}

// ParquetReader implements core.DataSource for Parquet files
// Supports optional column projection and safe resource management
type ParquetReader struct {
	fileHandle      *os.File
	reader          *file.Reader
	arrowReader     *pqarrow.FileReader
	recordReader    pqarrow.RecordReader
	currentBatch    arrow.Record
	currentBatchIdx int
	currentRow      int64
	totalRows       int64
	schema          *arrow.Schema
	tableSchema     core.Schema
	stats           ReaderStats
	opts            *ParquetReaderOptions
}

// ReaderStats holds statistics about the Parquet reader's performance
type ReaderStats struct {
	RecordsRead     int64
	BatchesRead     int64
	BytesRead       int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// ParquetReaderOptions configures the Parquet reader
type ParquetReaderOptions struct {
	BatchSize    int64            // Rows per record batch
	Columns      []string         // Optional column projection
	MemoryLimit  int64            // Estimated bytes read before the reader refuses more batches; 0 = unlimited
	ParallelRead bool             // Decode columns concurrently
	Allocator    memory.Allocator // Arrow allocator; defaults to a Go allocator
}

// ReaderOption represents a configuration function
type ReaderOption func(*ParquetReaderOptions)

// WithBatchSize sets the number of rows decoded per batch.
func WithBatchSize(size int64) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.BatchSize = size
	}
}

// WithColumns projects the read onto the named columns.
func WithColumns(columns ...string) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.Columns = make([]string, len(columns))
		copy(opts.Columns, columns)
	}
}

// WithMemoryLimit caps the estimated bytes the reader may load.
func WithMemoryLimit(limit int64) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.MemoryLimit = limit
	}
}

// WithParallelRead enables concurrent column decoding.
func WithParallelRead(parallel bool) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.ParallelRead = parallel
	}
}

// WithAllocator sets the Arrow allocator used for decoded batches.
func WithAllocator(alloc memory.Allocator) ReaderOption {
	return func(opts *ParquetReaderOptions) {
		opts.Allocator = alloc
	}
}

// NewParquetReader opens a Parquet file and prepares an Arrow RecordReader
func NewParquetReader(filename string, options ...ReaderOption) (*ParquetReader, error) {
	opts := (&ParquetReaderOptions{}).withDefaults()

	for _, option := range options {
		option(opts)
	}

	return createParquetReader(filename, opts)
}

// createParquetReader handles file opening, Arrow reader creation, schema retrieval
// and optional column projection.
func createParquetReader(filename string, opts *ParquetReaderOptions) (*ParquetReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, &ParquetReaderError{Op: "open_file", Err: err}
	}

	parquetReader, err := file.NewParquetReader(f)
	if err != nil {
		f.Close()
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}

	props := pqarrow.ArrowReadProperties{
		Parallel:  opts.ParallelRead,
		BatchSize: opts.BatchSize,
	}
	arrowReader, err := pqarrow.NewFileReader(parquetReader, props, opts.Allocator)
	if err != nil {
		parquetReader.Close()
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		parquetReader.Close()
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	projected := schema.Fields()
	if len(opts.Columns) > 0 {
		projected = projected[:0:0]
		for _, name := range opts.Columns {
			indices := schema.FieldIndices(name)
			if len(indices) == 0 {
				parquetReader.Close()
				return nil, &ParquetReaderError{Op: "column_projection", Err: fmt.Errorf("column %q not found in schema", name)}
			}
			colIndices = append(colIndices, indices[0])
			projected = append(projected, schema.Field(indices[0]))
		}
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		parquetReader.Close()
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}

	return &ParquetReader{
		fileHandle:   f,
		reader:       parquetReader,
		arrowReader:  arrowReader,
		recordReader: recordReader,
		totalRows:    parquetReader.NumRows(),
		schema:       schema,
		tableSchema:  schemaFromArrow(projected),
		stats:        ReaderStats{NullValueCounts: make(map[string]int64)},
		opts:         opts,
	}, nil
}

// Read reads the next record from the Parquet file, returning core.Record or io.EOF
func (p *ParquetReader) Read(ctx context.Context) (core.Record, error) {
	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	select {
	case <-ctx.Done():
		return nil, &ParquetReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	for p.currentBatch == nil || p.currentBatchIdx >= int(p.currentBatch.NumRows()) {
		if err := p.loadNextBatch(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &ParquetReaderError{Op: "load_batch", Err: err}
		}
	}

	result := p.extractRecordFromBatch(p.currentBatch, p.currentBatchIdx)
	p.currentBatchIdx++
	p.currentRow++
	p.stats.RecordsRead++

	return result, nil
}

// Close releases resources and closes the underlying file
func (p *ParquetReader) Close() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	if p.reader != nil {
		err := p.reader.Close()
		p.reader = nil
		p.fileHandle = nil
		return err
	}
	return nil
}

// Schema returns the Arrow schema of the Parquet file
func (p *ParquetReader) Schema() *arrow.Schema {
	return p.schema
}

// TableSchema implements core.SchemaProvider for the projected columns.
func (p *ParquetReader) TableSchema() core.Schema {
	return p.tableSchema
}

// NumRows returns the row count recorded in the file footer.
func (p *ParquetReader) NumRows() int64 {
	return p.totalRows
}

// Stats returns statistics about the Parquet reader's performance
func (p *ParquetReader) Stats() ReaderStats {
	return p.stats
}

func (opts *ParquetReaderOptions) withDefaults() *ParquetReaderOptions {
	result := &ParquetReaderOptions{}
	if opts != nil {
		*result = *opts
	}

	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.Allocator == nil {
		result.Allocator = memory.NewGoAllocator()
	}

	return result
}

// loadNextBatch releases the current batch and pulls the next one, tracking estimated bytes.
func (p *ParquetReader) loadNextBatch() error {
	if p.opts.MemoryLimit > 0 && p.stats.BytesRead >= p.opts.MemoryLimit {
		return fmt.Errorf("memory limit exceeded: %d bytes >= %d limit", p.stats.BytesRead, p.opts.MemoryLimit)
	}

	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}

	rec, err := p.recordReader.Read()
	if err != nil {
		return err
	}
	if rec == nil || rec.NumRows() == 0 {
		return io.EOF
	}
	// the record reader releases its batch on the next Read
	rec.Retain()
	p.currentBatch = rec
	p.currentBatchIdx = 0
	p.stats.BatchesRead++

	var estimatedBytes int64
	for i := 0; i < int(rec.NumCols()); i++ {
		switch rec.Column(i).DataType().ID() {
		case arrow.BOOL, arrow.INT8, arrow.UINT8:
			estimatedBytes += rec.NumRows()
		case arrow.INT16, arrow.UINT16:
			estimatedBytes += rec.NumRows() * 2
		case arrow.INT32, arrow.UINT32, arrow.FLOAT32, arrow.DATE32:
			estimatedBytes += rec.NumRows() * 4
		case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY:
			estimatedBytes += rec.NumRows() * 32 // Average string/binary size
		default:
			estimatedBytes += rec.NumRows() * 8
		}
	}
	p.stats.BytesRead += estimatedBytes
	return nil
}

// extractRecordFromBatch builds a core.Record from a row in an Arrow Record batch
func (p *ParquetReader) extractRecordFromBatch(record arrow.Record, pos int) core.Record {
	res := make(core.Record, record.NumCols())
	sch := record.Schema()
	for i := 0; i < int(record.NumCols()); i++ {
		name := sch.Field(i).Name
		res[name] = p.extractValueFromColumn(record.Column(i), pos, name)
	}
	return res
}

// extractValueFromColumn converts one Arrow cell to its Go value, counting nulls
func (p *ParquetReader) extractValueFromColumn(col arrow.Array, rowIdx int, fieldName string) interface{} {
	if col.IsNull(rowIdx) {
		p.stats.NullValueCounts[fieldName]++
		return nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(rowIdx)
	case *array.Int8:
		return int64(arr.Value(rowIdx))
	case *array.Int16:
		return int64(arr.Value(rowIdx))
	case *array.Int32:
		return int64(arr.Value(rowIdx))
	case *array.Int64:
		return arr.Value(rowIdx)
	case *array.Uint8:
		return int64(arr.Value(rowIdx))
	case *array.Uint16:
		return int64(arr.Value(rowIdx))
	case *array.Uint32:
		return int64(arr.Value(rowIdx))
	case *array.Uint64:
		return core.NormalizeValue(arr.Value(rowIdx))
	case *array.Float32:
		return float64(arr.Value(rowIdx))
	case *array.Float64:
		return arr.Value(rowIdx)
	case *array.String:
		return arr.Value(rowIdx)
	case *array.LargeString:
		return arr.Value(rowIdx)
	case *array.Binary:
		return arr.Value(rowIdx)
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(rowIdx).ToTime(unit).UTC()
	case *array.Date32:
		return arr.Value(rowIdx).ToTime().UTC()
	case *array.Date64:
		return arr.Value(rowIdx).ToTime().UTC()
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(rowIdx))
	}
}

// schemaFromArrow maps Arrow fields onto core column types.
func schemaFromArrow(fields []arrow.Field) core.Schema {
	out := make([]core.Field, len(fields))
	for i, f := range fields {
		out[i] = core.Field{Name: f.Name, Type: columnTypeFromArrow(f.Type), Nullable: f.Nullable}
	}
	return core.Schema{Fields: out}
}

func columnTypeFromArrow(dt arrow.DataType) core.ColumnType {
	switch dt.ID() {
	case arrow.NULL:
		return core.TypeNull
	case arrow.BOOL:
		return core.TypeBoolean
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return core.TypeInteger
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return core.TypeFloat
	case arrow.STRING, arrow.LARGE_STRING:
		return core.TypeString
	case arrow.BINARY, arrow.LARGE_BINARY, arrow.FIXED_SIZE_BINARY:
		return core.TypeBinary
	case arrow.TIMESTAMP:
		return core.TypeTimestamp
	case arrow.DATE32, arrow.DATE64:
		return core.TypeDate
	default:
		return core.TypeString
	}
}
