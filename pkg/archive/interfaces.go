package archive

import "context"

// Record is a single derived-series row bound for the analytics archive.
type Record interface {
	// TableName returns the archive table this record belongs to
	TableName() string
	// Values returns row values in the same order as the table columns
	Values() []interface{}
}

// Writer writes archive records to storage (ClickHouse in production)
type Writer interface {
	// Write writes a batch of records to one table
	Write(ctx context.Context, tableName string, records []Record) error
	// Close closes writer and flushes any remaining data
	Close() error
}

// Buffer manages batching and auto-flushing of archive records
type Buffer interface {
	// Add adds a record to the buffer (thread-safe)
	Add(record Record) error
	// Flush flushes buffer to writer
	Flush(ctx context.Context) error
	// Size returns current buffer size
	Size() int
	// Close flushes and closes buffer
	Close(ctx context.Context) error
}
