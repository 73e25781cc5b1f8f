package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cacciapuotif-cpu/football-club-platform-sub001/pkg/logger"
)

// BufferedArchive manages batched archive records with auto-flush
type BufferedArchive struct {
	writer      Writer
	buffer      map[string][]Record
	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
	batchSize   int
	bufferMu    sync.RWMutex
}

// BufferConfig configures the archive buffer
type BufferConfig struct {
	Writer        Writer
	BatchSize     int           // Flush when a table's buffer reaches this size
	FlushInterval time.Duration // Auto-flush interval
}

// NewBufferedArchive creates new buffered archive
func NewBufferedArchive(cfg BufferConfig) *BufferedArchive {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	ba := &BufferedArchive{
		writer:      cfg.Writer,
		buffer:      make(map[string][]Record),
		batchSize:   cfg.BatchSize,
		flushTicker: time.NewTicker(cfg.FlushInterval),
		stopCh:      make(chan struct{}),
	}

	ba.wg.Add(1)
	go ba.autoFlush()

	logger.Info("archive buffer initialized",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)

	return ba
}

// Add adds a record to the buffer (thread-safe)
func (ba *BufferedArchive) Add(record Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}

	tableName := record.TableName()
	if tableName == "" {
		return fmt.Errorf("record table name is empty")
	}

	ba.bufferMu.Lock()
	defer ba.bufferMu.Unlock()

	ba.buffer[tableName] = append(ba.buffer[tableName], record)

	if len(ba.buffer[tableName]) >= ba.batchSize {
		logger.Debug("batch size reached, flushing",
			zap.String("table", tableName),
			zap.Int("size", len(ba.buffer[tableName])),
		)
		// Flush in background to avoid blocking
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ba.Flush(ctx); err != nil {
				logger.Error("auto-flush failed", zap.Error(err))
			}
		}()
	}

	return nil
}

// Flush flushes all buffered records to the writer
func (ba *BufferedArchive) Flush(ctx context.Context) error {
	ba.bufferMu.Lock()

	toFlush := make(map[string][]Record)
	for table, records := range ba.buffer {
		if len(records) > 0 {
			toFlush[table] = records
			ba.buffer[table] = nil
		}
	}
	ba.bufferMu.Unlock()

	if len(toFlush) == 0 {
		return nil
	}

	var failed int
	for tableName, records := range toFlush {
		if err := ba.writer.Write(ctx, tableName, records); err != nil {
			logger.Error("failed to flush archive records",
				zap.String("table", tableName),
				zap.Int("count", len(records)),
				zap.Error(err),
			)
			failed++
		} else {
			logger.Debug("archive records flushed",
				zap.String("table", tableName),
				zap.Int("count", len(records)),
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("flush failed for %d tables", failed)
	}

	return nil
}

// Size returns current buffer size across all tables
func (ba *BufferedArchive) Size() int {
	ba.bufferMu.RLock()
	defer ba.bufferMu.RUnlock()

	total := 0
	for _, records := range ba.buffer {
		total += len(records)
	}
	return total
}

// Close gracefully shuts down the buffer and flushes remaining records
func (ba *BufferedArchive) Close(ctx context.Context) error {
	logger.Info("closing archive buffer...")

	close(ba.stopCh)
	ba.flushTicker.Stop()
	ba.wg.Wait()

	if err := ba.Flush(ctx); err != nil {
		logger.Error("final flush failed", zap.Error(err))
		return err
	}

	if err := ba.writer.Close(); err != nil {
		logger.Error("writer close failed", zap.Error(err))
		return err
	}

	logger.Info("✅ archive buffer closed")
	return nil
}

// autoFlush periodically flushes the buffer
func (ba *BufferedArchive) autoFlush() {
	defer ba.wg.Done()

	for {
		select {
		case <-ba.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := ba.Flush(ctx); err != nil {
				logger.Warn("periodic flush failed", zap.Error(err))
			}
			cancel()

		case <-ba.stopCh:
			return
		}
	}
}
