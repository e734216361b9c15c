// Package pipeline validates, de-duplicates, and writes product records.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-shop-probe/config"
	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/aluiziolira/go-shop-probe/normalize"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.ProductRecord) error
	Close() error
	Validate() error
}

// Pipeline validates and de-duplicates records, then writes them in batches.
// It runs on the caller's goroutine and is not safe for concurrent use.
type Pipeline struct {
	writer    OutputWriter
	batchSize int
	batch     []*models.ProductRecord

	seen *lru.Cache[string, struct{}]

	metrics metrics

	closed bool
	err    error
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	dedupe := cfg.DedupeMaxSize
	if dedupe <= 0 {
		dedupe = 10000
	}
	seen, err := lru.New[string, struct{}](dedupe)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	return &Pipeline{
		writer:    writer,
		batchSize: batchSize,
		batch:     make([]*models.ProductRecord, 0, batchSize),
		seen:      seen,
		metrics:   newMetrics(),
	}, nil
}

// Process validates records and queues them, writing a batch whenever it
// fills up.
func (p *Pipeline) Process(records ...*models.ProductRecord) error {
	if p.err != nil {
		return p.err
	}
	if p.closed {
		return ErrPipelineClosed
	}

	for _, rec := range records {
		prepared := p.prepare(rec)
		if prepared == nil {
			continue
		}
		p.batch = append(p.batch, prepared)
		if len(p.batch) >= p.batchSize {
			if err := p.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes any queued records.
func (p *Pipeline) Flush() error {
	if p.err != nil {
		return p.err
	}
	if len(p.batch) == 0 {
		return nil
	}
	if err := p.writer.Write(p.batch); err != nil {
		p.err = fmt.Errorf("write batch: %w", err)
		return p.err
	}
	p.metrics.written += int64(len(p.batch))
	p.batch = p.batch[:0]
	return nil
}

// Reset writes queued records and forgets every key seen so far, so the
// records processed next are de-duplicated only against each other.
func (p *Pipeline) Reset() error {
	if err := p.Flush(); err != nil {
		return err
	}
	p.seen.Purge()
	return nil
}

// Close flushes queued records, closes the writer and prevents more
// submissions.
func (p *Pipeline) Close() error {
	if p.closed {
		return p.err
	}
	p.closed = true

	flushErr := p.Flush()
	if err := p.writer.Close(); err != nil && p.err == nil {
		p.err = fmt.Errorf("close writer: %w", err)
	}
	if p.err == nil {
		p.err = flushErr
	}
	return p.err
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) prepare(rec *models.ProductRecord) *models.ProductRecord {
	if err := normalize.ValidateRecord(rec); err != nil {
		p.metrics.addValidation("empty_record")
		return nil
	}

	key := rec.Key()
	if key != "" {
		if p.seen.Contains(key) {
			p.metrics.addValidation("duplicate_record")
			return nil
		}
		p.seen.Add(key, struct{}{})
	}

	p.metrics.processed++
	return rec
}

type metrics struct {
	processed  int64
	written    int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"written_records":   m.written,
		"validation_errors": copyValidation,
	}
}
