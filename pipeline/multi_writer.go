package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-shop-probe/models"
)

// MultiWriter fans every batch out to several writers in order.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter combines writers; nil entries are skipped.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Write stops at the first failing writer.
func (mw *MultiWriter) Write(records []*models.ProductRecord) error {
	for i, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("writer %d close: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every writer and joins their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("writer %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
