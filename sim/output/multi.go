package output

import (
	"errors"

	"github.com/lattice-sim/lattice-sim/sim"
)

// MultiWriter fans samples out to several writers.
type MultiWriter struct {
	writers []sim.ResultWriter
}

// Multi combines writers; nil entries are dropped.
func Multi(writers ...sim.ResultWriter) *MultiWriter {
	m := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Len is the number of combined writers.
func (m *MultiWriter) Len() int { return len(m.writers) }

// Write stops at the first failing writer.
func (m *MultiWriter) Write(s sim.Sample) error {
	for _, w := range m.writers {
		if err := w.Write(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
