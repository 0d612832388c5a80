package eventlog

import "errors"

// Sink receives every record the Logger decides to keep.
type Sink interface {
	WriteRecord(r Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Record) error

// WriteRecord calls f(r).
func (f SinkFunc) WriteRecord(r Record) error { return f(r) }

// MultiSink writes each record to every sink in order. All sinks are
// attempted; the joined error of the failures is returned.
type MultiSink []Sink

// WriteRecord fans r out to each sink.
func (m MultiSink) WriteRecord(r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteRecord(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
