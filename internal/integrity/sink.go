package integrity

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink receives findings as they are produced, one text line each. It is
// append-only: implementations never reorder or rewrite prior entries.
type Sink interface {
	Record(f Finding) error
	Close() error
}

// WriterSink writes findings to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a Sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Record(f Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, f.String())
	return err
}

func (s *WriterSink) Close() error {
	return nil
}

// FileSink appends findings to a log file.
type FileSink struct {
	f *os.File
	WriterSink
}

// NewFileSink opens (or creates) path for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open findings sink %s: %w", path, err)
	}
	return &FileSink{f: f, WriterSink: WriterSink{w: f}}, nil
}

func (s *FileSink) Close() error {
	return s.f.Close()
}
