package agent

import (
	"fmt"
	"io"
)

// Sink receives streamed text as it arrives. Write is called once per
// decoded span and Flush when a response ends, normally or not.
type Sink interface {
	Write(text string)
	Flush()
}

// WriterSink streams text to an io.Writer.
type WriterSink struct {
	W io.Writer
}

// Write copies text to the underlying writer.
func (s *WriterSink) Write(text string) {
	fmt.Fprint(s.W, text)
}

// Flush terminates the current line.
func (s *WriterSink) Flush() {
	fmt.Fprintln(s.W)
}

// NopSink discards everything.
type NopSink struct{}

// Write does nothing.
func (NopSink) Write(string) {}

// Flush does nothing.
func (NopSink) Flush() {}
