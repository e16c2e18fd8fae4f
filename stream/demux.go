// Package stream implements incremental demultiplexing of a model's raw text
// stream into visible answer text and hidden reasoning text. Reasoning is
// delimited by a sentinel marker pair that may arrive split across arbitrary
// chunk boundaries, so the demux buffers just enough tail text to never
// misfire on a partially received marker.
package stream

import "strings"

// Default sentinel markers delimiting a reasoning segment.
const (
	DefaultOpenMarker  = "<think>"
	DefaultCloseMarker = "</think>"
)

// SpanKind tags which output channel a span belongs to.
type SpanKind int

const (
	// SpanVisible is ordinary answer text.
	SpanVisible SpanKind = iota
	// SpanReasoning is hidden reasoning text, shown only for live display and
	// never replayed to the model.
	SpanReasoning
)

// Span is one demultiplexed output event.
type Span struct {
	Kind SpanKind
	Text string
}

// Options configure the marker pair.
type Options struct {
	OpenMarker  string
	CloseMarker string
}

// Demux splits raw text deltas into visible and reasoning spans. It is a
// single-turn state machine: create a fresh Demux per streamed turn, call
// Feed for every delta and Flush exactly once when the stream ends.
//
// The pending buffer held between calls is always shorter than the marker
// currently scanned for, so for marker-free input Feed/Flush behave exactly
// like a passthrough.
type Demux struct {
	open  string
	close string

	hidden     bool   // inside a reasoning segment
	eatNewline bool   // swallow one newline directly after the close marker
	buf        string // tail text not yet safe to emit
}

// NewDemux constructs a demux with the default think markers unless overridden.
func NewDemux(optFns ...func(o *Options)) *Demux {
	opts := Options{
		OpenMarker:  DefaultOpenMarker,
		CloseMarker: DefaultCloseMarker,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Demux{open: opts.OpenMarker, close: opts.CloseMarker}
}

// Feed consumes one raw delta and returns zero or more output spans. Empty
// deltas are no-ops.
func (d *Demux) Feed(delta string) []Span {
	if delta == "" {
		return nil
	}
	d.buf += delta
	return d.drain(false)
}

// Flush emits whatever remains buffered, tagged with the current mode, and
// resets the demux. A stream still in reasoning mode is treated as a
// well-formed but unterminated reasoning block, not an error.
func (d *Demux) Flush() []Span {
	spans := d.drain(true)
	d.hidden = false
	d.eatNewline = false
	return spans
}

func (d *Demux) drain(final bool) []Span {
	var spans []Span
	for {
		if d.eatNewline {
			switch {
			case d.buf == "":
				if !final {
					return spans
				}
				d.eatNewline = false
			case d.buf[0] == '\n':
				d.buf = d.buf[1:]
				d.eatNewline = false
			case d.buf[0] == '\r':
				if len(d.buf) == 1 && !final {
					return spans // might still be the first half of "\r\n"
				}
				if len(d.buf) >= 2 && d.buf[1] == '\n' {
					d.buf = d.buf[2:]
				}
				d.eatNewline = false // a lone carriage return is kept
			default:
				d.eatNewline = false
			}
			continue
		}

		marker, kind := d.open, SpanVisible
		if d.hidden {
			marker, kind = d.close, SpanReasoning
		}

		if i := strings.Index(d.buf, marker); i >= 0 {
			if i > 0 {
				spans = append(spans, Span{Kind: kind, Text: d.buf[:i]})
			}
			d.buf = d.buf[i+len(marker):]
			if d.hidden {
				d.hidden = false
				d.eatNewline = true
			} else {
				d.hidden = true
			}
			continue
		}

		if final {
			if d.buf != "" {
				spans = append(spans, Span{Kind: kind, Text: d.buf})
				d.buf = ""
			}
			return spans
		}
		if len(d.buf) < len(marker) {
			return spans // marker could still be completing
		}
		// Emit everything except the longest tail that could begin a marker.
		safe := len(d.buf) - len(marker) + 1
		spans = append(spans, Span{Kind: kind, Text: d.buf[:safe]})
		d.buf = d.buf[safe:]
		return spans
	}
}
