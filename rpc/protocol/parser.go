package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ValentinKolb/sKV/lib/value"
)

// State is the position of a Parser inside the current frame
type State uint8

const (
	StateAwaitingMetaframe State = iota
	StateAwaitingDataframe
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateAwaitingMetaframe:
		return "AwaitingMetaframe"
	case StateAwaitingDataframe:
		return "AwaitingDataframe"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Parser
// --------------------------------------------------------------------------

// Parser turns a byte stream into frames. Bytes may be fed in chunks of any size, a
// frame is only produced once every declared byte is present. Bytes past the end of a
// frame are kept for the next one, which makes pipelined frames work.
//
// Thread-safety: a Parser belongs to one connection and must not be shared.
type Parser struct {
	marker  byte
	maxSize int

	buf   []byte // unconsumed input, buf[0] is the first byte of the current frame
	state State

	// valid once the metaframe has been read
	kind    Kind
	sizes   []uint32
	metaLen int
	total   int // metaframe + dataframe
}

// NewParser creates a parser accepting frames with the given marker whose declared
// size does not exceed maxSize (<= 0 selects DefaultMaxQuerySize).
func NewParser(marker byte, maxSize int) *Parser {
	if maxSize <= 0 {
		maxSize = DefaultMaxQuerySize
	}
	return &Parser{marker: marker, maxSize: maxSize}
}

// Feed appends received bytes
func (p *Parser) Feed(b []byte) {
	p.buf = append(p.buf, b...)
}

// Buffered returns the number of bytes received but not yet consumed
func (p *Parser) Buffered() int { return len(p.buf) }

// State reports the current parser state
func (p *Parser) State() State {
	if p.state == StateAwaitingDataframe && len(p.buf) >= p.total {
		return StateComplete
	}
	return p.state
}

// Remaining returns how many bytes the current stage still needs. While awaiting
// the metaframe this only counts the fixed header until the element count is known.
func (p *Parser) Remaining() int {
	need := HeaderSize
	if p.state == StateAwaitingDataframe {
		need = p.total
	} else if len(p.buf) >= HeaderSize {
		need = HeaderSize + 4*int(binary.BigEndian.Uint32(p.buf[3:7]))
	}
	return max(need-len(p.buf), 0)
}

// Next returns the next complete frame. It returns ErrIncomplete if more input is
// needed and ErrMalformedHeader if the metaframe is invalid; after a malformed header
// the stream cannot be resynchronized and the parser must be discarded.
//
// An element that fails to decode inside an otherwise well formed frame yields a
// value.ErrMalformedValue wrapped error; that frame is consumed and parsing can
// continue with the next one.
func (p *Parser) Next() (Frame, error) {
	if p.state == StateAwaitingMetaframe {
		if err := p.readMetaframe(); err != nil {
			return Frame{}, err
		}
	}
	if len(p.buf) < p.total {
		return Frame{}, ErrIncomplete
	}

	frame := Frame{Kind: p.kind, Elements: make([]value.Value, len(p.sizes))}
	off := p.metaLen
	var decodeErr error
	for i, size := range p.sizes {
		v, err := value.Decode(p.buf[off : off+int(size)])
		if err != nil && decodeErr == nil {
			decodeErr = fmt.Errorf("element %d: %w", i, err)
		}
		frame.Elements[i] = v
		off += int(size)
	}

	p.consume(p.total)
	if decodeErr != nil {
		return Frame{}, decodeErr
	}
	return frame, nil
}

// Finish is called when the stream ends. It returns io.EOF on a clean frame boundary
// and ErrUnexpectedEOF if a frame was cut off.
func (p *Parser) Finish() error {
	if len(p.buf) == 0 && p.state == StateAwaitingMetaframe {
		return io.EOF
	}
	return ErrUnexpectedEOF
}

// readMetaframe validates the metaframe once it is complete
func (p *Parser) readMetaframe() error {
	if len(p.buf) < HeaderSize {
		return ErrIncomplete
	}
	if p.buf[0] != p.marker {
		return fmt.Errorf("%w: marker %q", ErrMalformedHeader, p.buf[0])
	}
	if p.buf[1] != Version {
		return fmt.Errorf("%w: version %d", ErrMalformedHeader, p.buf[1])
	}
	kind := Kind(p.buf[2])
	if kind > KindError || (p.marker == MarkerQuery && kind != KindValue) {
		return fmt.Errorf("%w: frame kind %d", ErrMalformedHeader, kind)
	}

	count := uint64(binary.BigEndian.Uint32(p.buf[3:7]))
	if count == 0 && !(p.marker == MarkerResponse && kind == KindList) {
		return fmt.Errorf("%w: empty frame", ErrMalformedHeader)
	}
	if count > MaxElements {
		return fmt.Errorf("%w: %d elements", ErrMalformedHeader, count)
	}
	metaLen := uint64(HeaderSize) + 4*count
	if metaLen > uint64(p.maxSize) {
		return fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedHeader, p.maxSize)
	}
	if uint64(len(p.buf)) < metaLen {
		return ErrIncomplete
	}

	sizes := p.sizes[:0]
	total := metaLen
	for i := uint64(0); i < count; i++ {
		size := binary.BigEndian.Uint32(p.buf[HeaderSize+4*i:])
		if size == 0 {
			return fmt.Errorf("%w: element %d has size 0", ErrMalformedHeader, i)
		}
		total += uint64(size)
		if total > uint64(p.maxSize) {
			return fmt.Errorf("%w: frame exceeds %d bytes", ErrMalformedHeader, p.maxSize)
		}
		sizes = append(sizes, size)
	}

	p.kind, p.sizes = kind, sizes
	p.metaLen, p.total = int(metaLen), int(total)
	p.state = StateAwaitingDataframe
	return nil
}

// consume drops n bytes from the front of the buffer and returns to the metaframe state
func (p *Parser) consume(n int) {
	rest := copy(p.buf, p.buf[n:])
	p.buf = p.buf[:rest]
	p.state = StateAwaitingMetaframe
	p.metaLen, p.total = 0, 0
}
