// Package splitter implements content-defined chunking: a rolling byte-sum
// accumulator over a sliding window that emits a chunk boundary whenever the
// low bits of the accumulator hit a configured marker. The algorithm and its
// circular-buffer shape are ported directly from the original Rust
// hashsplitter (src/split.rs); it intentionally is not a Rabin/Buzhash
// rolling hash, only a running sum, which is what gives it its cheap
// incremental add/subtract per stride.
package splitter

import (
	"fmt"
	"io"
)

// Parameters controls the chunk boundary algorithm. Zero value is invalid;
// use Default() or DefaultParameters.
type Parameters struct {
	Stride           int
	StridesPerWindow int
	SplitMarker      uint64
	Log2Modulus      uint
}

// DefaultParameters matches §6.3's mandated defaults; implementations MUST
// interoperate at these values.
var DefaultParameters = Parameters{
	Stride:           1,
	StridesPerWindow: 8192,
	SplitMarker:      1,
	Log2Modulus:      14,
}

func (p Parameters) validate() error {
	if p.Stride <= 0 {
		return fmt.Errorf("splitter: stride must be positive, got %d", p.Stride)
	}
	if p.StridesPerWindow <= 0 {
		return fmt.Errorf("splitter: strides_per_window must be positive, got %d", p.StridesPerWindow)
	}
	if p.Log2Modulus == 0 || p.Log2Modulus > 63 {
		return fmt.Errorf("splitter: log2_modulus out of range, got %d", p.Log2Modulus)
	}
	return nil
}

// Range is a half-open byte range [Start, End).
type Range struct {
	Start int64
	End   int64
}

// Splitter produces a sequence of chunk boundaries over a byte stream.
// Find must be called repeatedly, each time piping the consumed bytes into
// sink, until it returns (Range{}, false, nil) signalling exhaustion.
type Splitter struct {
	params Parameters
	source io.Reader
	buffer []byte
	idx    int
	total  int64 // strides consumed by previously-emitted chunks
	done   bool
}

// New creates a splitter over source with the given parameters.
func New(source io.Reader, params Parameters) (*Splitter, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Splitter{
		params: params,
		source: source,
		buffer: make([]byte, params.Stride*(params.StridesPerWindow+1)),
	}, nil
}

func (s *Splitter) nextBuffer() {
	s.idx = (s.idx + 1) % (s.params.StridesPerWindow + 1)
}

// fillBuffer reads one stride's worth of fresh bytes into the circular
// buffer slot that is about to roll out of the window, returning the
// outgoing ("old") bytes still in place before the read and the freshly
// read ("new") bytes.
func (s *Splitter) fillBuffer() (old, fresh []byte, err error) {
	stride := s.params.Stride
	spw := s.params.StridesPerWindow

	var newSlot, oldSlot []byte
	if s.idx == spw {
		oldSlot = s.buffer[:spw*stride]
		newSlot = s.buffer[spw*stride:]
	} else {
		window := s.buffer[s.idx*stride : s.idx*stride+stride*2]
		newSlot = window[:stride]
		oldSlot = window[stride:]
	}
	old = oldSlot[:stride]

	n := 0
	for n < len(newSlot) {
		dn, rerr := s.source.Read(newSlot[n:])
		n += dn
		if dn == 0 || rerr != nil {
			if rerr != nil && rerr != io.EOF {
				return nil, nil, rerr
			}
			break
		}
	}
	return old, newSlot[:n], nil
}

// Find writes consumed bytes into sink and returns the next chunk boundary.
// ok is false once the stream is exhausted (mirroring the Rust Option).
func (s *Splitter) Find(sink io.Writer) (r Range, ok bool, err error) {
	if s.done {
		return Range{}, false, nil
	}

	p := s.params
	var chunkStrides int64
	var acc uint64

	for {
		old, fresh, ferr := s.fillBuffer()
		if ferr != nil {
			return Range{}, false, ferr
		}
		if _, werr := sink.Write(fresh); werr != nil {
			return Range{}, false, werr
		}
		for _, b := range fresh {
			acc += uint64(b)
		}
		if chunkStrides >= int64(p.StridesPerWindow) {
			for _, b := range old {
				acc -= uint64(b)
			}
		}
		readBytes := len(fresh)

		if readBytes < p.Stride {
			s.done = true
			preChunkBytes := s.total * int64(p.Stride)
			totalBytes := preChunkBytes + chunkStrides*int64(p.Stride) + int64(readBytes)
			return Range{Start: preChunkBytes, End: totalBytes}, true, nil
		}

		chunkStrides++
		acc &= (uint64(1) << p.Log2Modulus) - 1

		if chunkStrides >= int64(p.StridesPerWindow) && acc == p.SplitMarker {
			preChunkBytes := s.total * int64(p.Stride)
			postChunkBytes := preChunkBytes + chunkStrides*int64(p.Stride)
			s.total += chunkStrides
			return Range{Start: preChunkBytes, End: postChunkBytes}, true, nil
		}

		s.nextBuffer()
	}
}

// Split drains the entire stream, invoking visit for every boundary in
// order. The emitted bytes are discarded unless sink is non-nil.
func Split(source io.Reader, params Parameters, sink io.Writer, visit func(Range) error) error {
	if sink == nil {
		sink = io.Discard
	}
	sp, err := New(source, params)
	if err != nil {
		return err
	}
	for {
		r, ok, err := sp.Find(sink)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := visit(r); err != nil {
			return err
		}
	}
}
