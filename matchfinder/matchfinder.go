// The matchfinder package is a modular system for the LZ77 stage of
// compression.
//
// A Zstandard compressor has two main parts:
//   - Something that looks for repeated sequences of bytes
//   - An encoder for the compressed data format
//
// Although these are logically two separate steps, the implementations are
// usually closely tied together. This package defines interfaces and an
// intermediate representation to allow mixing and matching match finders with
// parsing strategies, and to feed their output to the frame encoder in the
// parent package.
package matchfinder

import (
	"errors"
	"io"
)

// A Match is the basic unit of LZ77 compression.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match
	Length    int // the number of bytes in the matched string; it may be 0 at the end of the input
	Distance  int // how far back in the stream to copy from
}

// A MatchFinder performs the LZ77 stage of compression, looking for matches.
type MatchFinder interface {
	// FindMatches looks for matches in src, appends them to dst, and returns dst.
	FindMatches(dst []Match, src []byte) []Match

	// Reset clears any internal state, preparing the MatchFinder to be used with
	// a new stream.
	Reset()
}

// An Encoder encodes the data in its final format.
type Encoder interface {
	// Encode appends the encoded format of src to dst, using the match
	// information from matches.
	Encode(dst []byte, src []byte, matches []Match, lastBlock bool) []byte

	// Reset clears any internal state, preparing the Encoder to be used with
	// a new stream.
	Reset()
}

// A Preloader is a MatchFinder that can seed its window with bytes that are
// available to both the compressor and the decompressor before the stream
// starts, such as dictionary content.
type Preloader interface {
	Preload(history []byte)
}

// A Writer uses a MatchFinder and an Encoder to write compressed data to
// Dest.
type Writer struct {
	Dest        io.Writer
	MatchFinder MatchFinder
	Encoder     Encoder

	// BlockSize is the number of bytes to compress at a time. If it is zero,
	// each call to Write compresses one block.
	BlockSize int

	err     error
	matches []Match
	buf     []byte
}

func (w *Writer) Write(p []byte) (n int, err error) {
	if w.err != nil {
		return 0, w.err
	}

	if w.BlockSize == 0 {
		return w.writeBlock(p)
	}

	for len(p) > 0 {
		block := p
		if len(block) > w.BlockSize {
			block = block[:w.BlockSize]
		}
		n2, err := w.writeBlock(block)
		n += n2
		if err != nil {
			return n, err
		}
		p = p[len(block):]
	}

	return n, nil
}

func (w *Writer) writeBlock(p []byte) (n int, err error) {
	w.matches = w.MatchFinder.FindMatches(w.matches[:0], p)
	w.buf = w.Encoder.Encode(w.buf[:0], p, w.matches, false)
	if _, err := w.Dest.Write(w.buf); err != nil {
		w.err = err
		return 0, err
	}
	return len(p), nil
}

// Close finishes the stream, writing the final block. It does not close Dest.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	w.buf = w.Encoder.Encode(w.buf[:0], nil, nil, true)
	if _, err := w.Dest.Write(w.buf); err != nil {
		w.err = err
		return err
	}
	w.err = errors.New("matchfinder: writer is closed")
	return nil
}

// Reset clears the state of the Writer and its components, so that it can be
// used to write a new stream to newDest.
func (w *Writer) Reset(newDest io.Writer) {
	w.MatchFinder.Reset()
	w.Encoder.Reset()
	w.err = nil
	w.Dest = newDest
}
