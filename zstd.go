// Package zstd implements the Zstandard compressed data format,
// described in RFC 8878.
//
// The LZ77 stage is pluggable: the matchfinder subpackage supplies
// match finders and parsing strategies, and Encoder turns their output
// into zstd frames. NewWriter, NewReader, and the session types cover
// the common cases.
package zstd

import (
	"bytes"
	"errors"
	"io"
	"log"
)

// enable debug printing
const debug = false

// enable encoding debug printing
const debugEncoder = debug

// enable decoding debug printing
const debugDecoder = debug

// Enable extra assertions.
const debugAsserts = debug || false

// print sequence details
const debugSequences = false

// force encoder to use predefined tables.
const forcePreDef = false

// zstdMinMatch is the minimum zstd match length.
const zstdMinMatch = 3

// maxWindowSize is the largest window a decoder will accept.
const maxWindowSize = 1 << 30

var (
	// ErrMagicMismatch is returned when input does not start with a
	// frame or skippable frame magic number.
	ErrMagicMismatch = errors.New("invalid input: magic number mismatch")

	// ErrMalformedHeader is returned when a frame header violates the
	// format, or when a declared content size does not match the frame.
	ErrMalformedHeader = errors.New("invalid input: malformed frame header")

	// ErrMalformedBitstream is returned when a compressed block cannot
	// be decoded.
	ErrMalformedBitstream = errors.New("invalid input: malformed bitstream")

	// ErrInvalidDistribution is returned when an FSE table description
	// is inconsistent.
	ErrInvalidDistribution = errors.New("invalid input: bad symbol distribution")

	// ErrCRCMismatch is returned when the content checksum does not
	// match the decoded content.
	ErrCRCMismatch = errors.New("invalid input: checksum mismatch")

	// ErrUnexpectedEOF is returned when a session is ended in the
	// middle of a frame.
	ErrUnexpectedEOF = io.ErrUnexpectedEOF

	// ErrSessionClosed is returned when a session is used after End.
	ErrSessionClosed = errors.New("session is closed")

	// ErrInvalidParameter is returned for an out of range compression
	// level or an unusable option combination.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrReservedBlockType is returned when a frame contains a block
	// with the reserved type.
	ErrReservedBlockType = errors.New("invalid input: reserved block type")

	// ErrWindowSizeExceeded is returned when a frame requires a larger
	// window than the decoder supports.
	ErrWindowSizeExceeded = errors.New("window size exceeded")

	// ErrDecoderSizeExceeded is returned when decoded output would pass
	// the configured size limit.
	ErrDecoderSizeExceeded = errors.New("decompressed size exceeds configured limit")

	// ErrUnknownDictionary is returned when a frame references a
	// dictionary the session does not have.
	ErrUnknownDictionary = errors.New("unknown dictionary")
)

func println(a ...interface{}) {
	if debug || debugDecoder || debugEncoder {
		log.Println(a...)
	}
}

func printf(format string, a ...interface{}) {
	if debug || debugDecoder || debugEncoder {
		log.Printf(format, a...)
	}
}

type byter interface {
	Bytes() []byte
	Len() int
}

var _ byter = &bytes.Buffer{}

// Compress returns src compressed as a single zstd frame at the given
// level (1-9).
func Compress(src []byte, level int) ([]byte, error) {
	s, err := NewEncodeSession(level, nil)
	if err != nil {
		return nil, err
	}
	var out []byte
	for len(src) > 0 {
		n, chunk, err := s.Feed(src)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		src = src[n:]
	}
	chunk, err := s.End()
	if err != nil {
		return nil, err
	}
	return append(out, chunk...), nil
}

// Decompress decodes the frames in src. If maxSize is greater than
// zero, it returns ErrDecoderSizeExceeded rather than producing more
// than maxSize bytes.
func Decompress(src []byte, maxSize int) ([]byte, error) {
	s := NewDecodeSession(nil)
	s.MaxOutput = maxSize
	var out []byte
	for len(src) > 0 {
		n, chunk, err := s.Feed(src)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		src = src[n:]
	}
	chunk, err := s.End()
	if err != nil {
		return nil, err
	}
	return append(out, chunk...), nil
}

// CompressBound returns the worst case compressed size for n input
// bytes: the frame overhead plus raw block representation.
func CompressBound(n int) int {
	// 4 byte magic, 1 byte frame header descriptor, 1 byte window
	// descriptor, 4 byte checksum.
	const frameOverhead = 4 + 1 + 1 + 4
	blocks := n / maxCompressedBlockSize
	if blocks*maxCompressedBlockSize < n || blocks == 0 {
		blocks++
	}
	// One extra block header for the empty terminating block a session
	// writes when the input ends on a block boundary.
	return frameOverhead + n + 3*(blocks+1)
}
