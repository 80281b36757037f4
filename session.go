package zstd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/andybalholm/zstd/matchfinder"
	"github.com/pierrec/xxHash/xxHash64"
)

// An EncodeSession compresses a stream incrementally. Feed it input in
// chunks of any size; it returns compressed output as whole blocks
// become ready. A session is for a single frame and a single
// goroutine; open one session per stream.
type EncodeSession struct {
	mf      matchfinder.MatchFinder
	enc     *Encoder
	buf     []byte
	matches []matchfinder.Match
	ended   bool
}

const sessionBlockSize = 1 << 17

// NewEncodeSession opens an encode session at the given level (1-9).
// If dict is not nil, the frame is compressed against it and can only
// be decoded with the same dictionary.
func NewEncodeSession(level int, dict *Dictionary) (*EncodeSession, error) {
	mf, windowSize, err := finderForLevel(level)
	if err != nil {
		return nil, err
	}
	if dict != nil {
		if p, ok := mf.(matchfinder.Preloader); ok {
			p.Preload(dict.content)
		}
	}
	return &EncodeSession{
		mf: mf,
		enc: &Encoder{
			WindowSize: windowSize,
			Checksum:   true,
			Dict:       dict,
		},
	}, nil
}

// Feed consumes input and returns any output that became ready. The
// returned slice is only valid until the next call.
func (s *EncodeSession) Feed(p []byte) (consumed int, out []byte, err error) {
	if s.ended {
		return 0, nil, ErrSessionClosed
	}
	for len(p) > 0 {
		n := sessionBlockSize - len(s.buf)
		if n > len(p) {
			n = len(p)
		}
		s.buf = append(s.buf, p[:n]...)
		p = p[n:]
		consumed += n
		if len(s.buf) == sessionBlockSize {
			out = s.writeBlock(out, false)
		}
	}
	return consumed, out, nil
}

// Flush forces the buffered input out as a block boundary without
// ending the frame.
func (s *EncodeSession) Flush() ([]byte, error) {
	if s.ended {
		return nil, ErrSessionClosed
	}
	if len(s.buf) == 0 {
		return nil, nil
	}
	return s.writeBlock(nil, false), nil
}

// End writes the last block and the content checksum. The session
// cannot be used afterwards.
func (s *EncodeSession) End() ([]byte, error) {
	if s.ended {
		return nil, ErrSessionClosed
	}
	s.ended = true
	if len(s.buf) == 0 {
		return s.enc.Encode(nil, nil, nil, true), nil
	}
	return s.writeBlock(nil, true), nil
}

func (s *EncodeSession) writeBlock(dst []byte, last bool) []byte {
	s.matches = s.mf.FindMatches(s.matches[:0], s.buf)
	dst = s.enc.Encode(dst, s.buf, s.matches, last)
	s.buf = s.buf[:0]
	return dst
}

type decodeState uint8

const (
	stateMagic decodeState = iota
	stateSkip
	stateBlocks
	stateCRC
)

// A DecodeSession decompresses a stream incrementally. It accepts any
// number of concatenated frames, including skippable frames. A failed
// session must be discarded; every call after an error reports the
// same error.
type DecodeSession struct {
	// MaxOutput limits the total number of bytes the session will
	// produce. Zero means no limit.
	MaxOutput int

	dict *Dictionary

	state      decodeState
	block      blockDec
	in         []byte
	history    []byte
	windowSize int
	fh         decFrameHeader
	hasher     hash.Hash64
	frameOut   uint64
	skipLeft   int
	total      int
	rleBuf     []byte
	err        error
	ended      bool
}

// NewDecodeSession opens a decode session. If dict is not nil, frames
// that declare its ID (and, for a raw content dictionary, every frame)
// are decoded against it.
func NewDecodeSession(dict *Dictionary) *DecodeSession {
	return &DecodeSession{dict: dict}
}

// Feed consumes input and returns the bytes decoded from it. The
// returned slice is only valid until the next call.
func (s *DecodeSession) Feed(p []byte) (consumed int, out []byte, err error) {
	if s.ended {
		return 0, nil, ErrSessionClosed
	}
	if s.err != nil {
		return 0, nil, s.err
	}
	s.in = append(s.in, p...)
	out, err = s.run(nil)
	if err != nil {
		s.err = err
		return 0, nil, err
	}
	return len(p), out, nil
}

// End signals that the input is complete. It fails if the input ends
// in the middle of a frame.
func (s *DecodeSession) End() ([]byte, error) {
	if s.ended {
		return nil, ErrSessionClosed
	}
	if s.err != nil {
		return nil, s.err
	}
	s.ended = true
	if s.state != stateMagic || len(s.in) > 0 {
		return nil, ErrUnexpectedEOF
	}
	return nil, nil
}

// run decodes as much of s.in as possible, appending output to out.
func (s *DecodeSession) run(out []byte) ([]byte, error) {
	for {
		switch s.state {
		case stateMagic:
			if len(s.in) < 4 {
				return out, nil
			}
			magic := binary.LittleEndian.Uint32(s.in)
			if magic&skippableFrameMask == skippableFrameMagic {
				if len(s.in) < 8 {
					return out, nil
				}
				s.skipLeft = int(binary.LittleEndian.Uint32(s.in[4:]))
				s.advance(8)
				s.state = stateSkip
				continue
			}
			if !bytes.Equal(s.in[:4], frameMagic) {
				return out, ErrMagicMismatch
			}
			fh, n, err := parseFrameHeader(s.in[4:])
			if err == errNeedMore {
				return out, nil
			}
			if err != nil {
				return out, err
			}
			s.advance(4 + n)
			if err := s.startFrame(fh); err != nil {
				return out, err
			}

		case stateSkip:
			n := s.skipLeft
			if n > len(s.in) {
				n = len(s.in)
			}
			s.advance(n)
			s.skipLeft -= n
			if s.skipLeft > 0 {
				return out, nil
			}
			s.state = stateMagic

		case stateBlocks:
			var done bool
			var err error
			out, done, err = s.decodeBlock(out)
			if err != nil {
				return out, err
			}
			if !done {
				return out, nil
			}

		case stateCRC:
			if len(s.in) < 4 {
				return out, nil
			}
			want := binary.LittleEndian.Uint32(s.in)
			s.advance(4)
			got := uint32(s.hasher.Sum64())
			if got != want {
				return out, fmt.Errorf("%w: got %08x, frame has %08x", ErrCRCMismatch, got, want)
			}
			if debugDecoder {
				printf("checksum ok: %08x\n", got)
			}
			s.state = stateMagic
		}
	}
}

// startFrame resets per frame state from a parsed header.
func (s *DecodeSession) startFrame(fh decFrameHeader) error {
	if fh.DictID != 0 && (s.dict == nil || s.dict.id != fh.DictID) {
		return fmt.Errorf("%w: frame needs dictionary %d", ErrUnknownDictionary, fh.DictID)
	}
	s.fh = fh
	s.windowSize = fh.WindowSize
	if s.windowSize < 1<<10 {
		s.windowSize = 1 << 10
	}
	s.block.frameReset(s.windowSize)
	s.history = s.history[:0]
	if s.dict != nil {
		s.history = append(s.history, s.dict.content...)
		if len(s.history) > s.windowSize {
			s.history = s.history[len(s.history)-s.windowSize:]
		}
		if fh.DictID != 0 {
			s.block.seq.prevOffset = s.dict.offsets
		}
		if fh.DictID != 0 && s.dict.hasEntropy {
			s.block.huf = s.dict.litDec
			s.block.seq.litLengths.fse = &s.dict.llDec
			s.block.seq.offsets.fse = &s.dict.ofDec
			s.block.seq.matchLengths.fse = &s.dict.mlDec
		}
	}
	s.hasher = nil
	if fh.Checksum {
		s.hasher = xxHash64.New(0)
	}
	s.frameOut = 0
	s.state = stateBlocks
	return nil
}

// decodeBlock decodes one block if it is fully buffered. done reports
// whether a block was consumed.
func (s *DecodeSession) decodeBlock(out []byte) (_ []byte, done bool, err error) {
	if len(s.in) < 3 {
		return out, false, nil
	}
	bh := uint32(s.in[0]) | uint32(s.in[1])<<8 | uint32(s.in[2])<<16
	last := bh&1 != 0
	typ := blockType(bh >> 1 & 3)
	size := int(bh >> 3)

	need := size
	switch typ {
	case blockTypeRLE:
		need = 1
	case blockTypeReserved:
		return out, false, ErrReservedBlockType
	case blockTypeCompressed:
		if size > maxCompressedBlockSize {
			return out, false, fmt.Errorf("%w: compressed block size %d", ErrMalformedBitstream, size)
		}
	}
	if len(s.in) < 3+need {
		return out, false, nil
	}
	data := s.in[3 : 3+need]
	if debugDecoder {
		println("block: type:", typ, "size:", size, "last:", last)
	}

	var blockOut []byte
	switch typ {
	case blockTypeRaw:
		if size > s.block.maxRegen {
			return out, false, fmt.Errorf("%w: raw block size %d over block limit", ErrMalformedBitstream, size)
		}
		blockOut = data
	case blockTypeRLE:
		if size > s.block.maxRegen {
			return out, false, fmt.Errorf("%w: RLE block size %d over block limit", ErrMalformedBitstream, size)
		}
		if cap(s.rleBuf) < size {
			s.rleBuf = make([]byte, size)
		}
		blockOut = s.rleBuf[:size]
		v := data[0]
		for i := range blockOut {
			blockOut[i] = v
		}
	case blockTypeCompressed:
		blockOut, err = s.block.decodeCompressed(nil, data, s.history)
		if err != nil {
			if !errors.Is(err, ErrInvalidDistribution) {
				err = fmt.Errorf("%w: %v", ErrMalformedBitstream, err)
			}
			return out, false, err
		}
	}
	s.total += len(blockOut)
	if s.MaxOutput > 0 && s.total > s.MaxOutput {
		return out, false, ErrDecoderSizeExceeded
	}
	s.frameOut += uint64(len(blockOut))
	if s.fh.HasContentSize && s.frameOut > s.fh.ContentSize {
		return out, false, fmt.Errorf("%w: content larger than declared size %d", ErrMalformedHeader, s.fh.ContentSize)
	}
	if s.hasher != nil {
		s.hasher.Write(blockOut)
	}
	out = append(out, blockOut...)

	s.history = append(s.history, blockOut...)
	if len(s.history) > s.windowSize {
		n := len(s.history) - s.windowSize
		copy(s.history, s.history[n:])
		s.history = s.history[:s.windowSize]
	}
	// blockOut may alias s.in, so consume the input only now.
	s.advance(3 + need)

	if last {
		if s.fh.HasContentSize && s.frameOut != s.fh.ContentSize {
			return out, false, fmt.Errorf("%w: got %d bytes, declared size %d", ErrMalformedHeader, s.frameOut, s.fh.ContentSize)
		}
		if s.hasher != nil {
			s.state = stateCRC
		} else {
			s.state = stateMagic
		}
	}
	return out, true, nil
}

// advance drops n consumed bytes from the input buffer.
func (s *DecodeSession) advance(n int) {
	copy(s.in, s.in[n:])
	s.in = s.in[:len(s.in)-n]
}
