package zstd

import (
	"encoding/binary"
	"hash"

	"github.com/andybalholm/zstd/matchfinder"
	"github.com/pierrec/xxHash/xxHash64"
)

// An Encoder implements the matchfinder.Encoder interface, writing the
// zstd frame format.
type Encoder struct {
	// WindowSize is the window size to declare in the frame header.
	// It should be at least as large as the match finder's maximum
	// distance. If it is zero, 1<<23 is used.
	WindowSize int

	// Checksum enables the trailing content checksum.
	Checksum bool

	// Dict declares the dictionary the stream was compressed with, if
	// any. The match finder must have been preloaded with its content.
	Dict *Dictionary

	block       *blockEnc
	wroteHeader bool
	hasher      hash.Hash64
}

func (e *Encoder) Reset() {
	if e.block == nil {
		e.block = new(blockEnc)
		e.block.init()
	} else {
		e.block.reset(nil)
	}
	e.block.initNewEncode()
	e.wroteHeader = false
	e.hasher = nil
}

func (e *Encoder) Encode(dst []byte, src []byte, matches []matchfinder.Match, lastBlock bool) []byte {
	initPredefined()
	if e.block == nil {
		e.block = new(blockEnc)
		e.block.init()
	} else {
		e.block.reset(nil)
	}

	if !e.wroteHeader {
		windowSize := e.WindowSize
		if windowSize == 0 {
			windowSize = 1 << 23
		}
		fh := frameHeader{
			WindowSize: uint32(windowSize),
			Checksum:   e.Checksum,
		}
		if e.Dict != nil {
			fh.DictID = e.Dict.id
		}
		dst, _ = fh.appendTo(dst)
		e.block.initNewEncode()
		if e.Dict != nil {
			for i, o := range e.Dict.offsets {
				e.block.recentOffsets[i] = uint32(o)
			}
		}
		if e.Checksum {
			e.hasher = xxHash64.New(0)
		}
		e.wroteHeader = true
	}

	blk := e.block
	blk.last = lastBlock

	if len(src) > 1 && allOneByte(src) {
		blk.encodeRLE(src[0], uint32(len(src)))
	} else {
		blk.pushOffsets()
		blk.size = len(src)

		pos := 0
		for _, m := range matches {
			blk.literals = append(blk.literals, src[pos:pos+m.Unmatched]...)
			if m.Length == 0 {
				blk.extraLits = m.Unmatched
				break
			}
			blk.sequences = append(blk.sequences, seq{
				litLen:   uint32(m.Unmatched),
				offset:   uint32(m.Distance + 3),
				matchLen: uint32(m.Length - 3),
			})
			pos += m.Unmatched + m.Length
		}

		err := blk.encode(src, false, false)
		switch err {
		case errIncompressible:
			blk.popOffsets()
			blk.reset(nil)
			// reset clears the last-block flag.
			blk.last = lastBlock
			err = blk.encodeLits(src, false)
			if err != nil {
				panic(err)
			}
		case nil:
		default:
			panic(err)
		}
	}

	if e.hasher != nil {
		e.hasher.Write(src)
	}
	dst = append(dst, blk.output...)
	if lastBlock && e.hasher != nil {
		var crc [4]byte
		binary.LittleEndian.PutUint32(crc[:], uint32(e.hasher.Sum64()))
		dst = append(dst, crc[:]...)
	}
	return dst
}

func allOneByte(b []byte) bool {
	v := b[0]
	for _, c := range b[1:] {
		if c != v {
			return false
		}
	}
	return true
}
