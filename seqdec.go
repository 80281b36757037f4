// Copyright 2019+ Klaus Post. All rights reserved.
// License information can be found in the LICENSE file.
// Based on work by Yann Collet, released under BSD License.

package zstd

import (
	"errors"
	"fmt"
	"io"
)

type seq struct {
	litLen   uint32
	matchLen uint32
	offset   uint32

	// Codes are stored here for the encoder
	// so they only have to be looked up once.
	llCode, mlCode, ofCode uint8
}

func (s seq) String() string {
	if s.offset <= 3 {
		if s.offset == 0 {
			return fmt.Sprint("litLen:", s.litLen, ", matchLen:", s.matchLen+zstdMinMatch, ", offset: INVALID (0)")
		}
		return fmt.Sprint("litLen:", s.litLen, ", matchLen:", s.matchLen+zstdMinMatch, ", offset:", s.offset, " (repeat)")
	}
	return fmt.Sprint("litLen:", s.litLen, ", matchLen:", s.matchLen+zstdMinMatch, ", offset:", s.offset-3, " (new)")
}

type seqCompMode uint8

const (
	compModePredefined seqCompMode = iota
	compModeRLE
	compModeFSE
	compModeRepeat
)

type sequenceDec struct {
	// decoder keeps track of the current state and updates it from the bitstream.
	fse   *fseDecoder
	state fseState
}

// init the state of the decoder with input from stream.
func (s *sequenceDec) init(br *bitReader) error {
	if s.fse == nil {
		return errors.New("sequence decoder not defined")
	}
	s.state.init(br, s.fse.actualTableLog, s.fse.dt[:1<<s.fse.actualTableLog])
	return nil
}

// sequenceDecs contains all 3 sequence decoders and their state.
type sequenceDecs struct {
	litLengths   sequenceDec
	offsets      sequenceDec
	matchLengths sequenceDec

	prevOffset [3]int
	literals   []byte
	hist       []byte
	out        []byte
	windowSize int
	maxOut     int
	maxBits    uint8

	// Table storage for the three channels, so repeat mode can refer
	// to the table of the previous block.
	scratch [3]fseDecoder
}

// initialize all 3 decoders from the stream input.
func (s *sequenceDecs) initialize(br *bitReader, literals, out []byte) error {
	if err := s.litLengths.init(br); err != nil {
		return errors.New("litLengths:" + err.Error())
	}
	if err := s.offsets.init(br); err != nil {
		return errors.New("offsets:" + err.Error())
	}
	if err := s.matchLengths.init(br); err != nil {
		return errors.New("matchLengths:" + err.Error())
	}
	s.literals = literals
	s.out = out
	s.maxBits = s.litLengths.fse.maxBits + s.offsets.fse.maxBits + s.matchLengths.fse.maxBits
	return nil
}

// decode sequences from the stream, appending the expanded output to s.out.
func (s *sequenceDecs) decode(seqs int, br *bitReader) error {
	for i := seqs - 1; i >= 0; i-- {
		if br.overread() {
			printf("reading sequence %d, exceeded available data\n", seqs-i)
			return io.ErrUnexpectedEOF
		}
		llState := s.litLengths.state.state
		mlState := s.matchLengths.state.state
		ofState := s.offsets.state.state

		// Extra bits are stored in reverse order: offset, match length,
		// literal length.
		br.fill()
		mo := ofState.baselineInt() + br.getBits(ofState.addBits())
		if s.maxBits > 32 {
			br.fill()
		}
		ml := mlState.baselineInt() + br.getBits(mlState.addBits())
		ll := llState.baselineInt() + br.getBits(llState.addBits())

		mo = s.adjustOffset(mo, ll, ofState.addBits())
		if debugSequences {
			println("Seq", seqs-i-1, "Litlen:", ll, "mo:", mo, "(abs) ml:", ml)
		}

		if ml > maxMatchLen {
			return fmt.Errorf("match len (%d) bigger than max allowed length", ml)
		}
		if err := s.execute(ll, mo, ml); err != nil {
			return err
		}
		if len(s.out) > s.maxOut {
			return fmt.Errorf("output (%d) bigger than max block size (%d)", len(s.out), s.maxOut)
		}

		if i == 0 {
			break
		}
		// Update all 3 states at once.
		br.fill()
		s.litLengths.state.next(br)
		s.matchLengths.state.next(br)
		s.offsets.state.next(br)
	}

	// Add final literals
	s.out = append(s.out, s.literals...)
	s.literals = nil
	if len(s.out) > s.maxOut {
		return fmt.Errorf("output (%d) bigger than max block size (%d)", len(s.out), s.maxOut)
	}
	return nil
}

// execute copies ll literals and then ml bytes starting mo bytes back,
// reaching into the history window if needed.
func (s *sequenceDecs) execute(ll, mo, ml int) error {
	out := s.out
	if ll > len(s.literals) {
		return fmt.Errorf("unexpected literal count, want %d bytes, but only %d is available", ll, len(s.literals))
	}
	out = append(out, s.literals[:ll]...)
	s.literals = s.literals[ll:]

	if mo == 0 && ml > 0 {
		return fmt.Errorf("zero matchoff and matchlen (%d) > 0", ml)
	}
	if mo > len(out)+len(s.hist) || mo > s.windowSize {
		return fmt.Errorf("match offset (%d) bigger than current history (%d)", mo, len(out)+len(s.hist))
	}

	// Copy the part of the match that is in the history buffer.
	if v := mo - len(out); v > 0 {
		n := ml
		if n > v {
			n = v
		}
		start := len(s.hist) - v
		out = append(out, s.hist[start:start+n]...)
		ml -= n
	}

	// The rest of the match is within out; copies may overlap.
	for ml > 0 {
		src := out[len(out)-mo:]
		if len(src) > ml {
			src = src[:ml]
		}
		out = append(out, src...)
		ml -= len(src)
	}
	s.out = out
	return nil
}

// adjustOffset applies the repeat offset rules and updates the
// recent offsets.
func (s *sequenceDecs) adjustOffset(offset, litLen int, offsetB uint8) int {
	if offsetB > 1 {
		s.prevOffset[2] = s.prevOffset[1]
		s.prevOffset[1] = s.prevOffset[0]
		s.prevOffset[0] = offset - 3
		return offset - 3
	}

	if litLen == 0 {
		// There is an exception though, when current sequence's literals_length = 0.
		// In this case, repeated offsets are shifted by one, so an offset_value of 1 means Repeated_Offset2,
		// an offset_value of 2 means Repeated_Offset3, and an offset_value of 3 means Repeated_Offset1 - 1_byte.
		offset++
	}

	if offset == 1 {
		return s.prevOffset[0]
	}
	var temp int
	if offset == 4 {
		temp = s.prevOffset[0] - 1
	} else {
		temp = s.prevOffset[offset-1]
	}

	if temp == 0 {
		// 0 is not valid; input is corrupted; force offset to 1
		println("WARNING: temp was 0")
		temp = 1
	}

	if offset != 2 {
		s.prevOffset[2] = s.prevOffset[1]
	}
	s.prevOffset[1] = s.prevOffset[0]
	s.prevOffset[0] = temp
	return temp
}
