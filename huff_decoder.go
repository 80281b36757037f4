// Copyright 2019+ Klaus Post. All rights reserved.
// License information can be found in the LICENSE file.
// Based on work by Yann Collet, released under BSD License.

package zstd

import (
	"errors"
	"fmt"
	"io"
)

// huffDecoder holds a Huffman decoding table for literals.
// The table survives across blocks so treeless literal blocks
// can reuse it.
type huffDecoder struct {
	tableLog uint8
	loaded   bool
	dt       [1 << huffMaxBits]uint16 // nbBits | symbol<<8

	// Decoder for the table weights.
	fse fseDecoder

	weights [256]uint8
}

// readTable reads the serialized Huffman table from in and returns
// the bytes following it.
func (d *huffDecoder) readTable(in []byte) ([]byte, error) {
	if len(in) < 1 {
		return nil, io.ErrUnexpectedEOF
	}
	hb := in[0]
	in = in[1:]

	var numWeights int
	if hb >= 128 {
		// Raw 4 bit weights.
		numWeights = int(hb) - 127
		nBytes := (numWeights + 1) / 2
		if len(in) < nBytes {
			return nil, io.ErrUnexpectedEOF
		}
		for i := 0; i < numWeights; i++ {
			b := in[i/2]
			if i&1 == 0 {
				d.weights[i] = b >> 4
			} else {
				d.weights[i] = b & 0xF
			}
		}
		in = in[nBytes:]
	} else {
		// FSE compressed weights.
		size := int(hb)
		if len(in) < size {
			return nil, io.ErrUnexpectedEOF
		}
		var err error
		numWeights, err = d.decodeWeights(in[:size])
		if err != nil {
			return nil, err
		}
		in = in[size:]
	}

	if err := d.buildTable(d.weights[:numWeights]); err != nil {
		return nil, err
	}
	d.loaded = true
	return in, nil
}

// decodeWeights decodes FSE compressed weights into d.weights and
// returns how many were found.
func (d *huffDecoder) decodeWeights(in []byte) (int, error) {
	s := &d.fse
	b := byteReader{b: in, off: 0}
	if err := s.readNCount(&b, 15); err != nil {
		return 0, err
	}
	if s.actualTableLog > 6 {
		return 0, fmt.Errorf("invalid weight table log (%d) > 6", s.actualTableLog)
	}
	if err := s.buildDtable(); err != nil {
		return 0, err
	}

	var br bitReader
	if err := br.init(b.unread()); err != nil {
		return 0, err
	}
	dt := s.dt[:1<<s.actualTableLog]

	// Two interleaved states decode alternating symbols.
	br.fill()
	s1 := dt[br.getBits(s.actualTableLog)]
	s2 := dt[br.getBits(s.actualTableLog)]

	n := 0
	add := func(sym uint8) error {
		if n >= len(d.weights)-1 {
			return errors.New("corrupt weight stream: too many weights")
		}
		d.weights[n] = sym
		n++
		return nil
	}
	next := func(state decSymbol) decSymbol {
		lowBits := uint16(br.getBits(state.nbBits()))
		return dt[state.newState()+lowBits]
	}
	for {
		if br.finished() && s1.nbBits() > 0 {
			if err := add(s1.addBits()); err != nil {
				return 0, err
			}
			if err := add(s2.addBits()); err != nil {
				return 0, err
			}
			break
		}
		br.fill()
		if err := add(s1.addBits()); err != nil {
			return 0, err
		}
		s1 = next(s1)
		if br.finished() && s2.nbBits() > 0 {
			if err := add(s2.addBits()); err != nil {
				return 0, err
			}
			if err := add(s1.addBits()); err != nil {
				return 0, err
			}
			break
		}
		if err := add(s2.addBits()); err != nil {
			return 0, err
		}
		s2 = next(s2)
	}
	if br.overread() {
		return 0, errors.New("corrupt weight stream: overread")
	}
	return n, nil
}

// buildTable fills the decoding table from the weights of all symbols
// except the last one, whose weight is implied.
func (d *huffDecoder) buildTable(weights []uint8) error {
	total := uint32(0)
	for _, w := range weights {
		if w > huffMaxBits {
			return fmt.Errorf("invalid huffman weight (%d)", w)
		}
		if w > 0 {
			total += 1 << (w - 1)
		}
	}
	if total == 0 {
		return errors.New("no huffman weights")
	}
	tableLog := highBits(total) + 1
	if tableLog > huffMaxBits {
		return fmt.Errorf("huffman table log (%d) too large", tableLog)
	}
	rest := (uint32(1) << tableLog) - total
	if rest&(rest-1) != 0 {
		return errors.New("corrupt huffman weights")
	}
	lastWeight := highBits(rest) + 1
	if int(lastWeight) > int(tableLog) {
		return errors.New("corrupt huffman weights")
	}
	weights = append(weights, uint8(lastWeight))

	d.tableLog = uint8(tableLog)
	pos := 0
	for w := uint8(1); w <= uint8(tableLog); w++ {
		nBits := uint8(tableLog) + 1 - w
		cells := 1 << (w - 1)
		for sym, sw := range weights {
			if sw != w {
				continue
			}
			entry := uint16(nBits) | uint16(sym)<<8
			for i := 0; i < cells; i++ {
				d.dt[pos] = entry
				pos++
			}
		}
	}
	if pos != 1<<tableLog {
		return errors.New("corrupt huffman weights: incomplete table")
	}
	return nil
}

// decompress1X decodes a single stream, appending to dst.
// The output may not exceed maxDecoded bytes.
func (d *huffDecoder) decompress1X(dst, src []byte, maxDecoded int) ([]byte, error) {
	var br bitReader
	if err := br.init(src); err != nil {
		return nil, err
	}
	dt := d.dt[:1<<d.tableLog]
	tl := d.tableLog
	for !br.finished() {
		if len(dst) >= maxDecoded {
			return nil, errors.New("literal output too large")
		}
		br.fill()
		v := dt[br.peekBitsFast(tl)]
		br.advance(uint8(v))
		dst = append(dst, uint8(v>>8))
	}
	if err := br.close(); err != nil {
		return nil, err
	}
	return dst, nil
}

// decompress4X decodes four concatenated streams with a leading jump
// table, regenerating exactly dstSize bytes.
func (d *huffDecoder) decompress4X(dst, src []byte, dstSize int) ([]byte, error) {
	if len(src) < 6+3 {
		return nil, io.ErrUnexpectedEOF
	}
	if dstSize < 4 {
		return nil, errors.New("four stream block too small")
	}
	lengths := [4]int{
		int(src[0]) | int(src[1])<<8,
		int(src[2]) | int(src[3])<<8,
		int(src[4]) | int(src[5])<<8,
	}
	src = src[6:]
	lengths[3] = len(src) - lengths[0] - lengths[1] - lengths[2]
	if lengths[3] <= 0 {
		return nil, errors.New("corrupt jump table")
	}

	segSize := (dstSize + 3) / 4
	for i := 0; i < 4; i++ {
		expect := segSize
		if i == 3 {
			expect = dstSize - 3*segSize
		}
		if expect < 0 {
			return nil, errors.New("corrupt four stream block")
		}
		before := len(dst)
		var err error
		dst, err = d.decompress1X(dst, src[:lengths[i]], before+expect)
		if err != nil {
			return nil, err
		}
		if len(dst)-before != expect {
			return nil, fmt.Errorf("stream %d decoded %d bytes, expected %d", i, len(dst)-before, expect)
		}
		src = src[lengths[i]:]
	}
	return dst, nil
}
