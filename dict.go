// Copyright 2019+ Klaus Post. All rights reserved.
// License information can be found in the LICENSE file.
// Based on work by Yann Collet, released under BSD License.

package zstd

import (
	"encoding/binary"
	"fmt"
)

const dictMagic = 0xec30a437

// A Dictionary is shared context for compressing or decompressing many
// small, similar payloads: seed content for the window plus
// precomputed entropy tables. It is immutable after construction and
// safe for concurrent use by any number of sessions.
type Dictionary struct {
	id         uint32
	content    []byte
	offsets    [3]int
	hasEntropy bool

	litDec huffDecoder
	llDec  fseDecoder
	ofDec  fseDecoder
	mlDec  fseDecoder
}

// ID returns the dictionary ID declared in frame headers, or 0 for a
// raw content dictionary.
func (d *Dictionary) ID() uint32 {
	if d == nil {
		return 0
	}
	return d.id
}

// ContentSize returns the number of seed bytes.
func (d *Dictionary) ContentSize() int {
	if d == nil {
		return 0
	}
	return len(d.content)
}

// NewDictionary loads a dictionary in the structured format produced
// by zstd's trainer. Data without the dictionary magic number is used
// directly as a raw content dictionary.
func NewDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{offsets: [3]int{1, 4, 8}}
	if len(data) < 8 || binary.LittleEndian.Uint32(data) != dictMagic {
		d.content = append([]byte(nil), data...)
		return d, nil
	}
	initPredefined()
	d.id = binary.LittleEndian.Uint32(data[4:])
	if d.id == 0 {
		return nil, fmt.Errorf("%w: zero dictionary ID", ErrMalformedHeader)
	}
	data = data[8:]

	// Literals table.
	var err error
	data, err = d.litDec.readTable(data)
	if err != nil {
		return nil, fmt.Errorf("loading literal table: %w", err)
	}

	// Offset, match length, and literal length tables, in that order.
	for _, t := range []struct {
		dec    *fseDecoder
		index  tableIndex
		maxLog uint8
	}{
		{&d.ofDec, tableOffsets, 8},
		{&d.mlDec, tableMatchLengths, 9},
		{&d.llDec, tableLiteralLengths, 9},
	} {
		br := byteReader{b: data, off: 0}
		if err := t.dec.readNCount(&br, uint16(maxTableSymbol[t.index])); err != nil {
			return nil, fmt.Errorf("loading %v table: %w", t.index, err)
		}
		if t.dec.actualTableLog > t.maxLog {
			return nil, fmt.Errorf("%w: %v table log %d too large", ErrInvalidDistribution, t.index, t.dec.actualTableLog)
		}
		if err := t.dec.buildDtable(); err != nil {
			return nil, fmt.Errorf("loading %v table: %w", t.index, err)
		}
		if err := t.dec.transform(symbolTableX[t.index]); err != nil {
			return nil, fmt.Errorf("loading %v table: %w", t.index, err)
		}
		data = br.unread()
	}

	if len(data) < 12 {
		return nil, fmt.Errorf("%w: dictionary too short for recent offsets", ErrMalformedHeader)
	}
	for i := range d.offsets {
		o := binary.LittleEndian.Uint32(data[i*4:])
		if o == 0 {
			return nil, fmt.Errorf("%w: zero recent offset in dictionary", ErrMalformedHeader)
		}
		d.offsets[i] = int(o)
	}
	data = data[12:]

	d.content = append([]byte(nil), data...)
	for _, o := range d.offsets {
		if o > len(d.content) {
			return nil, fmt.Errorf("%w: dictionary offset %d larger than content", ErrMalformedHeader, o)
		}
	}
	d.hasEntropy = true
	return d, nil
}
