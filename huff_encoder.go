// Copyright 2019+ Klaus Post. All rights reserved.
// License information can be found in the LICENSE file.
// Based on work by Yann Collet, released under BSD License.

package zstd

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// huffMaxBits is the maximum code length for literals.
const huffMaxBits = 11

// errUseRLE is returned when all literals are a single value.
var errUseRLE = errors.New("use RLE")

// huffCode is the canonical code assigned to a symbol.
type huffCode struct {
	val   uint16
	nBits uint8
}

type huffNode struct {
	count  uint32
	parent int32
	nBits  uint8
	symbol uint8
}

// huffEncoder builds and serializes the Huffman table used for
// compressing literals, and encodes the literal streams.
type huffEncoder struct {
	tableLog  uint8
	symbolLen int // 1 + highest symbol with a nonzero count
	count     [256]uint32
	codes     [256]huffCode

	// Encoder for the table weights.
	fse fseEncoder

	// scratch
	nodes    []huffNode
	weights  [256]uint8
	wScratch []byte
}

// histogram counts the symbols of src and returns the count of
// the most common symbol.
func (e *huffEncoder) histogram(src []byte) (maxCount int) {
	e.count = [256]uint32{}
	for _, v := range src {
		e.count[v]++
	}
	e.symbolLen = 0
	for i, v := range e.count {
		if v == 0 {
			continue
		}
		e.symbolLen = i + 1
		if int(v) > maxCount {
			maxCount = int(v)
		}
	}
	return maxCount
}

// buildTable creates length-limited canonical codes from the histogram.
// It returns errUseRLE if only one symbol is present, and
// errIncompressible if no usable code lengths can be assigned.
func (e *huffEncoder) buildTable() error {
	nodes := e.nodes[:0]
	for i, c := range e.count[:e.symbolLen] {
		if c > 0 {
			nodes = append(nodes, huffNode{count: c, symbol: uint8(i), parent: -1})
		}
	}
	numLeaves := len(nodes)
	if numLeaves == 0 {
		return errIncompressible
	}
	if numLeaves == 1 {
		e.nodes = nodes[:0]
		return errUseRLE
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].count < nodes[j].count })

	// Standard two-queue merge: the leaves are sorted, and internal
	// nodes are created in nondecreasing count order, so the smallest
	// unused node is always at the front of one of the queues.
	leafPos, nodePos := 0, numLeaves
	pick := func() int {
		if leafPos < numLeaves && (nodePos >= len(nodes) || nodes[leafPos].count <= nodes[nodePos].count) {
			leafPos++
			return leafPos - 1
		}
		nodePos++
		return nodePos - 1
	}
	for i := 0; i < numLeaves-1; i++ {
		a := pick()
		b := pick()
		nodes = append(nodes, huffNode{count: nodes[a].count + nodes[b].count, parent: -1})
		p := int32(len(nodes) - 1)
		nodes[a].parent = p
		nodes[b].parent = p
	}

	// Parents always have higher indexes, so a single backward pass
	// resolves all depths.
	nodes[len(nodes)-1].nBits = 0
	for i := len(nodes) - 2; i >= 0; i-- {
		nodes[i].nBits = nodes[nodes[i].parent].nBits + 1
	}

	// Limit the depth and repair the Kraft sum.
	const kraftOne = 1 << huffMaxBits
	k := 0
	for i := range nodes[:numLeaves] {
		if nodes[i].nBits > huffMaxBits {
			nodes[i].nBits = huffMaxBits
		}
		k += 1 << (huffMaxBits - nodes[i].nBits)
	}
	for k > kraftOne {
		adjusted := false
		for i := 0; i < numLeaves && k > kraftOne; i++ {
			if nodes[i].nBits < huffMaxBits {
				k -= 1 << (huffMaxBits - nodes[i].nBits - 1)
				nodes[i].nBits++
				adjusted = true
			}
		}
		if !adjusted {
			e.nodes = nodes[:0]
			return errIncompressible
		}
	}
	for k < kraftOne {
		adjusted := false
		for i := numLeaves - 1; i >= 0; i-- {
			gain := 1 << (huffMaxBits - nodes[i].nBits)
			if nodes[i].nBits > 1 && k+gain <= kraftOne {
				nodes[i].nBits--
				k += gain
				adjusted = true
				break
			}
		}
		if !adjusted {
			e.nodes = nodes[:0]
			return errIncompressible
		}
	}

	maxNbBits := uint8(0)
	for i := range nodes[:numLeaves] {
		if nodes[i].nBits > maxNbBits {
			maxNbBits = nodes[i].nBits
		}
	}
	e.tableLog = maxNbBits

	// Assign canonical values: the longest codes start at zero, and
	// values increase in symbol order within each length.
	var nbPerRank [huffMaxBits + 1]uint16
	for i := range nodes[:numLeaves] {
		nbPerRank[nodes[i].nBits]++
	}
	var valPerRank [huffMaxBits + 1]uint16
	{
		min := uint16(0)
		for n := maxNbBits; n > 0; n-- {
			valPerRank[n] = min
			min += nbPerRank[n]
			min >>= 1
		}
	}
	var lengths [256]uint8
	for i := range nodes[:numLeaves] {
		lengths[nodes[i].symbol] = nodes[i].nBits
	}
	e.codes = [256]huffCode{}
	for s := 0; s < e.symbolLen; s++ {
		l := lengths[s]
		if l == 0 {
			continue
		}
		e.codes[s] = huffCode{val: valPerRank[l], nBits: l}
		valPerRank[l]++
	}
	e.nodes = nodes[:0]
	return nil
}

// writeTable serializes the code weights, either as an FSE compressed
// stream or as raw 4 bit values, whichever is smaller.
func (e *huffEncoder) writeTable(dst []byte) ([]byte, error) {
	// The weight of the last present symbol is implied by the others.
	numWeights := e.symbolLen - 1
	if numWeights < 1 {
		return nil, errors.New("writeTable: no weights")
	}
	for i := 0; i < numWeights; i++ {
		w := uint8(0)
		if nb := e.codes[i].nBits; nb > 0 {
			w = e.tableLog + 1 - nb
		}
		e.weights[i] = w
	}
	weights := e.weights[:numWeights]

	directSize := 1 + (numWeights+1)/2

	fseStream := e.compressWeights(weights)
	if fseStream != nil && len(fseStream) < 128 && 1+len(fseStream) < directSize {
		dst = append(dst, uint8(len(fseStream)))
		return append(dst, fseStream...), nil
	}

	if numWeights > 128 {
		// Can't be stored directly; the table is too expensive anyway.
		return nil, errIncompressible
	}
	dst = append(dst, uint8(127+numWeights))
	for i := 0; i < numWeights; i += 2 {
		b := weights[i] << 4
		if i+1 < numWeights {
			b |= weights[i+1] & 0xF
		}
		dst = append(dst, b)
	}
	return dst, nil
}

// compressWeights encodes the weights with a two state FSE stream,
// returning nil if FSE encoding is not usable for them.
func (e *huffEncoder) compressWeights(weights []uint8) []byte {
	if len(weights) < 4 {
		return nil
	}
	s := &e.fse
	s.tableLogMax = 6
	hist := s.Histogram()
	for i := range hist[:16] {
		hist[i] = 0
	}
	maxSym, maxCount := 0, 0
	for _, w := range weights {
		hist[w]++
	}
	for i, v := range hist[:16] {
		if v == 0 {
			continue
		}
		maxSym = i
		if int(v) > maxCount {
			maxCount = int(v)
		}
	}
	s.HistogramFinished(uint8(maxSym), maxCount)
	s.reUsed = false
	s.preDefined = false
	if err := s.normalizeCount(len(weights)); err != nil {
		return nil
	}
	if s.useRLE {
		// A single weight value; raw nibbles are cheap enough.
		return nil
	}

	out, err := s.writeCount(e.wScratch[:0])
	if err != nil {
		return nil
	}

	var bw bitWriter
	bw.reset(out)
	var c1, c2 cState
	tt := s.ct.symbolTT[:16]
	tl := s.actualTableLog
	n := len(weights)
	if n&1 == 1 {
		c1.init(&bw, &s.ct, tl, tt[weights[n-1]])
		c2.init(&bw, &s.ct, tl, tt[weights[n-2]])
		c1.encode(tt[weights[n-3]])
		n -= 3
	} else {
		c2.init(&bw, &s.ct, tl, tt[weights[n-1]])
		c1.init(&bw, &s.ct, tl, tt[weights[n-2]])
		n -= 2
	}
	for n > 0 {
		bw.flush32()
		c2.encode(tt[weights[n-1]])
		c1.encode(tt[weights[n-2]])
		n -= 2
	}
	bw.flush32()
	c2.flush(tl)
	c1.flush(tl)
	if err := bw.close(); err != nil {
		return nil
	}
	e.wScratch = bw.out
	return bw.out
}

// compress1X encodes src as a single Huffman bitstream.
func (e *huffEncoder) compress1X(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errIncompressible
	}
	var bw bitWriter
	bw.reset(dst)

	n := len(src)
	n -= n & 3
	// Encode the tail so the stream decodes to the original order.
	for i := len(src) & 3; i > 0; i-- {
		e.encSymbol(&bw, src[n+i-1])
	}
	if e.tableLog <= 8 {
		for ; n > 0; n -= 4 {
			tmp := src[n-4 : n]
			bw.flush32()
			e.encTwoSymbols(&bw, tmp[3], tmp[2])
			e.encTwoSymbols(&bw, tmp[1], tmp[0])
		}
	} else {
		for ; n > 0; n -= 4 {
			tmp := src[n-4 : n]
			bw.flush32()
			e.encTwoSymbols(&bw, tmp[3], tmp[2])
			bw.flush32()
			e.encTwoSymbols(&bw, tmp[1], tmp[0])
		}
	}
	if err := bw.close(); err != nil {
		return nil, err
	}
	return bw.out, nil
}

// compress4X encodes src as four concatenated streams with a jump table.
func (e *huffEncoder) compress4X(dst, src []byte) ([]byte, error) {
	if len(src) < 12 {
		return nil, errIncompressible
	}
	segmentSize := (len(src) + 3) / 4

	var sixZeros [6]byte
	offsetIdx := len(dst)
	dst = append(dst, sixZeros[:]...)

	for i := 0; i < 4; i++ {
		toDo := src
		if len(toDo) > segmentSize {
			toDo = toDo[:segmentSize]
		}
		src = src[len(toDo):]

		idx := len(dst)
		var err error
		dst, err = e.compress1X(dst, toDo)
		if err != nil {
			return nil, err
		}
		if len(dst)-idx > math.MaxUint16 {
			return nil, errIncompressible
		}
		// Write the compressed length as little endian before the block.
		if i < 3 {
			// The last length is implied.
			length := len(dst) - idx
			dst[i*2+offsetIdx] = byte(length)
			dst[i*2+offsetIdx+1] = byte(length >> 8)
		}
	}

	return dst, nil
}

func (e *huffEncoder) encSymbol(bw *bitWriter, symbol byte) {
	enc := e.codes[symbol]
	bw.bitContainer |= uint64(enc.val) << (bw.nBits & 63)
	if debugAsserts && enc.nBits == 0 {
		panic(fmt.Sprintf("symbol %d has zero length code", symbol))
	}
	bw.nBits += enc.nBits
}

func (e *huffEncoder) encTwoSymbols(bw *bitWriter, av, bv byte) {
	encA := e.codes[av]
	encB := e.codes[bv]
	sh := bw.nBits & 63
	combined := uint64(encA.val) | (uint64(encB.val) << (encA.nBits & 63))
	bw.bitContainer |= combined << sh
	if debugAsserts && (encA.nBits == 0 || encB.nBits == 0) {
		panic("symbol with zero length code")
	}
	bw.nBits += encA.nBits + encB.nBits
}

// estimateSize returns the encoded size in bits, excluding the table.
func (e *huffEncoder) estimateSize(count *[256]uint32) int {
	bits := 0
	for i, c := range count[:e.symbolLen] {
		bits += int(e.codes[i].nBits) * int(c)
	}
	return bits
}
