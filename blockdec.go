// Copyright 2019+ Klaus Post. All rights reserved.
// License information can be found in the LICENSE file.
// Based on work by Yann Collet, released under BSD License.

package zstd

import (
	"fmt"
)

type blockType uint8

//go:generate stringer -type=blockType,literalsBlockType,seqCompMode,tableIndex

const (
	blockTypeRaw blockType = iota
	blockTypeRLE
	blockTypeCompressed
	blockTypeReserved
)

type literalsBlockType uint8

const (
	literalsBlockRaw literalsBlockType = iota
	literalsBlockRLE
	literalsBlockCompressed
	literalsBlockTreeless
)

const (
	// maxCompressedBlockSize is the biggest allowed compressed block size (128KB)
	maxCompressedBlockSize = 128 << 10

	// Maximum possible block size (all Raw+Uncompressed).
	maxBlockSize = (1 << 21) - 1

	// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#literals_section_header
	maxCompressedLiteralSize = 1 << 18
	maxRLELiteralSize        = 1 << 20
	maxMatchLen              = 131074
	maxSequences             = 0x7f00 + 0xffff

	// We support slightly less than the reference decoder to be able to
	// use ints on 32 bit archs.
	maxOffsetBits = 30
)

var errBlockTooSmall = fmt.Errorf("block too small")

// blockDec decodes the compressed blocks of a frame.
// Entropy state persists between blocks, so repeat tables and treeless
// literals can refer to earlier blocks of the same frame.
type blockDec struct {
	huf        huffDecoder
	seq        sequenceDecs
	literalBuf []byte
	maxRegen   int
}

// frameReset prepares the decoder for the blocks of a new frame.
func (b *blockDec) frameReset(windowSize int) {
	initPredefined()
	b.huf.loaded = false
	b.seq.litLengths.fse = nil
	b.seq.offsets.fse = nil
	b.seq.matchLengths.fse = nil
	b.seq.prevOffset = [3]int{1, 4, 8}
	b.seq.windowSize = windowSize
	b.maxRegen = windowSize
	if b.maxRegen > maxCompressedBlockSize {
		b.maxRegen = maxCompressedBlockSize
	}
}

// decodeCompressed decodes a compressed block, appending the regenerated
// bytes to dst. hist is the window available for back references.
func (b *blockDec) decodeCompressed(dst, in, hist []byte) ([]byte, error) {
	literals, in, err := b.decodeLiterals(in)
	if err != nil {
		return nil, err
	}

	// Decode Sequences
	// https://github.com/facebook/zstd/blob/dev/doc/zstd_compression_format.md#sequences-section
	if len(in) < 1 {
		return nil, errBlockTooSmall
	}
	seqHeader := in[0]
	var nSeqs int
	switch {
	case seqHeader < 128:
		nSeqs = int(seqHeader)
		in = in[1:]
	case seqHeader < 255:
		if len(in) < 2 {
			return nil, errBlockTooSmall
		}
		nSeqs = int(seqHeader-128)<<8 | int(in[1])
		in = in[2:]
	default:
		if len(in) < 3 {
			return nil, errBlockTooSmall
		}
		nSeqs = 0x7f00 + int(in[1]) + (int(in[2]) << 8)
		in = in[3:]
	}
	if nSeqs == 0 {
		if len(in) != 0 {
			return nil, fmt.Errorf("sequenceDecs: %d bytes after no sequences", len(in))
		}
		if len(literals) > b.maxRegen {
			return nil, fmt.Errorf("output (%d) bigger than max block size (%d)", len(literals), b.maxRegen)
		}
		return append(dst, literals...), nil
	}
	if nSeqs > maxSequences {
		return nil, fmt.Errorf("too many sequences (%d)", nSeqs)
	}

	if len(in) < 1 {
		return nil, errBlockTooSmall
	}
	br := byteReader{b: in, off: 0}
	compMode := br.Uint8()
	br.advance(1)
	if debugDecoder {
		printf("Compression modes: 0b%b", compMode)
	}
	if compMode&3 != 0 {
		return nil, fmt.Errorf("corrupt block: reserved bits not zero")
	}
	maxLog := [3]uint8{9, 8, 9}
	for i := uint(0); i < 3; i++ {
		mode := seqCompMode((compMode >> (6 - i*2)) & 3)
		if debugDecoder {
			println("Table", tableIndex(i), "is", mode)
		}
		var seq *sequenceDec
		switch tableIndex(i) {
		case tableLiteralLengths:
			seq = &b.seq.litLengths
		case tableOffsets:
			seq = &b.seq.offsets
		case tableMatchLengths:
			seq = &b.seq.matchLengths
		}
		switch mode {
		case compModePredefined:
			seq.fse = &fsePredef[i]
		case compModeRLE:
			if br.remain() < 1 {
				return nil, errBlockTooSmall
			}
			v := br.Uint8()
			br.advance(1)
			symb, err := decSymbolValue(v, symbolTableX[i])
			if err != nil {
				printf("RLE Transform table (%v) error: %v", tableIndex(i), err)
				return nil, err
			}
			dec := &b.seq.scratch[i]
			dec.setRLE(symb)
			seq.fse = dec
		case compModeFSE:
			if debugDecoder {
				println("Reading table for", tableIndex(i))
			}
			dec := &b.seq.scratch[i]
			if err := dec.readNCount(&br, uint16(maxTableSymbol[i])); err != nil {
				println("Read table error:", err)
				return nil, err
			}
			if dec.actualTableLog > maxLog[i] {
				return nil, fmt.Errorf("%w: table log (%d) too big for %v", ErrInvalidDistribution, dec.actualTableLog, tableIndex(i))
			}
			if err := dec.buildDtable(); err != nil {
				println("Building table error:", err)
				return nil, err
			}
			if err := dec.transform(symbolTableX[i]); err != nil {
				println("Transform table error:", err)
				return nil, err
			}
			if debugDecoder {
				println("Read table ok", "symbolLen:", dec.symbolLen)
			}
			seq.fse = dec
		case compModeRepeat:
			if seq.fse == nil {
				return nil, fmt.Errorf("repeat table for %v with no previous table", tableIndex(i))
			}
		}
	}
	in = br.unread()

	var bits bitReader
	if err := bits.init(in); err != nil {
		return nil, err
	}
	b.seq.hist = hist
	b.seq.maxOut = len(dst) + b.maxRegen
	if err := b.seq.initialize(&bits, literals, dst); err != nil {
		return nil, err
	}
	if err := b.seq.decode(nSeqs, &bits); err != nil {
		return nil, err
	}
	if !bits.finished() {
		return nil, fmt.Errorf("%d extra bits on block, should be 0", bits.remain())
	}
	if err := bits.close(); err != nil {
		return nil, err
	}
	out := b.seq.out
	b.seq.out = nil
	b.seq.hist = nil
	return out, nil
}

// decodeLiterals reads the literals section and returns the regenerated
// literals and the remaining block bytes.
func (b *blockDec) decodeLiterals(in []byte) (lits, rest []byte, err error) {
	if len(in) < 2 {
		return nil, nil, errBlockTooSmall
	}
	litType := literalsBlockType(in[0] & 3)
	var litRegenSize int
	var litCompSize int
	sizeFormat := (in[0] >> 2) & 3
	var fourStreams bool

	switch litType {
	case literalsBlockRaw, literalsBlockRLE:
		switch sizeFormat {
		case 0, 2:
			// Regenerated_Size uses 5 bits (0-31). Literals_Section_Header uses 1 byte.
			litRegenSize = int(in[0] >> 3)
			in = in[1:]
		case 1:
			// Regenerated_Size uses 12 bits (0-4095). Literals_Section_Header uses 2 bytes.
			litRegenSize = int(in[0]>>4) + (int(in[1]) << 4)
			in = in[2:]
		case 3:
			// Regenerated_Size uses 20 bits (0-1048575). Literals_Section_Header uses 3 bytes.
			if len(in) < 3 {
				println("too small: litType:", litType, " sizeFormat", sizeFormat, len(in))
				return nil, nil, errBlockTooSmall
			}
			litRegenSize = int(in[0]>>4) + (int(in[1]) << 4) + (int(in[2]) << 12)
			in = in[3:]
		}
	case literalsBlockCompressed, literalsBlockTreeless:
		switch sizeFormat {
		case 0, 1:
			// Both Regenerated_Size and Compressed_Size use 10 bits (0-1023).
			if len(in) < 3 {
				println("too small: litType:", litType, " sizeFormat", sizeFormat, len(in))
				return nil, nil, errBlockTooSmall
			}
			n := uint64(in[0]>>4) + (uint64(in[1]) << 4) + (uint64(in[2]) << 12)
			litRegenSize = int(n & 1023)
			litCompSize = int(n >> 10)
			fourStreams = sizeFormat == 1
			in = in[3:]
		case 2:
			fourStreams = true
			if len(in) < 4 {
				println("too small: litType:", litType, " sizeFormat", sizeFormat, len(in))
				return nil, nil, errBlockTooSmall
			}
			n := uint64(in[0]>>4) + (uint64(in[1]) << 4) + (uint64(in[2]) << 12) + (uint64(in[3]) << 20)
			litRegenSize = int(n & 16383)
			litCompSize = int(n >> 14)
			in = in[4:]
		case 3:
			fourStreams = true
			if len(in) < 5 {
				println("too small: litType:", litType, " sizeFormat", sizeFormat, len(in))
				return nil, nil, errBlockTooSmall
			}
			n := uint64(in[0]>>4) + (uint64(in[1]) << 4) + (uint64(in[2]) << 12) + (uint64(in[3]) << 20) + (uint64(in[4]) << 28)
			litRegenSize = int(n & 262143)
			litCompSize = int(n >> 18)
			in = in[5:]
		}
	}
	if debugDecoder {
		println("literals type:", litType, "litRegenSize:", litRegenSize, "litCompSize:", litCompSize, "sizeFormat:", sizeFormat, "4X:", fourStreams)
	}

	switch litType {
	case literalsBlockRaw:
		if len(in) < litRegenSize {
			println("too small: litType:", litType, " sizeFormat", sizeFormat, "remain:", len(in), "want:", litRegenSize)
			return nil, nil, errBlockTooSmall
		}
		lits = in[:litRegenSize]
		in = in[litRegenSize:]
	case literalsBlockRLE:
		if len(in) < 1 {
			println("too small: litType:", litType, " sizeFormat", sizeFormat, "remain:", len(in), "want:", 1)
			return nil, nil, errBlockTooSmall
		}
		if litRegenSize > maxRLELiteralSize {
			return nil, nil, fmt.Errorf("literal RLE size (%d) too big", litRegenSize)
		}
		if cap(b.literalBuf) < litRegenSize {
			b.literalBuf = make([]byte, litRegenSize)
		}
		lits = b.literalBuf[:litRegenSize]
		v := in[0]
		for i := range lits {
			lits[i] = v
		}
		in = in[1:]
		if debugDecoder {
			printf("Found %d RLE compressed literals\n", litRegenSize)
		}
	case literalsBlockCompressed, literalsBlockTreeless:
		if len(in) < litCompSize {
			println("too small: litType:", litType, " sizeFormat", sizeFormat, "remain:", len(in), "want:", litCompSize)
			return nil, nil, errBlockTooSmall
		}
		if litRegenSize > maxCompressedLiteralSize {
			return nil, nil, fmt.Errorf("compressed literal size (%d) too big", litRegenSize)
		}
		data := in[:litCompSize]
		in = in[litCompSize:]

		streams := data
		if litType == literalsBlockCompressed {
			streams, err = b.huf.readTable(data)
			if err != nil {
				println("reading huffman table:", err)
				return nil, nil, err
			}
		} else if !b.huf.loaded {
			return nil, nil, fmt.Errorf("treeless literals before a huffman table was read")
		}

		if cap(b.literalBuf) < litRegenSize {
			b.literalBuf = make([]byte, 0, litRegenSize)
		}
		if fourStreams {
			lits, err = b.huf.decompress4X(b.literalBuf[:0], streams, litRegenSize)
		} else {
			lits, err = b.huf.decompress1X(b.literalBuf[:0], streams, litRegenSize)
		}
		if err != nil {
			println("decoding literals:", err)
			return nil, nil, err
		}
		if len(lits) != litRegenSize {
			return nil, nil, fmt.Errorf("literal output size mismatch want %d, got %d", litRegenSize, len(lits))
		}
		b.literalBuf = lits[:0]
		if debugDecoder {
			printf("Decompressed %d literals into %d bytes\n", litCompSize, litRegenSize)
		}
	}
	return lits, in, nil
}
