// Copyright 2019+ Klaus Post. All rights reserved.
// License information can be found in the LICENSE file.
// Based on work by Yann Collet, released under BSD License.

package zstd

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// errNeedMore signals that a streaming parse stopped because the
// available input ends inside a structure.
var errNeedMore = errors.New("need more input")

// decFrameHeader is a parsed frame header.
type decFrameHeader struct {
	ContentSize    uint64
	HasContentSize bool
	WindowSize     int
	SingleSegment  bool
	Checksum       bool
	DictID         uint32
}

// parseFrameHeader parses the frame header fields following the magic
// number and returns the number of bytes consumed. It returns
// errNeedMore if in ends inside the header.
func parseFrameHeader(in []byte) (fh decFrameHeader, n int, err error) {
	if len(in) < 1 {
		return fh, 0, errNeedMore
	}
	fhd := in[0]
	n = 1
	if fhd&(1<<3) != 0 {
		return fh, 0, fmt.Errorf("%w: reserved bit set", ErrMalformedHeader)
	}
	fh.SingleSegment = fhd&(1<<5) != 0
	fh.Checksum = fhd&(1<<2) != 0

	if !fh.SingleSegment {
		if len(in) < n+1 {
			return fh, 0, errNeedMore
		}
		wd := in[n]
		n++
		windowLog := 10 + int(wd>>3)
		windowBase := uint64(1) << windowLog
		windowAdd := (windowBase / 8) * uint64(wd&0x7)
		windowSize := windowBase + windowAdd
		if windowSize > maxWindowSize {
			return fh, 0, ErrWindowSizeExceeded
		}
		fh.WindowSize = int(windowSize)
	}

	dictIDSize := [4]int{0, 1, 2, 4}[fhd&3]
	if dictIDSize > 0 {
		if len(in) < n+dictIDSize {
			return fh, 0, errNeedMore
		}
		b := in[n : n+dictIDSize]
		n += dictIDSize
		switch dictIDSize {
		case 1:
			fh.DictID = uint32(b[0])
		case 2:
			fh.DictID = uint32(binary.LittleEndian.Uint16(b))
		case 4:
			fh.DictID = binary.LittleEndian.Uint32(b)
		}
	}

	fcsSize := 0
	switch fhd >> 6 {
	case 0:
		if fh.SingleSegment {
			fcsSize = 1
		}
	case 1:
		fcsSize = 2
	case 2:
		fcsSize = 4
	case 3:
		fcsSize = 8
	}
	if fcsSize > 0 {
		fh.HasContentSize = true
		if len(in) < n+fcsSize {
			return fh, 0, errNeedMore
		}
		b := in[n : n+fcsSize]
		n += fcsSize
		switch fcsSize {
		case 1:
			fh.ContentSize = uint64(b[0])
		case 2:
			// The smallest sizes are stored in the 1 byte format.
			fh.ContentSize = uint64(binary.LittleEndian.Uint16(b)) + 256
		case 4:
			fh.ContentSize = uint64(binary.LittleEndian.Uint32(b))
		case 8:
			fh.ContentSize = binary.LittleEndian.Uint64(b)
		}
	}

	if fh.SingleSegment {
		// Without a window descriptor, the content itself is the window.
		if fh.ContentSize > maxWindowSize {
			return fh, 0, ErrWindowSizeExceeded
		}
		fh.WindowSize = int(fh.ContentSize)
	}
	if debugDecoder {
		printf("frame header: windowSize: %d, dictID: %d, contentSize: %d (has: %t), checksum: %t\n",
			fh.WindowSize, fh.DictID, fh.ContentSize, fh.HasContentSize, fh.Checksum)
	}
	return fh, n, nil
}
