package zstd

import (
	"fmt"
	"io"

	"github.com/andybalholm/zstd/matchfinder"
)

// NewWriter returns a Writer that compresses data to w in the zstd
// format at the given level (1 = fastest, 9 = best ratio).
func NewWriter(w io.Writer, level int) (*matchfinder.Writer, error) {
	mf, windowSize, err := finderForLevel(level)
	if err != nil {
		return nil, err
	}
	return &matchfinder.Writer{
		Dest:        w,
		MatchFinder: mf,
		Encoder:     &Encoder{WindowSize: windowSize},
		BlockSize:   1 << 17,
	}, nil
}

// finderForLevel maps a compression level to a match finder preset and
// its window size. Higher levels search longer chains over larger
// windows.
func finderForLevel(level int) (matchfinder.MatchFinder, int, error) {
	if level < 1 || level > 9 {
		return nil, 0, fmt.Errorf("%w: compression level %d not in range [1,9]", ErrInvalidParameter, level)
	}
	if level == 1 {
		return &matchfinder.LazyMatchFinder{
			MaxDistance: 1 << 17,
			MaxLength:   1 << 15,
			ChainBlocks: true,
		}, 1 << 17, nil
	}

	searchLen := []int{0, 0, 4, 8, 16, 32, 64, 96, 128, 256}[level]
	windowSize := []int{0, 0, 1 << 17, 1 << 17, 1 << 18, 1 << 18, 1 << 20, 1 << 20, 1 << 21, 1 << 22}[level]
	var parser matchfinder.Parser
	if level < 5 {
		parser = &matchfinder.GreedyParser{}
	} else {
		parser = &matchfinder.LazyParser{}
	}
	return &matchfinder.HashChain{
		SearchLen:   searchLen,
		MaxDistance: windowSize,
		Parser:      parser,
	}, windowSize, nil
}
