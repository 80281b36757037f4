package matchfinder

import (
	"bytes"
	"math/rand"
	"testing"
)

// reconstruct applies matches to src block by block, checking that
// they describe the data they were found in.
func reconstruct(t *testing.T, blocks [][]byte, m MatchFinder, maxDistance int) {
	t.Helper()
	var history []byte
	var matches []Match
	for bi, src := range blocks {
		matches = m.FindMatches(matches[:0], src)
		pos := 0
		for _, match := range matches {
			if match.Unmatched < 0 || pos+match.Unmatched > len(src) {
				t.Fatalf("block %d: unmatched run of %d bytes at position %d", bi, match.Unmatched, pos)
			}
			history = append(history, src[pos:pos+match.Unmatched]...)
			pos += match.Unmatched
			if match.Length == 0 {
				continue
			}
			if match.Distance <= 0 || match.Distance > maxDistance {
				t.Fatalf("block %d: match distance %d at position %d", bi, match.Distance, pos)
			}
			if match.Distance > len(history) {
				t.Fatalf("block %d: match distance %d with only %d bytes of history", bi, match.Distance, len(history))
			}
			for i := 0; i < match.Length; i++ {
				history = append(history, history[len(history)-match.Distance])
			}
			pos += match.Length
		}
		if pos != len(src) {
			t.Fatalf("block %d: matches cover %d bytes of %d", bi, pos, len(src))
		}
	}
	var all []byte
	for _, b := range blocks {
		all = append(all, b...)
	}
	if !bytes.Equal(history, all) {
		t.Fatal("reconstructed data doesn't match the input")
	}
}

// repetitiveData produces data with plenty of repeated strings.
func repetitiveData(n int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	phrases := [][]byte{
		[]byte("mostly cloudy with a chance of compression "),
		[]byte("the quick brown fox jumps over the lazy dog "),
		[]byte("0123456789abcdef"),
		[]byte("aaaaaaaaaaaaaaaaaaaaaaaaaa"),
	}
	var b []byte
	for len(b) < n {
		b = append(b, phrases[rng.Intn(len(phrases))]...)
		if rng.Intn(10) == 0 {
			b = append(b, byte(rng.Intn(256)))
		}
	}
	return b[:n]
}

func blocksOf(data []byte, blockSize int) [][]byte {
	var blocks [][]byte
	for len(data) > 0 {
		n := blockSize
		if n > len(data) {
			n = len(data)
		}
		blocks = append(blocks, data[:n])
		data = data[n:]
	}
	return blocks
}

func TestHashChainMatches(t *testing.T) {
	data := repetitiveData(300000, 1)
	m := &HashChain{SearchLen: 32, MaxDistance: 1 << 17, Parser: &LazyParser{}}
	reconstruct(t, blocksOf(data, 1<<16), m, 1<<17)
}

func TestHashChainGreedyMatches(t *testing.T) {
	data := repetitiveData(200000, 2)
	m := &HashChain{SearchLen: 8, MaxDistance: 1 << 16, Parser: &GreedyParser{}}
	reconstruct(t, blocksOf(data, 1<<15), m, 1<<16)
}

func TestLazyMatchFinderMatches(t *testing.T) {
	data := repetitiveData(300000, 3)
	m := &LazyMatchFinder{MaxDistance: 1 << 17, MaxLength: 1 << 15, ChainBlocks: true}
	reconstruct(t, blocksOf(data, 1<<16), m, 1<<17)
}

func TestHashChainPreload(t *testing.T) {
	dict := repetitiveData(30000, 4)
	data := append([]byte("intro "), dict[10000:20000]...)
	m := &HashChain{SearchLen: 16, MaxDistance: 1 << 17, Parser: &GreedyParser{}}
	m.Preload(dict)

	matches := m.FindMatches(nil, data)
	foundFar := false
	pos := 0
	for _, match := range matches {
		pos += match.Unmatched
		if match.Length > 0 && match.Distance > pos {
			foundFar = true
		}
		pos += match.Length
	}
	if !foundFar {
		t.Error("no matches into the preloaded history")
	}
}

func TestFindMatchesEmpty(t *testing.T) {
	finders := []MatchFinder{
		&HashChain{SearchLen: 4, Parser: &GreedyParser{}},
		&LazyMatchFinder{MaxDistance: 1 << 16, MaxLength: 1 << 15},
	}
	for _, m := range finders {
		matches := m.FindMatches(nil, nil)
		pos := 0
		for _, match := range matches {
			pos += match.Unmatched + match.Length
		}
		if pos != 0 {
			t.Errorf("%T: matches for empty input cover %d bytes", m, pos)
		}
	}
}
