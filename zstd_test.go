package zstd

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/andybalholm/zstd/matchfinder"
	"github.com/klauspost/compress/zstd"
)

// testData returns a deterministic, compressible mix of prose-like
// words with some repetition.
func testData(n int) []byte {
	words := strings.Fields("the light of the sun is refracted by a prism into rays of " +
		"several colours and those rays are not changed by reflection or refraction " +
		"whereby it comes to pass that bodies appear of divers colours")
	rng := rand.New(rand.NewSource(1))
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(words[rng.Intn(len(words))])
		b.WriteByte(' ')
		if rng.Intn(40) == 0 {
			b.WriteByte('\n')
		}
	}
	return b.Bytes()[:n]
}

func test(t *testing.T, data []byte, m matchfinder.MatchFinder, blockSize int) {
	t.Helper()
	b := new(bytes.Buffer)
	w := &matchfinder.Writer{
		Dest:        b,
		MatchFinder: m,
		Encoder:     &Encoder{},
		BlockSize:   blockSize,
	}
	w.Write(data)
	w.Close()
	compressed := b.Bytes()

	// The reference decoder must accept our output.
	sr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	decompressed, err := io.ReadAll(sr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("reference decoder: decompressed output doesn't match")
	}

	// And so must ours.
	decompressed, err = Decompress(compressed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestEncodeLazy(t *testing.T) {
	test(t, testData(300000), &matchfinder.LazyMatchFinder{MaxDistance: 1 << 17, MaxLength: 1 << 15, ChainBlocks: true}, 1<<16)
}

func TestEncodeHashChainGreedy(t *testing.T) {
	test(t, testData(300000), &matchfinder.HashChain{SearchLen: 16, MaxDistance: 1 << 18, Parser: &matchfinder.GreedyParser{}}, 1<<16)
}

func TestEncodeHashChainLazy(t *testing.T) {
	test(t, testData(300000), &matchfinder.HashChain{SearchLen: 64, MaxDistance: 1 << 18, Parser: &matchfinder.LazyParser{}}, 1<<16)
}

func TestWriterLevels(t *testing.T) {
	data := testData(200000)
	var sizes [10]int
	for level := 1; level <= 9; level++ {
		b := new(bytes.Buffer)
		w, err := NewWriter(b, level)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		sizes[level] = b.Len()

		decompressed, err := io.ReadAll(NewReader(bytes.NewReader(b.Bytes())))
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("level %d: decompressed output doesn't match", level)
		}
	}
	if sizes[9] > sizes[2] {
		t.Errorf("level 9 output (%d bytes) is larger than level 2 output (%d bytes)", sizes[9], sizes[2])
	}
}

func TestNewWriterInvalidLevel(t *testing.T) {
	for _, level := range []int{-1, 0, 10} {
		if _, err := NewWriter(io.Discard, level); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("level %d: got %v, want ErrInvalidParameter", level, err)
		}
	}
}

func TestDecodeReferenceOutput(t *testing.T) {
	data := testData(300000)
	for _, level := range []zstd.EncoderLevel{zstd.SpeedFastest, zstd.SpeedDefault, zstd.SpeedBestCompression} {
		b := new(bytes.Buffer)
		w, err := zstd.NewWriter(b, zstd.WithEncoderLevel(level))
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		decompressed, err := Decompress(b.Bytes(), 0)
		if err != nil {
			t.Fatalf("level %v: %v", level, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("level %v: decompressed output doesn't match", level)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 2, 31, 32, 1000, 1 << 16, 1 << 18} {
		data := testData(size)
		compressed, err := Compress(data, 5)
		if err != nil {
			t.Fatal(err)
		}
		decompressed, err := Decompress(compressed, 0)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if !bytes.Equal(decompressed, data) {
			t.Fatalf("size %d: decompressed output doesn't match", size)
		}
	}
}

func TestDeterministic(t *testing.T) {
	data := testData(100000)
	a, err := Compress(data, 6)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compress(data, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("compressing the same input twice gave different output")
	}
}

func TestCompressBound(t *testing.T) {
	for _, size := range []int{0, 1, 1000, 1 << 17, 1 << 20} {
		data := make([]byte, size)
		rand.New(rand.NewSource(42)).Read(data)
		compressed, err := Compress(data, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(compressed) > CompressBound(size) {
			t.Errorf("size %d: compressed to %d bytes, bound is %d", size, len(compressed), CompressBound(size))
		}
	}
}

// TestIncompressibleLastBlock covers a final block whose matches cost
// more than they save, so the encoder falls back to a raw block. The
// fallback must still carry the last-block flag or the frame never
// terminates.
func TestIncompressibleLastBlock(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	src := make([]byte, 128)
	rng.Read(src)
	var matches []matchfinder.Match
	pos := 0
	for _, mpos := range []int{40, 52, 64, 76, 88} {
		copy(src[mpos:mpos+4], src[mpos-30:mpos-26])
		matches = append(matches, matchfinder.Match{Unmatched: mpos - pos, Length: 4, Distance: 30})
		pos = mpos + 4
	}
	matches = append(matches, matchfinder.Match{Unmatched: len(src) - pos})

	var e Encoder
	e.Reset()
	frame := e.Encode(nil, src, matches, true)
	decompressed, err := Decompress(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, src) {
		t.Fatal("decompressed output doesn't match")
	}

	// The same shape through the full pipeline: random data with a few
	// short copies in the tail after a block boundary.
	data := make([]byte, 1<<17+128)
	rng.Read(data)
	for i := 0; i < 5; i++ {
		p := 1<<17 + 20 + i*20
		q := p - 1<<16
		copy(data[p:p+4], data[q:q+4])
	}
	compressed, err := Compress(data, 6)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err = Decompress(compressed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestInvalidDistribution(t *testing.T) {
	block := []byte{
		0x08, 'x', // raw literals, one byte
		0x01, // one sequence
		0x80, // literal lengths use a new FSE table, the rest predefined
		0x00, 0x00, 0x00, 0x00, // counts that cannot fill the table
	}
	frame := append([]byte{}, frameMagic...)
	frame = append(frame, 0x00, 0x00) // frame header descriptor, window descriptor
	bh := uint32(1) | uint32(blockTypeCompressed)<<1 | uint32(len(block))<<3
	frame = append(frame, byte(bh), byte(bh>>8), byte(bh>>16))
	frame = append(frame, block...)

	if _, err := Decompress(frame, 0); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("got %v, want ErrInvalidDistribution", err)
	}
}

func TestRLEBlock(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 1000)
	compressed, err := Compress(data, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) > 20 {
		t.Errorf("1000 identical bytes compressed to %d bytes", len(compressed))
	}
	// Skip the frame header and check the block type.
	fh, n, err := parseFrameHeader(compressed[4:])
	if err != nil {
		t.Fatal(err)
	}
	bh := compressed[4+n]
	if typ := blockType(bh >> 1 & 3); typ != blockTypeRLE {
		t.Errorf("block type is %v, want blockTypeRLE", typ)
	}
	_ = fh

	decompressed, err := Decompress(compressed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestEmptyInput(t *testing.T) {
	compressed, err := Compress(nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := Decompress(compressed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(decompressed) != 0 {
		t.Fatalf("decompressing an empty frame gave %d bytes", len(decompressed))
	}

	// The reference decoder must agree that the frame is valid.
	sr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	decompressed, err = io.ReadAll(sr)
	if err != nil {
		t.Fatal(err)
	}
	if len(decompressed) != 0 {
		t.Fatalf("reference decoder got %d bytes from an empty frame", len(decompressed))
	}
}

func TestConcatenatedFrames(t *testing.T) {
	a := testData(5000)
	b := bytes.Repeat([]byte{0x42}, 3000)
	ca, err := Compress(a, 4)
	if err != nil {
		t.Fatal(err)
	}
	cb, err := Compress(b, 4)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := Decompress(append(ca[:len(ca):len(ca)], cb...), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, append(a[:len(a):len(a)], b...)) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestSkippableFrame(t *testing.T) {
	data := testData(2000)
	compressed, err := Compress(data, 3)
	if err != nil {
		t.Fatal(err)
	}
	skip := []byte{0x50, 0x2a, 0x4d, 0x18, 5, 0, 0, 0, 'h', 'e', 'l', 'l', 'o'}
	decompressed, err := Decompress(append(skip, compressed...), 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestMaxOutput(t *testing.T) {
	data := testData(10000)
	compressed, err := Compress(data, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decompress(compressed, 100); !errors.Is(err, ErrDecoderSizeExceeded) {
		t.Errorf("got %v, want ErrDecoderSizeExceeded", err)
	}
	if _, err := Decompress(compressed, len(data)); err != nil {
		t.Errorf("limit equal to the content size failed: %v", err)
	}
}

func TestMagicMismatch(t *testing.T) {
	if _, err := Decompress([]byte("not a zstd frame"), 0); !errors.Is(err, ErrMagicMismatch) {
		t.Errorf("got %v, want ErrMagicMismatch", err)
	}
}

func TestTruncated(t *testing.T) {
	data := testData(10000)
	compressed, err := Compress(data, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decompress(compressed[:len(compressed)-5], 0); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("got %v, want ErrUnexpectedEOF", err)
	}
}

func TestCorruption(t *testing.T) {
	data := testData(10000)
	compressed, err := Compress(data, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i := range compressed {
		tweaked := append([]byte(nil), compressed...)
		tweaked[i] ^= 0x20
		decompressed, err := Decompress(tweaked, 1 << 25)
		if err == nil && !bytes.Equal(decompressed, data) {
			t.Fatalf("flipping byte %d silently produced wrong output", i)
		}
	}
}

func BenchmarkEncodeLazy(b *testing.B) {
	benchmark(b, testData(1<<20), &matchfinder.LazyMatchFinder{MaxDistance: 1 << 17, MaxLength: 1 << 15, ChainBlocks: true}, 1<<17)
}

func BenchmarkEncodeHashChain(b *testing.B) {
	benchmark(b, testData(1<<20), &matchfinder.HashChain{SearchLen: 32, MaxDistance: 1 << 18, Parser: &matchfinder.LazyParser{}}, 1<<17)
}

func benchmark(b *testing.B, data []byte, m matchfinder.MatchFinder, blockSize int) {
	b.StopTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))
	buf := new(bytes.Buffer)
	w := &matchfinder.Writer{
		Dest:        buf,
		MatchFinder: m,
		Encoder:     &Encoder{},
		BlockSize:   blockSize,
	}
	w.Write(data)
	w.Close()
	b.ReportMetric(float64(len(data))/float64(buf.Len()), "ratio")
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		w.Reset(io.Discard)
		w.Write(data)
		w.Close()
	}
}

func BenchmarkDecode(b *testing.B) {
	b.ReportAllocs()
	data := testData(1 << 20)
	compressed, err := Compress(data, 6)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		if _, err := Decompress(compressed, 0); err != nil {
			b.Fatal(err)
		}
	}
}
