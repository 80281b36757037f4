package zstd

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// feedAll pushes data through an encode session in chunks of varying
// sizes and returns the whole frame.
func feedAll(t *testing.T, s *EncodeSession, data []byte, rng *rand.Rand) []byte {
	t.Helper()
	var out []byte
	for len(data) > 0 {
		n := rng.Intn(5000) + 1
		if n > len(data) {
			n = len(data)
		}
		consumed, chunk, err := s.Feed(data[:n])
		if err != nil {
			t.Fatal(err)
		}
		if consumed != n {
			t.Fatalf("consumed %d bytes of %d", consumed, n)
		}
		out = append(out, chunk...)
		data = data[n:]
	}
	chunk, err := s.End()
	if err != nil {
		t.Fatal(err)
	}
	return append(out, chunk...)
}

func TestStreamingEquivalence(t *testing.T) {
	data := testData(500000)
	rng := rand.New(rand.NewSource(7))

	s, err := NewEncodeSession(5, nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := feedAll(t, s, data, rng)

	oneShot, err := Compress(data, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(compressed, oneShot) {
		t.Error("chunked compression differs from one-shot compression")
	}

	// Decode it in odd sized chunks too.
	d := NewDecodeSession(nil)
	var decompressed []byte
	for len(compressed) > 0 {
		n := rng.Intn(777) + 1
		if n > len(compressed) {
			n = len(compressed)
		}
		consumed, chunk, err := d.Feed(compressed[:n])
		if err != nil {
			t.Fatal(err)
		}
		if consumed != n {
			t.Fatalf("consumed %d bytes of %d", consumed, n)
		}
		decompressed = append(decompressed, chunk...)
		compressed = compressed[n:]
	}
	if _, err := d.End(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestFlush(t *testing.T) {
	data := testData(50000)
	s, err := NewEncodeSession(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	var compressed []byte
	_, chunk, err := s.Feed(data[:30000])
	if err != nil {
		t.Fatal(err)
	}
	compressed = append(compressed, chunk...)

	// Flush must make everything fed so far decodable.
	chunk, err = s.Flush()
	if err != nil {
		t.Fatal(err)
	}
	compressed = append(compressed, chunk...)

	d := NewDecodeSession(nil)
	_, partial, err := d.Feed(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(partial, data[:30000]) {
		t.Fatal("flushed output doesn't decode to the input fed so far")
	}

	_, chunk, err = s.Feed(data[30000:])
	if err != nil {
		t.Fatal(err)
	}
	compressed = append(compressed, chunk...)
	chunk, err = s.End()
	if err != nil {
		t.Fatal(err)
	}
	compressed = append(compressed, chunk...)

	decompressed, err := Decompress(compressed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestSessionClosed(t *testing.T) {
	s, err := NewEncodeSession(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.End(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Feed([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Feed after End: got %v, want ErrSessionClosed", err)
	}
	if _, err := s.Flush(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Flush after End: got %v, want ErrSessionClosed", err)
	}
	if _, err := s.End(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second End: got %v, want ErrSessionClosed", err)
	}

	d := NewDecodeSession(nil)
	if _, err := d.End(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.Feed([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("decode Feed after End: got %v, want ErrSessionClosed", err)
	}
}

func TestDecodeErrorIsSticky(t *testing.T) {
	d := NewDecodeSession(nil)
	if _, _, err := d.Feed([]byte("garbage in")); !errors.Is(err, ErrMagicMismatch) {
		t.Fatalf("got %v, want ErrMagicMismatch", err)
	}
	good, err := Compress([]byte("hello"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.Feed(good); !errors.Is(err, ErrMagicMismatch) {
		t.Errorf("after a failure, Feed got %v, want the original error", err)
	}
}

func TestReader(t *testing.T) {
	data := testData(300000)
	compressed, err := Compress(data, 4)
	if err != nil {
		t.Fatal(err)
	}
	decompressed, err := io.ReadAll(NewReader(bytes.NewReader(compressed)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}

	// One byte at a time from the source.
	r := NewReader(iotest{bytes.NewReader(compressed)})
	decompressed, err = io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match with a one byte reader")
	}
}

// iotest yields one byte per Read call.
type iotest struct {
	r io.Reader
}

func (o iotest) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}

func TestStreamedOutputReadableByReference(t *testing.T) {
	data := testData(400000)
	rng := rand.New(rand.NewSource(9))
	s, err := NewEncodeSession(2, nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := feedAll(t, s, data, rng)

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
}
