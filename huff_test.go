package zstd

import (
	"bytes"
	"math/rand"
	"testing"
)

// skewedBytes returns data with an uneven symbol distribution, the
// kind of input Huffman coding is good at.
func skewedBytes(n int, seed int64) []byte {
	rng := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	for i := range b {
		v := rng.Intn(64)
		if v > 16 {
			v = rng.Intn(8)
		}
		b[i] = 'a' + byte(v)
	}
	return b
}

func TestHuffBuildTable(t *testing.T) {
	data := skewedBytes(5000, 1)
	var e huffEncoder
	e.histogram(data)
	if err := e.buildTable(); err != nil {
		t.Fatal(err)
	}

	if e.tableLog > huffMaxBits {
		t.Fatalf("table log %d over the limit", e.tableLog)
	}
	kraft := 0
	for s := 0; s < e.symbolLen; s++ {
		c := e.codes[s]
		if e.count[s] == 0 {
			if c.nBits != 0 {
				t.Fatalf("absent symbol %d has a code", s)
			}
			continue
		}
		if c.nBits == 0 || c.nBits > huffMaxBits {
			t.Fatalf("symbol %d has code length %d", s, c.nBits)
		}
		kraft += 1 << (huffMaxBits - c.nBits)
	}
	if kraft != 1<<huffMaxBits {
		t.Fatalf("code lengths are not a complete prefix code: kraft sum %d", kraft)
	}
}

func TestHuffRLE(t *testing.T) {
	var e huffEncoder
	e.histogram(bytes.Repeat([]byte{'z'}, 100))
	if err := e.buildTable(); err != errUseRLE {
		t.Fatalf("got %v, want errUseRLE", err)
	}
}

func testHuffRoundTrip(t *testing.T, data []byte) {
	t.Helper()
	var e huffEncoder
	e.histogram(data)
	if err := e.buildTable(); err != nil {
		t.Fatal(err)
	}
	table, err := e.writeTable(nil)
	if err != nil {
		t.Fatal(err)
	}
	fourStreams := len(data) >= 1024
	var stream []byte
	if fourStreams {
		stream, err = e.compress4X(nil, data)
	} else {
		stream, err = e.compress1X(nil, data)
	}
	if err != nil {
		t.Fatal(err)
	}

	var d huffDecoder
	rest, err := d.readTable(table)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Fatalf("%d bytes left after the weight table", len(rest))
	}
	if d.tableLog != e.tableLog {
		t.Fatalf("decoder table log %d, encoder %d", d.tableLog, e.tableLog)
	}
	var decoded []byte
	if fourStreams {
		decoded, err = d.decompress4X(nil, stream, len(data))
	} else {
		decoded, err = d.decompress1X(nil, stream, len(data))
	}
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatal("decoded output doesn't match")
	}
}

func TestHuffRoundTrip1X(t *testing.T) {
	testHuffRoundTrip(t, skewedBytes(800, 2))
}

func TestHuffRoundTrip4X(t *testing.T) {
	testHuffRoundTrip(t, skewedBytes(100000, 3))
}

func TestHuffRoundTripManySymbols(t *testing.T) {
	// Use (nearly) the whole alphabet so the weight table is long.
	rng := rand.New(rand.NewSource(4))
	data := make([]byte, 50000)
	for i := range data {
		data[i] = byte(rng.Intn(250))
	}
	testHuffRoundTrip(t, data)
}

func TestHuffWeightsFSERoundTrip(t *testing.T) {
	// A long weight list is stored with the two state FSE coder; make
	// sure the decoder agrees with the encoder about it.
	data := skewedBytes(60000, 5)
	var e huffEncoder
	e.histogram(data)
	if err := e.buildTable(); err != nil {
		t.Fatal(err)
	}
	table, err := e.writeTable(nil)
	if err != nil {
		t.Fatal(err)
	}

	var d huffDecoder
	if _, err := d.readTable(table); err != nil {
		t.Fatal(err)
	}
	for s := 0; s < e.symbolLen; s++ {
		want := uint8(0)
		if nb := e.codes[s].nBits; nb > 0 {
			want = e.tableLog + 1 - nb
		}
		if s == e.symbolLen-1 {
			// The last weight is implied, not stored.
			continue
		}
		if d.weights[s] != want {
			t.Fatalf("symbol %d: decoded weight %d, encoded %d", s, d.weights[s], want)
		}
	}
}
