package zstd

import (
	"errors"
	"math/rand"
	"testing"
)

func TestFSECountRoundTrip(t *testing.T) {
	// A geometric-ish distribution over a few dozen symbols.
	rng := rand.New(rand.NewSource(11))
	var e fseEncoder
	hist := e.Histogram()
	total := 0
	maxSym, maxCount := 0, 0
	for s := 0; s < 40; s++ {
		c := 1 + rng.Intn(1<<uint(12-s/4))
		hist[s] = uint32(c)
		total += c
		maxSym = s
		if c > maxCount {
			maxCount = c
		}
	}
	e.HistogramFinished(uint8(maxSym), maxCount)
	if err := e.normalizeCount(total); err != nil {
		t.Fatal(err)
	}

	sum := int32(0)
	for _, v := range e.norm[:e.symbolLen] {
		if v == -1 {
			sum++
		} else {
			sum += int32(v)
		}
	}
	if sum != 1<<e.actualTableLog {
		t.Fatalf("normalized counts sum to %d, table size is %d", sum, 1<<e.actualTableLog)
	}

	out, err := e.writeCount(nil)
	if err != nil {
		t.Fatal(err)
	}

	var d fseDecoder
	br := byteReader{b: out, off: 0}
	if err := d.readNCount(&br, 255); err != nil {
		t.Fatal(err)
	}
	if br.remain() != 0 {
		t.Fatalf("%d bytes left after the count table", br.remain())
	}
	if d.actualTableLog != e.actualTableLog {
		t.Fatalf("decoded table log %d, encoded %d", d.actualTableLog, e.actualTableLog)
	}
	if d.symbolLen != e.symbolLen {
		t.Fatalf("decoded symbol count %d, encoded %d", d.symbolLen, e.symbolLen)
	}
	for i := uint16(0); i < d.symbolLen; i++ {
		if d.norm[i] != e.norm[i] {
			t.Fatalf("symbol %d: decoded count %d, encoded %d", i, d.norm[i], e.norm[i])
		}
	}
	if err := d.buildDtable(); err != nil {
		t.Fatal(err)
	}
}

func TestReadNCountCorrupt(t *testing.T) {
	var d fseDecoder

	// Accuracy log over the limit.
	br := byteReader{b: []byte{0x0f, 0, 0, 0}}
	if err := d.readNCount(&br, 255); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("oversized table log: got %v, want ErrInvalidDistribution", err)
	}

	// Counts that cannot fill the table.
	br = byteReader{b: []byte{0, 0, 0, 0}}
	if err := d.readNCount(&br, 255); !errors.Is(err, ErrInvalidDistribution) {
		t.Errorf("short counts: got %v, want ErrInvalidDistribution", err)
	}
}

func TestPredefinedTables(t *testing.T) {
	initPredefined()
	if got := fsePredef[tableLiteralLengths].actualTableLog; got != 6 {
		t.Errorf("literal length table log %d, want 6", got)
	}
	if got := fsePredef[tableOffsets].actualTableLog; got != 5 {
		t.Errorf("offset table log %d, want 5", got)
	}
	if got := fsePredef[tableMatchLengths].actualTableLog; got != 6 {
		t.Errorf("match length table log %d, want 6", got)
	}

	if got := len(symbolTableX[tableLiteralLengths]); got != maxLiteralLengthSymbol+1 {
		t.Errorf("%d literal length transforms, want %d", got, maxLiteralLengthSymbol+1)
	}
	if got := len(symbolTableX[tableOffsets]); got != maxOffsetBits+1 {
		t.Errorf("%d offset transforms, want %d", got, maxOffsetBits+1)
	}
	if got := len(symbolTableX[tableMatchLengths]); got != maxMatchLengthSymbol+1 {
		t.Errorf("%d match length transforms, want %d", got, maxMatchLengthSymbol+1)
	}

	// Offset code N covers offset values starting at 1<<N, with N
	// extra bits.
	for n, bo := range symbolTableX[tableOffsets] {
		if bo.baseLine != uint32(1)<<uint(n) || bo.addBits != uint8(n) {
			t.Errorf("offset code %d: baseline %d addBits %d", n, bo.baseLine, bo.addBits)
		}
	}

	// Match lengths start at the minimum match of 3.
	if bo := symbolTableX[tableMatchLengths][0]; bo.baseLine != 3 || bo.addBits != 0 {
		t.Errorf("match length code 0: baseline %d addBits %d", bo.baseLine, bo.addBits)
	}
}
