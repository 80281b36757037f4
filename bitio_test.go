package zstd

import "testing"

func TestBitStreamRoundTrip(t *testing.T) {
	var bw bitWriter
	bw.reset(nil)
	bw.addBits16NC(0x15, 5)
	bw.addBits16NC(0x6a, 7)
	bw.addBits32NC(0x1b3, 9)
	bw.flush32()
	bw.addBits32NC(0x3ffffff, 26)
	if err := bw.close(); err != nil {
		t.Fatal(err)
	}

	var br bitReader
	if err := br.init(bw.out); err != nil {
		t.Fatal(err)
	}
	// The stream is read back to front: the last value written is the
	// first one read.
	br.fill()
	if got := br.getBits(26); got != 0x3ffffff {
		t.Errorf("got %#x, want 0x3ffffff", got)
	}
	br.fill()
	if got := br.getBits(9); got != 0x1b3 {
		t.Errorf("got %#x, want 0x1b3", got)
	}
	if got := br.getBits(7); got != 0x6a {
		t.Errorf("got %#x, want 0x6a", got)
	}
	if got := br.getBits(5); got != 0x15 {
		t.Errorf("got %#x, want 0x15", got)
	}
	if !br.finished() {
		t.Errorf("%d bits left over", br.remain())
	}
	if err := br.close(); err != nil {
		t.Error(err)
	}
}

func TestBitReaderBadStream(t *testing.T) {
	var br bitReader
	if err := br.init(nil); err == nil {
		t.Error("initializing from an empty stream succeeded")
	}
	// No end marker.
	if err := br.init([]byte{0x12, 0x34, 0}); err == nil {
		t.Error("initializing without an end marker succeeded")
	}
	// Reading past the end must be detected by close.
	if err := br.init([]byte{0x01}); err != nil {
		t.Fatal(err)
	}
	br.fill()
	br.getBits(32)
	br.getBits(32)
	if !br.overread() {
		t.Error("overread not detected")
	}
	if err := br.close(); err == nil {
		t.Error("close after overread succeeded")
	}
}
