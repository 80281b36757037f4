package zstd

import (
	"bytes"
	"errors"
	"testing"
)

func TestRawContentDict(t *testing.T) {
	dictContent := testData(20000)
	d, err := NewDictionary(dictContent)
	if err != nil {
		t.Fatal(err)
	}
	if d.ID() != 0 {
		t.Fatalf("raw content dictionary has ID %d", d.ID())
	}

	// Data that overlaps the dictionary heavily.
	data := append([]byte("prelude "), dictContent[5000:15000]...)

	s, err := NewEncodeSession(4, d)
	if err != nil {
		t.Fatal(err)
	}
	_, out, err := s.Feed(data)
	if err != nil {
		t.Fatal(err)
	}
	tail, err := s.End()
	if err != nil {
		t.Fatal(err)
	}
	compressed := append(out, tail...)

	plain, err := Compress(data, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(compressed) >= len(plain) {
		t.Errorf("dictionary compression (%d bytes) is not smaller than plain (%d bytes)", len(compressed), len(plain))
	}

	ds := NewDecodeSession(d)
	_, decompressed, err := ds.Feed(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ds.End(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}

	// Without the dictionary, the back references point outside the
	// window and decoding must fail.
	if _, err := Decompress(compressed, 0); err == nil {
		t.Error("decoding dictionary compressed data without the dictionary succeeded")
	}
}

func TestDictIDMismatch(t *testing.T) {
	dict := &Dictionary{
		id:      77,
		content: testData(5000),
		offsets: [3]int{1, 4, 8},
	}
	s, err := NewEncodeSession(3, dict)
	if err != nil {
		t.Fatal(err)
	}
	data := dict.content[:4000]
	_, out, err := s.Feed(data)
	if err != nil {
		t.Fatal(err)
	}
	tail, err := s.End()
	if err != nil {
		t.Fatal(err)
	}
	compressed := append(out, tail...)

	if _, err := Decompress(compressed, 0); !errors.Is(err, ErrUnknownDictionary) {
		t.Errorf("no dictionary: got %v, want ErrUnknownDictionary", err)
	}

	other := &Dictionary{id: 78, content: dict.content, offsets: dict.offsets}
	ds := NewDecodeSession(other)
	if _, _, err := ds.Feed(compressed); !errors.Is(err, ErrUnknownDictionary) {
		t.Errorf("wrong dictionary: got %v, want ErrUnknownDictionary", err)
	}

	ds = NewDecodeSession(dict)
	_, decompressed, err := ds.Feed(compressed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ds.End(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output doesn't match")
	}
}

func TestStructuredDictParsing(t *testing.T) {
	// Too short for the structured format: falls back to raw content.
	d, err := NewDictionary([]byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if d.hasEntropy || d.ID() != 0 || d.ContentSize() != 3 {
		t.Errorf("short dictionary parsed as id=%d, entropy=%t, content=%d", d.ID(), d.hasEntropy, d.ContentSize())
	}

	// Magic with a zero ID is rejected.
	bad := []byte{0x37, 0xa4, 0x30, 0xec, 0, 0, 0, 0, 1, 2, 3, 4}
	if _, err := NewDictionary(bad); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("zero dictionary ID: got %v, want ErrMalformedHeader", err)
	}
}
