package zstd

import "io"

// A Reader decompresses a zstd stream read from an underlying reader.
type Reader struct {
	src     io.Reader
	session *DecodeSession
	buf     []byte
	inBuf   []byte
	err     error
}

// NewReader returns a Reader that decompresses the data read from r.
func NewReader(r io.Reader) *Reader {
	return NewReaderDict(r, nil)
}

// NewReaderDict is like NewReader, but decodes against a dictionary.
func NewReaderDict(r io.Reader, dict *Dictionary) *Reader {
	return &Reader{
		src:     r,
		session: NewDecodeSession(dict),
		inBuf:   make([]byte, 32<<10),
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 && r.err == nil {
		n, err := r.src.Read(r.inBuf)
		if n > 0 {
			_, out, derr := r.session.Feed(r.inBuf[:n])
			if derr != nil {
				r.err = derr
				break
			}
			r.buf = out
		}
		switch err {
		case nil:
		case io.EOF:
			if _, derr := r.session.End(); derr != nil {
				r.err = derr
			} else {
				r.err = io.EOF
			}
		default:
			r.err = err
		}
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	if n > 0 {
		return n, nil
	}
	return 0, r.err
}

// Reset makes the Reader ready to read a new stream from src, keeping
// the dictionary it was created with.
func (r *Reader) Reset(src io.Reader) {
	dict := r.session.dict
	r.src = src
	r.session = NewDecodeSession(dict)
	r.buf = nil
	r.err = nil
}
