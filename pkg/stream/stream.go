package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned by the reader when a length prefix exceeds the
// configured limit.
var ErrTooLarge = errors.New("length prefix exceeds limit")

// DefaultMaxLen bounds a single string or slice read from a stream (1 GiB).
const DefaultMaxLen = 1 << 30

// Writer encodes values in the blob wire format: fixed-width little-endian
// uint64 words, strings and slices prefixed with their uint64 length.
type Writer struct {
	w   io.Writer
	n   int64
	buf [8]byte
}

// NewWriter wraps w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write passes raw bytes through. It makes Writer usable as the io.Writer a
// module serializes its own state into.
func (s *Writer) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	return n, err
}

// WriteUint64 writes v as 8 little-endian bytes
func (s *Writer) WriteUint64(v uint64) error {
	binary.LittleEndian.PutUint64(s.buf[:], v)
	_, err := s.Write(s.buf[:])
	return err
}

// WriteString writes the byte length of v followed by its bytes
func (s *Writer) WriteString(v string) error {
	if err := s.WriteUint64(uint64(len(v))); err != nil {
		return err
	}
	_, err := io.WriteString(s, v)
	return err
}

// WriteBytes writes the length of v followed by v
func (s *Writer) WriteBytes(v []byte) error {
	if err := s.WriteUint64(uint64(len(v))); err != nil {
		return err
	}
	_, err := s.Write(v)
	return err
}

// WriteUint64s writes the element count followed by each element
func (s *Writer) WriteUint64s(v []uint64) error {
	if err := s.WriteUint64(uint64(len(v))); err != nil {
		return err
	}
	for _, x := range v {
		if err := s.WriteUint64(x); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of bytes written so far
func (s *Writer) Len() int64 {
	return s.n
}

// Reader decodes values written by Writer.
type Reader struct {
	r      io.Reader
	maxLen uint64
	buf    [8]byte
}

// NewReader wraps r with DefaultMaxLen as the length limit
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, maxLen: DefaultMaxLen}
}

// Read passes raw bytes through so module loaders can consume their payload.
func (s *Reader) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// ReadUint64 reads 8 little-endian bytes
func (s *Reader) ReadUint64() (uint64, error) {
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s.buf[:]), nil
}

func (s *Reader) readLen() (uint64, error) {
	n, err := s.ReadUint64()
	if err != nil {
		return 0, err
	}
	if n > s.maxLen {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooLarge, n, s.maxLen)
	}
	return n, nil
}

// ReadBytes reads a length-prefixed byte slice
func (s *Reader) ReadBytes() ([]byte, error) {
	n, err := s.readLen()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(s.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadString reads a length-prefixed string
func (s *Reader) ReadString() (string, error) {
	b, err := s.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadUint64s reads a count-prefixed slice of uint64
func (s *Reader) ReadUint64s() ([]uint64, error) {
	n, err := s.readLen()
	if err != nil {
		return nil, err
	}
	// Each element needs 8 bytes; cap the allocation by what the limit allows.
	if n > s.maxLen/8 {
		return nil, fmt.Errorf("%w: %d elements", ErrTooLarge, n)
	}
	out := make([]uint64, n)
	for i := range out {
		if out[i], err = s.ReadUint64(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
