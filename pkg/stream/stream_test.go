package stream

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"
)

func TestWriterLayout(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteUint64(0x0102); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString("ab"); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint64s([]uint64{1, 0}); err != nil {
		t.Fatal(err)
	}

	want := []byte{
		0x02, 0x01, 0, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 'a', 'b',
		2, 0, 0, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encoded bytes mismatch\n got %v\nwant %v", buf.Bytes(), want)
	}
	if w.Len() != int64(len(want)) {
		t.Errorf("Len() = %d, want %d", w.Len(), len(want))
	}
}

func TestReaderDecodesWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.WriteUint64s([]uint64{1, 2, 0})
	_ = w.WriteString("cuda")
	_ = w.WriteBytes([]byte{0xff})

	r := NewReader(&buf)
	order, err := r.ReadUint64s()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []uint64{1, 2, 0}) {
		t.Errorf("order = %v", order)
	}
	key, err := r.ReadString()
	if err != nil || key != "cuda" {
		t.Errorf("ReadString() = %q, %v", key, err)
	}
	b, err := r.ReadBytes()
	if err != nil || !bytes.Equal(b, []byte{0xff}) {
		t.Errorf("ReadBytes() = %v, %v", b, err)
	}
	if _, err := r.ReadUint64(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF at end of stream, got %v", err)
	}
}

func TestReaderRejectsHugeLength(t *testing.T) {
	var buf bytes.Buffer
	_ = NewWriter(&buf).WriteUint64(DefaultMaxLen + 1)

	_, err := NewReader(&buf).ReadString()
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestReaderTruncated(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{1, 2, 3})).ReadUint64()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}
