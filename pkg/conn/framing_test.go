package conn

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 0)
	fr := NewFrameReader(&buf, 0)

	payloads := [][]byte{[]byte("a"), []byte("second frame"), bytes.Repeat([]byte{0xab}, 1024)}
	for _, p := range payloads {
		if err := fw.WriteFrame(p); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := fr.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = %q, want %q", i, got, want)
		}
	}
}

func TestWriteFrameRejectsEmpty(t *testing.T) {
	fw := NewFrameWriter(&bytes.Buffer{}, 0)
	if err := fw.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("WriteFrame(nil) = %v, want ErrMessageEmpty", err)
	}
}

func TestWriteFrameRejectsOversize(t *testing.T) {
	fw := NewFrameWriter(&bytes.Buffer{}, 8)
	if err := fw.WriteFrame(bytes.Repeat([]byte{1}, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversize WriteFrame = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 0)
	if err := fw.WriteFrame(bytes.Repeat([]byte{1}, 64)); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	fr := NewFrameReader(&buf, 8)
	if _, err := fr.ReadFrame(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("oversize ReadFrame = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf, 0)
	if err := fw.WriteFrame([]byte("complete frame")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	fr := NewFrameReader(bytes.NewReader(truncated), 0)
	if _, err := fr.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("truncated ReadFrame = %v, want ErrFrameTruncated", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader(nil), 0)
	if _, err := fr.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame on empty stream = %v, want io.EOF", err)
	}
}
