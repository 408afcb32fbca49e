package zip

import (
	"bytes"
	"testing"
)

func buildMinimalArchive(t *testing.T, comment string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("payload"), "f.txt", Store, AddOptions{}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(comment); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}
	return buf.Bytes()
}

func TestOpenArchiveRoundTrip(t *testing.T) {
	data := buildMinimalArchive(t, "")
	archive, err := OpenArchive(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	it := archive.Iterator()
	if !it.Next() {
		t.Fatalf("expected one entry, iteration error: %v", it.Err())
	}
	if it.Entry().Name != "f.txt" {
		t.Fatalf("got name %q", it.Entry().Name)
	}
	if it.Next() {
		t.Fatal("expected only one entry")
	}
}

func TestOpenArchiveRejectsTruncatedData(t *testing.T) {
	data := buildMinimalArchive(t, "")
	_, err := OpenArchive(bytes.NewReader(data[:len(data)-4]), int64(len(data)-4))
	if err != ErrFormat {
		t.Fatalf("expected ErrFormat for truncated archive, got %v", err)
	}
}

func TestOpenArchiveCommentWithEmbeddedSignatureAmbiguity(t *testing.T) {
	// A comment that itself contains a plausible EOCDR signature is
	// rejected at write time (ErrCommentHasEOCD), so a writer-produced
	// archive can never trigger the reader's disambiguation path. This
	// confirms that guard.
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.AddCentralDirectoryRecord("junk PK\x05\x06 trailer"); err != ErrCommentHasEOCD {
		t.Fatalf("expected ErrCommentHasEOCD, got %v", err)
	}
}

func TestOpenArchiveRejectsMultiDisk(t *testing.T) {
	// Hand-build a minimal EOCDR with a nonzero disk number, which no
	// writer in this package ever produces.
	raw := make([]byte, directoryEndLen)
	wb := writeBuf(raw)
	wb.uint32(directoryEndSignature)
	wb.uint16(1) // nonzero disk number
	wb.skip(2)
	wb.uint16(0)
	wb.uint16(0)
	wb.uint32(0)
	wb.uint32(0)
	wb.uint16(0)

	_, err := OpenArchive(bytes.NewReader(raw), int64(len(raw)))
	if err != ErrMultiDisk {
		t.Fatalf("expected ErrMultiDisk, got %v", err)
	}
}

func TestEntryOpenDetectsCorruptedData(t *testing.T) {
	data := buildMinimalArchive(t, "")

	// Corrupt one byte within the (stored, uncompressed) file data region.
	// "payload" is stored right after the 30-byte local header + 5-byte
	// name ("f.txt").
	corruptPos := fileHeaderLen + len("f.txt")
	corrupted := append([]byte{}, data...)
	corrupted[corruptPos] ^= 0xFF

	archive, err := OpenArchive(bytes.NewReader(corrupted), int64(len(corrupted)))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	it := archive.Iterator()
	if !it.Next() {
		t.Fatalf("expected an entry, err=%v", it.Err())
	}
	r, err := it.Entry().Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	buf := make([]byte, 64)
	_, readErr := r.Read(buf)
	for readErr == nil {
		_, readErr = r.Read(buf)
	}
	if readErr != ErrChecksum {
		t.Fatalf("expected ErrChecksum after reading corrupted data, got %v", readErr)
	}
}

func TestEntryOpenRangeBounds(t *testing.T) {
	data := buildMinimalArchive(t, "")
	archive, err := OpenArchive(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	it := archive.Iterator()
	if !it.Next() {
		t.Fatalf("expected an entry, err=%v", it.Err())
	}
	e := it.Entry()

	if _, err := e.OpenRange(0, e.CompressedSize+1); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange for an out-of-bounds end, got %v", err)
	}
	if _, err := e.OpenRange(3, 1); err != ErrInvalidRange {
		t.Fatalf("expected ErrInvalidRange for start > end, got %v", err)
	}

	r, err := e.OpenRange(0, e.CompressedSize)
	if err != nil {
		t.Fatalf("OpenRange: %v", err)
	}
	buf := make([]byte, e.CompressedSize)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "payload" {
		t.Fatalf("got %q", buf)
	}
}
