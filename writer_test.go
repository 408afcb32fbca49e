package zip

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

// readBack opens buf as an Archive and collects every entry keyed by name.
func readBack(t *testing.T, buf []byte) (*Archive, map[string]*Entry) {
	t.Helper()
	archive, err := OpenArchive(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	entries := map[string]*Entry{}
	it := archive.Iterator()
	for it.Next() {
		entries[it.Entry().Name] = it.Entry()
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	return archive, entries
}

func mustReadAll(t *testing.T, e *Entry) []byte {
	t.Helper()
	r, err := e.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return data
}

func TestWriterAddBufferStoreAndDeflate(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if _, err := w.AddBuffer([]byte("hello, store"), "a.txt", Store, AddOptions{}); err != nil {
		t.Fatalf("AddBuffer store: %v", err)
	}
	if _, err := w.AddBuffer(bytes.Repeat([]byte("compress me "), 100), "b.txt", Deflate, AddOptions{}); err != nil {
		t.Fatalf("AddBuffer deflate: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	if got := string(mustReadAll(t, entries["a.txt"])); got != "hello, store" {
		t.Errorf("a.txt content mismatch: %q", got)
	}
	want := strings.Repeat("compress me ", 100)
	if got := string(mustReadAll(t, entries["b.txt"])); got != want {
		t.Errorf("b.txt content mismatch")
	}
	if entries["a.txt"].Flags&flagDataDescriptor != 0 {
		t.Error("AddBuffer entries should not use a data descriptor")
	}
}

func TestWriterAddReadStreamUsesDataDescriptor(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	content := "streamed content, size unknown up front"
	if _, err := w.AddReadStream(strings.NewReader(content), "stream.txt", Store, AddOptions{}); err != nil {
		t.Fatalf("AddReadStream: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	e := entries["stream.txt"]
	if e.Flags&flagDataDescriptor == 0 {
		t.Error("AddReadStream entries should use a data descriptor")
	}
	if got := string(mustReadAll(t, e)); got != content {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriterAddDirectory(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddDirectory("dir", AddOptions{}); err != nil {
		t.Fatalf("AddDirectory: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	e, ok := entries["dir/"]
	if !ok {
		t.Fatal("expected trailing slash on directory entry name")
	}
	if !e.IsDir() {
		t.Error("expected IsDir() true")
	}
	if e.UncompressedSize != 0 || e.CompressedSize != 0 {
		t.Error("directory entry should be zero-length")
	}
}

func TestWriterForceZip64(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("tiny"), "f.txt", Store, AddOptions{ForceZip64: true}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	if got := string(mustReadAll(t, entries["f.txt"])); got != "tiny" {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestWriterCommentRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("x"), "f.txt", Store, AddOptions{Comment: "a file comment"}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if err := w.AddCentralDirectoryRecord("an archive comment"); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	archive, entries := readBack(t, buf.Bytes())
	if entries["f.txt"].Comment != "a file comment" {
		t.Errorf("entry comment mismatch: %q", entries["f.txt"].Comment)
	}
	if archive.Comment != "an archive comment" {
		t.Errorf("archive comment mismatch: %q", archive.Comment)
	}
}

func TestWriterAddCentralDirectoryRecordRejectsEOCDRInComment(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.AddCentralDirectoryRecord(string([]byte{0x50, 0x4b, 0x05, 0x06}))
	if err != ErrCommentHasEOCD {
		t.Fatalf("expected ErrCommentHasEOCD, got %v", err)
	}
}

func TestWriterFailsAfterFinalize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}
	if _, err := w.AddBuffer([]byte("x"), "f.txt", Store, AddOptions{}); err != ErrFinalized {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
}

func TestWriterRemoveEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	h, err := w.AddBuffer([]byte("x"), "keep.txt", Store, AddOptions{})
	if err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	drop, err := w.AddBuffer([]byte("y"), "drop.txt", Store, AddOptions{})
	if err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	w.RemoveEntry(drop)
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	if _, ok := entries["drop.txt"]; ok {
		t.Error("expected drop.txt to be absent from the central directory")
	}
	if _, ok := entries["keep.txt"]; !ok {
		t.Error("expected keep.txt to survive")
	}
	_ = h
}

func TestWriterAddEntryCopiesVerbatim(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("copy me please"), "orig.txt", Deflate, AddOptions{
		Modified: time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	archive, entries := readBack(t, buf.Bytes())
	src := entries["orig.txt"]
	rawRange, err := src.OpenRange(0, src.CompressedSize)
	if err != nil {
		t.Fatalf("OpenRange: %v", err)
	}
	rawBytes, err := io.ReadAll(rawRange)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	var buf2 bytes.Buffer
	w2 := NewWriter(&buf2)
	if _, err := w2.AddEntry(src, bytes.NewReader(rawBytes), AddOptions{}); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if err := w2.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries2 := readBack(t, buf2.Bytes())
	got := entries2["orig.txt"]
	if got == nil {
		t.Fatal("expected orig.txt to survive AddEntry copy")
	}
	if string(mustReadAll(t, got)) != "copy me please" {
		t.Errorf("decompressed content mismatch")
	}
	if got.CRC32 != src.CRC32 {
		t.Errorf("CRC32 mismatch: got %#x, want %#x", got.CRC32, src.CRC32)
	}
	_ = archive
}

func TestWriterAddBufferOversizeRejected(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	oversized := make([]byte, maxBufferSize+1)
	if _, err := w.AddBuffer(oversized, "big.bin", Store, AddOptions{}); err != ErrBufferTooLarge {
		t.Fatalf("expected ErrBufferTooLarge, got %v", err)
	}
}

func TestWriterRejectsInvalidName(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("x"), "../escape.txt", Store, AddOptions{}); err != ErrInvalidPath {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestWriterEmitsSpecVersionMadeBy(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("x"), "f.txt", Store, AddOptions{}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	e := entries["f.txt"]
	if got := e.CreatorVersion & 0xff; got != zipVersionMadeBy {
		t.Fatalf("version made by low byte: got %d, want %d", got, zipVersionMadeBy)
	}
	if got := e.CreatorVersion >> 8; got != creatorUnix {
		t.Fatalf("version made by high byte: got %d, want %d", got, creatorUnix)
	}
}

func TestWriterModeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.AddBuffer([]byte("x"), "exe", Store, AddOptions{Mode: 0755}); err != nil {
		t.Fatalf("AddBuffer: %v", err)
	}
	if err := w.AddCentralDirectoryRecord(""); err != nil {
		t.Fatalf("AddCentralDirectoryRecord: %v", err)
	}

	_, entries := readBack(t, buf.Bytes())
	if got := entries["exe"].Mode().Perm(); got != 0755 {
		t.Errorf("got perm %o, want 0755", got)
	}
}
