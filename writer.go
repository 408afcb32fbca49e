package zip

import (
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"
)

// AddOptions carries entry metadata an addX call needs beyond the raw
// bytes: mode, modification time, comment, and a few rarely-used knobs.
// All fields are optional; the zero value is a regular file with
// permissions 0644 and a 1980-01-01 (DOS epoch) modification time.
type AddOptions struct {
	Mode       os.FileMode
	Modified   time.Time
	Comment    string
	NonUTF8    bool
	ForceZip64 bool
}

// maxBufferSize bounds AddBuffer's input, matching the writer's
// buffer-too-large error.
const maxBufferSize = 0x3FFFFFFF

// Writer assembles a ZIP archive as an incremental byte stream: each addX
// call appends local-header and body bytes to the sink immediately rather
// than buffering the whole archive in memory. Calls are safe from multiple
// goroutines; an internal mutex serializes them in strict call order, the
// Go realization of the writer's single-threaded cooperative queue.
type Writer struct {
	mu     sync.Mutex
	sink   io.Writer
	cursor uint64

	entries   []*writerEntry
	failed    error
	finalized bool
}

// writerEntry is the writer's private bookkeeping record for a queued
// entry: the public *FileHeader plus the local-header offset and the flags
// decided when its local header was emitted, which the central directory
// record must echo.
type writerEntry struct {
	*FileHeader
	relativeOffsetOfLocalHeader uint64
	flags                       uint16
	readerVersion               uint16
}

// NewWriter returns a Writer that appends to sink starting at output
// cursor 0.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{sink: sink}
}

// NewWriterAt returns a Writer whose output cursor starts at cursor, for
// appending new entries after an already-written prefix -- e.g. the data
// region of a source archive being modified in place.
func NewWriterAt(sink io.Writer, cursor uint64) *Writer {
	return &Writer{sink: sink, cursor: cursor}
}

func (w *Writer) countingSink() *countWriter {
	return &countWriter{w: w.sink, count: int64(w.cursor)}
}

func (w *Writer) checkState() error {
	if w.failed != nil {
		return w.failed
	}
	if w.finalized {
		return ErrFinalized
	}
	return nil
}

// fail latches the writer's first error permanently: per §5, any write
// error destroys the output for good, with no partial recovery.
func (w *Writer) fail(err error) error {
	if w.failed == nil {
		w.failed = err
	}
	return err
}

// newHeader validates name and opts per Invariant 3 and the writer's
// length limits, and builds the FileHeader the entry will carry.
func newHeader(name string, isDir bool, opts AddOptions) (*FileHeader, error) {
	sanitized, err := sanitizeEntryName(name, isDir)
	if err != nil {
		return nil, err
	}
	if len(sanitized) > uint16max {
		return nil, ErrNameTooLong
	}
	if len(opts.Comment) > uint16max {
		return nil, ErrCommentTooLong
	}
	if opts.Mode > 0xFFFF {
		return nil, ErrInvalidMode
	}
	if opts.NonUTF8 {
		if _, err := cp437Encode(sanitized); err != nil {
			return nil, err
		}
		if _, err := cp437Encode(opts.Comment); err != nil {
			return nil, err
		}
	}

	modified := opts.Modified
	if modified.IsZero() {
		modified = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	h := &FileHeader{
		Name:       sanitized,
		Comment:    opts.Comment,
		NonUTF8:    opts.NonUTF8,
		Modified:   modified,
		ForceZip64: opts.ForceZip64,
	}
	mode := opts.Mode
	if mode == 0 {
		mode = 0644
	}
	if isDir {
		mode |= os.ModeDir
	}
	h.SetMode(mode)
	return h, nil
}

// encodeEntryStrings decides the UTF-8 general-purpose flag bit and
// encodes name/comment accordingly, mirroring the reader's symmetric
// decode in iterator.go: CP-437 unless the text requires UTF-8 (or the
// caller forces UTF-8 via nonUTF8=false with non-ASCII content that has no
// CP-437 representation).
func encodeEntryStrings(name, comment string, nonUTF8 bool) (nameBytes, commentBytes []byte, flags uint16) {
	if nonUTF8 {
		if b, err := cp437Encode(name); err == nil {
			nameBytes = b
		} else {
			nameBytes = []byte(name)
		}
		if b, err := cp437Encode(comment); err == nil {
			commentBytes = b
		} else {
			commentBytes = []byte(comment)
		}
		return nameBytes, commentBytes, 0
	}

	nameValid, nameRequire := detectUTF8(name)
	commentValid, commentRequire := detectUTF8(comment)
	if (nameRequire || commentRequire) && nameValid && commentValid {
		return []byte(name), []byte(comment), flagUTF8
	}

	nameBytes, errName := cp437Encode(name)
	commentBytes, errComment := cp437Encode(comment)
	if errName != nil || errComment != nil {
		return []byte(name), []byte(comment), flagUTF8
	}
	return nameBytes, commentBytes, 0
}

// AddBuffer writes data as a single in-memory entry of the given
// compression method. CRC and (for Deflate) the compressed form are
// computed eagerly, before any bytes reach the sink, so the local header
// can carry real sizes immediately -- no data descriptor is needed.
func (w *Writer) AddBuffer(data []byte, name string, method uint16, opts AddOptions) (*FileHeader, error) {
	if len(data) > maxBufferSize {
		return nil, ErrBufferTooLarge
	}

	var compressed []byte
	switch method {
	case Store:
		compressed = data
	case Deflate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, err
		}
		if err := fw.Close(); err != nil {
			return nil, err
		}
		compressed = buf.Bytes()
	default:
		return nil, ErrAlgorithm
	}
	crc := crc32.ChecksumIEEE(data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(); err != nil {
		return nil, err
	}

	h, err := newHeader(name, false, opts)
	if err != nil {
		return nil, w.fail(err)
	}
	h.Method = method

	if err := w.writeKnownEntry(h, bytes.NewReader(compressed), crc, uint64(len(compressed)), uint64(len(data))); err != nil {
		return nil, w.fail(err)
	}
	return h, nil
}

// AddFile opens path, stats it for mtime, and streams its contents as a
// new entry named name. It does not pre-read the file, so CRC and sizes
// are accounted for as bytes flow, per the streamed entry-write protocol.
func (w *Writer) AddFile(path, name string, method uint16, opts AddOptions) (*FileHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return w.AddFileHandle(f, name, method, opts)
}

// AddFileHandle streams an already-open file handle's contents as a new
// entry; it does not close f.
func (w *Writer) AddFileHandle(f *os.File, name string, method uint16, opts AddOptions) (*FileHeader, error) {
	if opts.Modified.IsZero() {
		if info, err := f.Stat(); err == nil {
			opts.Modified = info.ModTime()
		}
	}
	return w.AddReadStream(f, name, method, opts)
}

// AddReadStream streams an externally supplied io.Reader as a new entry.
// CRC and sizes are unknown until the stream is exhausted, so the local
// header is written with zeroed size fields and the data-descriptor flag
// set, and a trailing ZIP64 data descriptor carries the real values.
func (w *Writer) AddReadStream(r io.Reader, name string, method uint16, opts AddOptions) (*FileHeader, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(); err != nil {
		return nil, err
	}

	h, err := newHeader(name, false, opts)
	if err != nil {
		return nil, w.fail(err)
	}
	h.Method = method

	if err := w.writeStreamedEntry(h, r); err != nil {
		return nil, w.fail(err)
	}
	return h, nil
}

// AddDirectory emits a zero-length, Store-method entry whose name is
// normalized to end in "/".
func (w *Writer) AddDirectory(name string, opts AddOptions) (*FileHeader, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(); err != nil {
		return nil, err
	}

	h, err := newHeader(name, true, opts)
	if err != nil {
		return nil, w.fail(err)
	}
	h.Method = Store

	if err := w.writeKnownEntry(h, nil, 0, 0, 0); err != nil {
		return nil, w.fail(err)
	}
	return h, nil
}

// AddEntry re-emits an entry read from a source archive. If stream is nil,
// the entry is recorded with its original relativeOffsetOfLocalHeader --
// in-place modification, where the source bytes are assumed to already sit
// at that offset in this writer's own output. Otherwise stream must yield
// the entry's raw (undecompressed) compressed-byte range; it is copied
// verbatim and re-accounted as a fresh entry at the current cursor, with no
// re-inflate/re-deflate. Name and comment are reclaimed from source,
// honoring the UTF-8 bit it carried.
func (w *Writer) AddEntry(source *Entry, stream io.Reader, opts AddOptions) (*FileHeader, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(); err != nil {
		return nil, err
	}

	if len(source.Name) > uint16max {
		return nil, w.fail(ErrNameTooLong)
	}
	comment := source.Comment
	if opts.Comment != "" {
		comment = opts.Comment
	}

	h := &FileHeader{
		Name:               source.Name,
		Comment:            comment,
		NonUTF8:            source.Flags&flagUTF8 == 0,
		Method:             source.Method,
		Modified:           source.Modified,
		ExternalAttrs:      source.ExternalAttrs,
		CRC32:              source.CRC32,
		CompressedSize64:   source.CompressedSize,
		UncompressedSize64: source.UncompressedSize,
	}

	if stream == nil {
		we := &writerEntry{
			FileHeader:                  h,
			relativeOffsetOfLocalHeader: source.relativeOffsetOfLocalHeader,
			flags:                       source.Flags,
			readerVersion:               source.ReaderVersion,
		}
		w.entries = append(w.entries, we)
		return h, nil
	}

	if err := w.writeKnownEntry(h, stream, source.CRC32, source.CompressedSize, source.UncompressedSize); err != nil {
		return nil, w.fail(err)
	}
	return h, nil
}

// RemoveEntry removes h from the to-be-serialized central directory. It
// does not rewind the output cursor; the entry's bytes remain in the data
// region as dead weight.
func (w *Writer) RemoveEntry(h *FileHeader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.entries {
		if e.FileHeader == h {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			return
		}
	}
}

// writeKnownEntry implements the entry-write protocol for the case where
// CRC and sizes are already known: the local header carries them directly,
// no data descriptor is emitted, and body (already in its final
// compressed form, or nil for a zero-length entry) is copied verbatim.
// ZIP64 local-header form is used when forceZip64 or either size exceeds
// the 32-bit limit.
func (w *Writer) writeKnownEntry(h *FileHeader, body io.Reader, crc32Value uint32, compressedSize, uncompressedSize uint64) error {
	h.CRC32 = crc32Value
	h.CompressedSize64 = compressedSize
	h.UncompressedSize64 = uncompressedSize

	nameBytes, _, utf8Flag := encodeEntryStrings(h.Name, h.Comment, h.NonUTF8)
	zip64 := h.isZip64()
	readerVersion := zipVersion20
	if zip64 {
		readerVersion = zipVersion45
	}

	cw := w.countingSink()
	offset := w.cursor

	if err := writeLocalFileHeader(cw, localFileHeaderEncoding{
		readerVersion:    uint16(readerVersion),
		flags:            utf8Flag,
		method:           h.Method,
		modifiedTime:     dosTimeWord(h.Modified),
		modifiedDate:     dosDateWord(h.Modified),
		crc32:            crc32Value,
		compressedSize:   compressedSize,
		uncompressedSize: uncompressedSize,
		name:             nameBytes,
		zip64:            zip64,
		sizesKnown:       true,
	}); err != nil {
		return err
	}
	w.cursor = uint64(cw.count)

	if body != nil {
		n, err := io.Copy(cw, body)
		if err != nil {
			return err
		}
		w.cursor = uint64(cw.count)
		if uint64(n) != compressedSize {
			return ErrSizeMismatch
		}
	}

	w.entries = append(w.entries, &writerEntry{
		FileHeader:                  h,
		relativeOffsetOfLocalHeader: offset,
		flags:                       utf8Flag,
		readerVersion:               uint16(readerVersion),
	})
	return nil
}

// writeStreamedEntry implements the entry-write protocol for the case
// where CRC and sizes are not known ahead of time: the local header is
// written with zeroed size fields, the data-descriptor flag set, and
// (since the final size could turn out to exceed 32 bits) always in ZIP64
// local-header form; the body is then streamed through the compression/
// CRC/size tap of §4.8, and a ZIP64 data descriptor follows with the real
// values.
func (w *Writer) writeStreamedEntry(h *FileHeader, body io.Reader) error {
	nameBytes, _, utf8Flag := encodeEntryStrings(h.Name, h.Comment, h.NonUTF8)
	flags := utf8Flag | flagDataDescriptor

	cw := w.countingSink()
	offset := w.cursor

	if err := writeLocalFileHeader(cw, localFileHeaderEncoding{
		readerVersion: zipVersion45,
		flags:         flags,
		method:        h.Method,
		modifiedTime:  dosTimeWord(h.Modified),
		modifiedDate:  dosDateWord(h.Modified),
		name:          nameBytes,
		zip64:         true,
		sizesKnown:    false,
	}); err != nil {
		return err
	}
	w.cursor = uint64(cw.count)

	crc32Value, compressedSize, uncompressedSize, err := streamEntryBody(cw, body, h.Method)
	if err != nil {
		return err
	}
	w.cursor = uint64(cw.count)

	h.CRC32 = crc32Value
	h.CompressedSize64 = compressedSize
	h.UncompressedSize64 = uncompressedSize

	if err := writeDataDescriptor(cw, dataDescriptorEncoding{
		crc32:            crc32Value,
		compressedSize:   compressedSize,
		uncompressedSize: uncompressedSize,
		zip64:            true,
	}); err != nil {
		return err
	}
	w.cursor = uint64(cw.count)

	w.entries = append(w.entries, &writerEntry{
		FileHeader:                  h,
		relativeOffsetOfLocalHeader: offset,
		flags:                       flags,
		readerVersion:               zipVersion45,
	})
	return nil
}

// streamEntryBody is the entry write pipeline of §4.8: a tap accumulates
// CRC-32 and uncompressed byte count as chunks flow through, deflating
// first when method is Deflate. It returns the final CRC, compressed size
// and uncompressed size.
func streamEntryBody(dst io.Writer, src io.Reader, method uint16) (crc32Value uint32, compressedSize, uncompressedSize uint64, err error) {
	h := crc32.NewIEEE()
	counted := &countWriter{w: dst}

	switch method {
	case Store:
		tap := io.MultiWriter(h, counted)
		n, err := io.Copy(tap, src)
		if err != nil {
			return 0, 0, 0, err
		}
		return h.Sum32(), uint64(n), uint64(n), nil
	case Deflate:
		fw, err := flate.NewWriter(counted, flate.DefaultCompression)
		if err != nil {
			return 0, 0, 0, err
		}
		tap := io.MultiWriter(h, fw)
		n, err := io.Copy(tap, src)
		if err != nil {
			return 0, 0, 0, err
		}
		if err := fw.Close(); err != nil {
			return 0, 0, 0, err
		}
		return h.Sum32(), uint64(counted.count), uint64(n), nil
	default:
		return 0, 0, 0, ErrAlgorithm
	}
}

func dosTimeWord(t time.Time) uint16 {
	_, timeWord := timeToDOSTime(t.UTC())
	return timeWord
}

func dosDateWord(t time.Time) uint16 {
	dateWord, _ := timeToDOSTime(t.UTC())
	return dateWord
}

// AddCentralDirectoryRecord emits one central-directory file header per
// remaining queued entry, then the EOCDR (plus a ZIP64 EOCD record and
// locator when any entry, or the directory itself, needs ZIP64
// promotion). After this call the writer is finalized: every further addX
// call fails with ErrFinalized.
func (w *Writer) AddCentralDirectoryRecord(comment string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkState(); err != nil {
		return err
	}
	if len(comment) > uint16max {
		return w.fail(ErrCommentTooLong)
	}
	if containsEOCDRSignature(comment) {
		return w.fail(ErrCommentHasEOCD)
	}

	cw := w.countingSink()
	directoryStart := w.cursor

	anyZip64 := false
	for _, e := range w.entries {
		nameBytes, commentBytes, _ := encodeEntryStrings(e.Name, e.Comment, e.NonUTF8)
		zip64 := e.isZip64() || e.relativeOffsetOfLocalHeader >= uint32max
		if zip64 {
			anyZip64 = true
		}
		if err := writeCentralDirectoryHeader(cw, centralDirectoryEncoding{
			creatorVersion:    uint16(e.creatorByte())<<8 | zipVersionMadeBy,
			readerVersion:     e.readerVersion,
			flags:             e.flags,
			method:            e.Method,
			modifiedTime:      dosTimeWord(e.Modified),
			modifiedDate:      dosDateWord(e.Modified),
			crc32:             e.CRC32,
			compressedSize:    e.CompressedSize64,
			uncompressedSize:  e.UncompressedSize64,
			externalAttrs:     e.ExternalAttrs,
			localHeaderOffset: e.relativeOffsetOfLocalHeader,
			name:              nameBytes,
			comment:           commentBytes,
			zip64:             zip64,
		}); err != nil {
			return w.fail(err)
		}
	}
	w.cursor = uint64(cw.count)
	directorySize := w.cursor - directoryStart
	records := uint64(len(w.entries))

	archiveZip64 := anyZip64 || records >= uint16max || directorySize >= uint32max || directoryStart >= uint32max

	if err := writeEOCD(cw, eocdEncoding{
		records:                   records,
		directorySize:             directorySize,
		directoryOffset:           directoryStart,
		comment:                   []byte(comment),
		zip64:                     archiveZip64,
		zip64EndOfDirectoryOffset: w.cursor,
	}); err != nil {
		return w.fail(err)
	}
	w.cursor = uint64(cw.count)

	w.finalized = true
	return nil
}

// containsEOCDRSignature reports whether s contains the raw EOCDR
// signature bytes, which would make the trailing-window search of §4.4
// ambiguous.
func containsEOCDRSignature(s string) bool {
	return bytes.Contains([]byte(s), []byte{0x50, 0x4b, 0x05, 0x06})
}

// End finalizes bookkeeping on the writer. The sink itself is owned by the
// caller and is never closed here; End only reports whether the writer
// ended in a failed state.
func (w *Writer) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}
