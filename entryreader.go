package zip

import (
	"compress/flate"
	"hash"
	"hash/crc32"
	"io"
)

// Open returns a reader over the entry's decompressed, validated data: the
// full compressed range, inflated if Method is Deflate, with a trailing
// check that the byte count and CRC-32 match the central directory record.
// For unsupported compression methods, Open fails with ErrAlgorithm; for
// encrypted entries, with ErrEncrypted.
func (e *Entry) Open() (io.Reader, error) {
	if e.Encrypted {
		return nil, ErrEncrypted
	}
	dataOffset, err := e.dataOffset()
	if err != nil {
		return nil, err
	}

	src := io.NewSectionReader(e.archive.source, int64(dataOffset), int64(e.CompressedSize))

	var r io.Reader
	switch e.Method {
	case Store:
		r = src
	case Deflate:
		r = flate.NewReader(src)
	default:
		return nil, ErrAlgorithm
	}

	return &validatingReader{
		r:          r,
		hash:       crc32.NewIEEE(),
		wantSize:   e.UncompressedSize,
		wantCRC32:  e.CRC32,
	}, nil
}

// OpenRange returns a reader over exactly the compressed byte range
// [start, end) of the entry, with no decompression and no validation: range
// reads and validation/decompression are mutually exclusive per §4.6,
// because a byte range of a compressed stream carries no standalone
// meaning. Both bounds must satisfy 0 <= start <= end <= entry's compressed
// size.
func (e *Entry) OpenRange(start, end uint64) (io.Reader, error) {
	if e.Encrypted {
		return nil, ErrEncrypted
	}
	if start > end || end > e.CompressedSize {
		return nil, ErrInvalidRange
	}
	dataOffset, err := e.dataOffset()
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(e.archive.source, int64(dataOffset)+int64(start), int64(end-start)), nil
}

// dataOffset re-reads the local file header at
// relativeOffsetOfLocalHeader to discover the actual local name/extra-field
// lengths, which per §4.6 may differ from the central directory's, and
// returns the offset where file data begins.
func (e *Entry) dataOffset() (uint64, error) {
	fixedBuf, err := readRange(e.archive.source, int64(e.relativeOffsetOfLocalHeader), fileHeaderLen)
	if err != nil {
		return 0, err
	}
	lh, err := parseLocalFileHeader(fixedBuf)
	if err != nil {
		return 0, err
	}
	return e.relativeOffsetOfLocalHeader + fileHeaderLen + uint64(lh.nameLen) + uint64(lh.extraLen), nil
}

// validatingReader wraps a decompression pipeline, accumulating a CRC-32 and
// byte count as data flows through. On end-of-stream it fails if the byte
// count or CRC-32 disagree with the values recorded in the central
// directory; it fails early, mid-stream, if more bytes are produced than
// expected.
type validatingReader struct {
	r         io.Reader
	hash      hash.Hash32
	read      uint64
	wantSize  uint64
	wantCRC32 uint32
}

func (v *validatingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.hash.Write(p[:n])
		v.read += uint64(n)
		if v.read > v.wantSize {
			return n, ErrChecksum
		}
	}
	if err == io.EOF {
		if v.read != v.wantSize || v.hash.Sum32() != v.wantCRC32 {
			return n, ErrChecksum
		}
	}
	return n, err
}
