package zip

import (
	"io"
)

// readRange reads exactly length bytes at position from src. Both file
// handles (*os.File) and in-memory buffers (*bytes.Reader) implement
// io.ReaderAt, so unlike the distilled spec this is a single code path
// rather than two: Go's io.ReaderAt contract already treats a short read as
// an error, which readRange returns as is (io.EOF from a *bytes.Reader read
// past its end), or as io.ErrUnexpectedEOF if src reported none. A
// zero-length request succeeds without touching src at all.
func readRange(src io.ReaderAt, position int64, length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	buf := make([]byte, length)
	n, err := src.ReadAt(buf, position)
	if n == length {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
