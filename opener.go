package zip

import (
	"io"
)

// Archive is an opened ZIP archive ready for central-directory iteration. It
// borrows source for the lifetime of the Archive and of every Entry stream
// it produces; the caller must keep source available (and close it, if it
// needs closing) for at least that long.
type Archive struct {
	source                  io.ReaderAt
	size                    int64
	centralDirectoryOffset  uint64
	entryCount              uint64
	Comment                 string
}

// maxEOCDRSearch is the largest trailing window ever searched for the EOCDR:
// the fixed record plus the largest possible comment.
const maxEOCDRSearch = directoryEndLen + uint16max

// OpenArchive locates the end-of-central-directory record within source
// (which has the given total size), promoting to ZIP64 when the classic
// EOCDR's sentinels demand it, and returns an Archive ready for iteration
// with Iterator.
func OpenArchive(source io.ReaderAt, size int64) (*Archive, error) {
	eocdPos, eocd, err := findEOCDR(source, size)
	if err != nil {
		return nil, err
	}

	if eocd.diskNumber != 0 {
		return nil, ErrMultiDisk
	}

	directoryRecords := eocd.directoryRecords
	directoryOffset := eocd.directoryOffset

	if directoryRecords == uint16max || directoryOffset == uint32max {
		locPos := eocdPos - directory64LocLen
		if locPos < 0 {
			return nil, ErrFormat
		}
		locBuf, err := readRange(source, locPos, directory64LocLen)
		if err != nil {
			return nil, err
		}
		loc, err := parseDirectory64Locator(locBuf)
		if err != nil {
			return nil, err
		}

		endBuf, err := readRange(source, int64(loc.directory64EndOffset), directory64EndLen)
		if err != nil {
			return nil, err
		}
		end, err := parseDirectory64End(endBuf)
		if err != nil {
			return nil, err
		}
		directoryRecords = end.directoryRecords
		directoryOffset = end.directoryOffset
	}

	return &Archive{
		source:                 source,
		size:                   size,
		centralDirectoryOffset: directoryOffset,
		entryCount:             directoryRecords,
		Comment:                eocd.comment,
	}, nil
}

// findEOCDR performs the trailing-window search described in §4.4: read the
// last min(size, maxEOCDRSearch) bytes, then scan backwards for the EOCDR
// signature, accepting the first candidate (scanning from the end) whose
// encoded comment length matches the number of trailing bytes actually
// present. The EOCDR is inherently ambiguous if the comment itself contains
// a valid-looking signature; this resolves the ambiguity the same way
// widely-used decoders do, by taking the last plausible match.
func findEOCDR(source io.ReaderAt, size int64) (int64, directoryEnd, error) {
	windowLen := int64(maxEOCDRSearch)
	if windowLen > size {
		windowLen = size
	}
	windowStart := size - windowLen

	buf, err := readRange(source, windowStart, int(windowLen))
	if err != nil {
		return 0, directoryEnd{}, err
	}

	for i := len(buf) - directoryEndLen; i >= 0; i-- {
		if buf[i] != 'P' || buf[i+1] != 'K' || buf[i+2] != 0x05 || buf[i+3] != 0x06 {
			continue
		}
		commentLen := int(buf[i+directoryEndLen-2]) | int(buf[i+directoryEndLen-1])<<8
		if commentLen != len(buf)-directoryEndLen-i {
			continue
		}
		eocd, err := parseEOCDR(buf[i:])
		if err != nil {
			continue
		}
		return windowStart + int64(i), eocd, nil
	}

	return 0, directoryEnd{}, ErrFormat
}
