package zip

import (
	"os"
	"time"
	"unicode/utf8"
)

// Compression methods recognized by this package.
const (
	Store   uint16 = 0 // no compression
	Deflate uint16 = 8 // DEFLATE compressed (raw, no zlib/gzip wrapper)
)

// FileHeader describes a file to be added to an archive by a Writer.
//
// Most fields are optional; the Writer fills in reasonable defaults
// (Method defaults to Store, Modified defaults to the zero time encoded as
// 1980-01-01). CRC32 and the size fields are set by the Writer when the
// entry is written; values a caller puts there beforehand are not used.
type FileHeader struct {
	// Name is the archive-relative entry name. It is validated and
	// normalized by the Writer per Invariant 3: non-empty, relative, no
	// ".." segment, backslashes normalized to "/". A trailing slash marks
	// a directory entry.
	Name string

	// Comment is an arbitrary user string, at most 65535 bytes once
	// encoded.
	Comment string

	// NonUTF8 indicates that Name and Comment should be encoded as
	// CP-437 rather than UTF-8. If the strings are not representable in
	// CP-437, adding the entry fails.
	NonUTF8 bool

	// Method is the compression method: Store or Deflate. The zero value
	// is Store.
	Method uint16

	// Modified is the modification time of the entry, interpreted in
	// UTC.
	Modified time.Time

	// ExternalAttrs holds the POSIX mode (high 16 bits) and any other
	// platform-specific attribute bits. Use SetMode/Mode to manipulate it
	// in terms of os.FileMode.
	ExternalAttrs uint32

	// ForceZip64 forces ZIP64 encoding of this entry's local header and
	// central directory record even if its sizes and offset would
	// otherwise fit in 32 bits.
	ForceZip64 bool

	// CRC32, CompressedSize64 and UncompressedSize64 are computed by the
	// Writer for AddBuffer, AddFile, AddFileHandle and AddReadStream;
	// AddReadStream takes no pre-declared values to check the stream
	// against. AddEntry copies them from the source Entry and checks only
	// that the copied byte count equals CompressedSize64; the CRC-32 is
	// not recomputed.
	CRC32              uint32
	CompressedSize64   uint64
	UncompressedSize64 uint64
}

// isZip64 reports whether the entry's sizes exceed the 32-bit limit, per
// Invariant 5.
func (h *FileHeader) isZip64() bool {
	return h.ForceZip64 || h.CompressedSize64 >= uint32max || h.UncompressedSize64 >= uint32max
}

// IsDir reports whether the entry's name ends in "/".
func (h *FileHeader) IsDir() bool {
	return len(h.Name) > 0 && h.Name[len(h.Name)-1] == '/'
}

const (
	// Unix mode bits. The zip specification doesn't mention them, but
	// these are the values agreed on by tools.
	unixIFMT   = 0xf000
	unixIFSOCK = 0xc000
	unixIFLNK  = 0xa000
	unixIFREG  = 0x8000
	unixIFBLK  = 0x6000
	unixIFDIR  = 0x4000
	unixIFCHR  = 0x2000
	unixIFIFO  = 0x1000
	unixISUID  = 0x800
	unixISGID  = 0x400
	unixISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01
)

// creatorByte returns the host byte for the "version made by" field. It is
// always creatorUnix, the convention SetMode stores ExternalAttrs in.
func (h *FileHeader) creatorByte() byte {
	return creatorUnix
}

// SetMode stores mode's permission and type bits into ExternalAttrs using
// the Unix convention (high 16 bits), plus a best-effort MS-DOS mirror.
func (h *FileHeader) SetMode(mode os.FileMode) {
	h.ExternalAttrs = fileModeToUnixMode(mode) << 16
	if mode&os.ModeDir != 0 {
		h.ExternalAttrs |= msdosDir
	}
	if mode&0200 == 0 {
		h.ExternalAttrs |= msdosReadOnly
	}
}

// Mode decodes ExternalAttrs as a Unix mode into an os.FileMode.
func (h *FileHeader) Mode() os.FileMode {
	mode := unixModeToFileMode(h.ExternalAttrs >> 16)
	if h.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

func fileModeToUnixMode(mode os.FileMode) uint32 {
	var m uint32
	switch mode & os.ModeType {
	default:
		m = unixIFREG
	case os.ModeDir:
		m = unixIFDIR
	case os.ModeSymlink:
		m = unixIFLNK
	case os.ModeNamedPipe:
		m = unixIFIFO
	case os.ModeSocket:
		m = unixIFSOCK
	case os.ModeDevice:
		if mode&os.ModeCharDevice != 0 {
			m = unixIFCHR
		} else {
			m = unixIFBLK
		}
	}
	if mode&os.ModeSetuid != 0 {
		m |= unixISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= unixISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= unixISVTX
	}
	return m | uint32(mode&0777)
}

func unixModeToFileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0777)
	switch m & unixIFMT {
	case unixIFBLK:
		mode |= os.ModeDevice
	case unixIFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case unixIFDIR:
		mode |= os.ModeDir
	case unixIFIFO:
		mode |= os.ModeNamedPipe
	case unixIFLNK:
		mode |= os.ModeSymlink
	case unixIFSOCK:
		mode |= os.ModeSocket
	}
	if m&unixISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&unixISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&unixISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// detectUTF8 reports whether s is valid UTF-8, and whether it must be
// considered UTF-8 (i.e. not compatible with CP-437/ASCII).
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// Entry describes a file found while iterating an Archive's central
// directory. Unlike FileHeader (write-side), all size/offset fields have
// already been resolved from the ZIP64 extra field where the stored 32-bit
// value was the sentinel 0xFFFFFFFF/0xFFFF.
type Entry struct {
	Name    string
	Comment string

	CreatorVersion uint16
	ReaderVersion  uint16
	Flags          uint16
	Method         uint16
	Modified       time.Time
	CRC32          uint32
	ExternalAttrs  uint32

	UncompressedSize            uint64
	CompressedSize               uint64
	relativeOffsetOfLocalHeader uint64
	diskNumberStart              uint32

	// Encrypted reports whether the general-purpose encryption bit is
	// set. Reading data from such an entry always fails.
	Encrypted bool
	// Compressed is true for Deflate, false for Store. Any other method
	// offers neither a decompression path nor a Store-style pass-through;
	// Open always fails with ErrAlgorithm for such entries.
	Compressed bool

	archive *Archive
}

// IsDir reports whether the entry's name ends in "/".
func (e *Entry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

// Mode decodes ExternalAttrs as a Unix or MS-DOS mode into an os.FileMode,
// depending on the high byte of CreatorVersion.
func (e *Entry) Mode() os.FileMode {
	var mode os.FileMode
	switch e.CreatorVersion >> 8 {
	case creatorUnix, creatorMacOSX:
		mode = unixModeToFileMode(e.ExternalAttrs >> 16)
	case creatorNTFS, creatorVFAT, creatorFAT:
		mode = msdosModeToFileMode(e.ExternalAttrs)
	}
	if e.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

func msdosModeToFileMode(m uint32) (mode os.FileMode) {
	if m&msdosDir != 0 {
		mode = os.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}
