package zip

import "errors"

// Reader-side format errors.
var (
	// ErrFormat is returned when a record signature is missing or a length
	// field cannot be reconciled with the surrounding data.
	ErrFormat = errors.New("zip: not a valid zip file")
	// ErrAlgorithm is returned when an entry's compression method is
	// neither Store nor Deflate.
	ErrAlgorithm = errors.New("zip: unsupported compression method")
	// ErrChecksum is returned when decompressed data does not match the
	// entry's stored CRC-32, or when the decompressed byte count does not
	// match the stored uncompressed size.
	ErrChecksum = errors.New("zip: checksum error")
	// ErrEncrypted is returned when reading the data of an entry whose
	// general-purpose encryption bit is set.
	ErrEncrypted = errors.New("zip: entry is encrypted")
	// ErrMultiDisk is returned when the end-of-central-directory record
	// names a nonzero disk number; spanned archives are not supported.
	ErrMultiDisk = errors.New("zip: multi-disk archives are not supported")
	// ErrInvalidRange is returned when a requested byte range is outside
	// an entry's compressed size or its start lies after its end.
	ErrInvalidRange = errors.New("zip: invalid range")
)

// Writer-side validation errors.
var (
	ErrNameTooLong    = errors.New("zip: file name too long")
	ErrExtraTooLong   = errors.New("zip: extra field too long")
	ErrCommentTooLong = errors.New("zip: comment too long")
	ErrInvalidMode    = errors.New("zip: invalid file mode")
	ErrBufferTooLarge = errors.New("zip: buffer too large")
	ErrInvalidPath    = errors.New("zip: invalid entry path")
	ErrFinalized      = errors.New("zip: writer already finalized")
	ErrSizeMismatch   = errors.New("zip: declared size does not match streamed data")
	ErrCRCMismatch    = errors.New("zip: declared CRC-32 does not match streamed data")
	ErrCommentHasEOCD = errors.New("zip: archive comment contains end-of-central-directory signature")
)
