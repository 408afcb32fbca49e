package zip

import "encoding/binary"

// Signatures and fixed record sizes, per PKWARE APPNOTE 6.3.
const (
	fileHeaderSignature      = 0x04034b50
	directoryHeaderSignature = 0x02014b50
	directoryEndSignature    = 0x06054b50
	directory64LocSignature  = 0x07064b50
	directory64EndSignature  = 0x06064b50
	dataDescriptorSignature  = 0x08074b50 // de-facto standard; required by OS X Finder

	fileHeaderLen      = 30 // + filename + extra
	directoryHeaderLen = 46 // + filename + extra + comment
	directoryEndLen    = 22 // + comment
	dataDescriptorLen  = 16 // signature, crc32, compressed size, size (all uint32)
	dataDescriptor64Len = 24 // signature, crc32, compressed size, size (uint64 sizes)
	directory64LocLen  = 20
	directory64EndLen  = 56 // + extensible data sector
	extTimeExtraLen    = 9  // 2*sizeof(uint16) + sizeof(uint8) + sizeof(uint32)

	zipVersion20 = 20 // 2.0
	zipVersion45 = 45 // 4.5 (zip64 support)

	// zipVersionMadeBy is the low byte ("spec version") of the central
	// directory's "version made by" field: (3<<8)|63, Unix host, spec 6.3.
	zipVersionMadeBy = 63

	uint16max = 1<<16 - 1
	uint32max = 1<<32 - 1

	// Extra field IDs.
	zip64ExtraID        = 0x0001 // Zip64 extended information
	extTimeExtraID       = 0x5455 // Extended timestamp
	infoZipUnicodePathID = 0x7075 // Info-ZIP Unicode Path Extra Field

	// General purpose bit flags.
	flagEncrypted         = 0x0001
	flagDataDescriptor     = 0x0008
	flagStrongEncryption   = 0x0040
	flagUTF8               = 0x0800

	// Constants for the high byte of the "version made by" field.
	creatorFAT    = 0
	creatorUnix   = 3
	creatorNTFS   = 11
	creatorVFAT   = 14
	creatorMacOSX = 19
)

// writeBuf is a cursor into a fixed-size scratch buffer used to lay out
// little-endian fields without repeated bounds checks at each call site.
type writeBuf []byte

func (b *writeBuf) uint8(v uint8) {
	(*b)[0] = v
	*b = (*b)[1:]
}

func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}

func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}

func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64(*b, v)
	*b = (*b)[8:]
}

func (b *writeBuf) skip(n int) {
	*b = (*b)[n:]
}

// readBuf is the symmetric parsing counterpart of writeBuf.
type readBuf []byte

func (b *readBuf) uint8() uint8 {
	v := (*b)[0]
	*b = (*b)[1:]
	return v
}

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) uint64() uint64 {
	v := binary.LittleEndian.Uint64(*b)
	*b = (*b)[8:]
	return v
}

func (b *readBuf) skip(n int) {
	*b = (*b)[n:]
}

// sub consumes and returns the next n bytes.
func (b *readBuf) sub(n int) readBuf {
	v := (*b)[:n]
	*b = (*b)[n:]
	return v
}

// localFileHeader is the parsed, fixed-size portion of a local file header
// (APPNOTE 4.3.7), before the variable-length name/extra tail.
type localFileHeader struct {
	readerVersion    uint16
	flags            uint16
	method           uint16
	modifiedTime     uint16
	modifiedDate     uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	nameLen          int
	extraLen         int
}

// parseLocalFileHeader parses the fixed 30-byte local file header from b,
// which must be exactly fileHeaderLen bytes. The signature is validated.
func parseLocalFileHeader(b []byte) (localFileHeader, error) {
	if len(b) != fileHeaderLen {
		return localFileHeader{}, ErrFormat
	}
	r := readBuf(b)
	if sig := r.uint32(); sig != fileHeaderSignature {
		return localFileHeader{}, ErrFormat
	}
	var h localFileHeader
	h.readerVersion = r.uint16()
	h.flags = r.uint16()
	h.method = r.uint16()
	h.modifiedTime = r.uint16()
	h.modifiedDate = r.uint16()
	h.crc32 = r.uint32()
	h.compressedSize = r.uint32()
	h.uncompressedSize = r.uint32()
	h.nameLen = int(r.uint16())
	h.extraLen = int(r.uint16())
	return h, nil
}

// localFileHeaderEncoding describes the values that writeLocalFileHeader
// should serialize; sizesKnown false means zero-fill size/CRC fields. flags
// is written as given: the caller sets the data-descriptor flag bit.
type localFileHeaderEncoding struct {
	readerVersion    uint16
	flags            uint16
	method           uint16
	modifiedTime     uint16
	modifiedDate     uint16
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	name             []byte
	extra            []byte
	zip64            bool
	sizesKnown       bool
}

// writeLocalFileHeader serializes a local file header plus name and extra
// field tail to w.
func writeLocalFileHeader(w *countWriter, e localFileHeaderEncoding) error {
	extra := e.extra
	readerVersion := e.readerVersion
	if e.zip64 {
		readerVersion = zipVersion45
		var zbuf [20]byte
		zb := writeBuf(zbuf[:])
		zb.uint16(zip64ExtraID)
		zb.uint16(16)
		if e.sizesKnown {
			zb.uint64(e.uncompressedSize)
			zb.uint64(e.compressedSize)
		} else {
			zb.uint64(0)
			zb.uint64(0)
		}
		extra = append(append([]byte{}, extra...), zbuf[:]...)
	}

	var buf [fileHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(fileHeaderSignature)
	b.uint16(readerVersion)
	b.uint16(e.flags)
	b.uint16(e.method)
	b.uint16(e.modifiedTime)
	b.uint16(e.modifiedDate)
	if !e.sizesKnown {
		b.uint32(0)
		b.uint32(0)
		b.uint32(0)
	} else {
		b.uint32(e.crc32)
		if e.zip64 {
			b.uint32(uint32max)
			b.uint32(uint32max)
		} else {
			b.uint32(uint32(e.compressedSize))
			b.uint32(uint32(e.uncompressedSize))
		}
	}
	b.uint16(uint16(len(e.name)))
	b.uint16(uint16(len(extra)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.name); err != nil {
		return err
	}
	_, err := w.Write(extra)
	return err
}

// dataDescriptorEncoding describes a trailing data descriptor record.
type dataDescriptorEncoding struct {
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	zip64            bool
}

func writeDataDescriptor(w *countWriter, d dataDescriptorEncoding) error {
	var buf []byte
	if d.zip64 {
		buf = make([]byte, dataDescriptor64Len)
	} else {
		buf = make([]byte, dataDescriptorLen)
	}
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(d.crc32)
	if d.zip64 {
		b.uint64(d.compressedSize)
		b.uint64(d.uncompressedSize)
	} else {
		b.uint32(uint32(d.compressedSize))
		b.uint32(uint32(d.uncompressedSize))
	}
	_, err := w.Write(buf)
	return err
}

// parseDataDescriptor reads a 16 or 24-byte data descriptor from r,
// depending on zip64. A leading signature word is optional per APPNOTE but
// near-universal; it is consumed if present.
func parseDataDescriptor(b []byte, zip64 bool) (crc32 uint32, compressedSize, uncompressedSize uint64) {
	r := readBuf(b)
	if len(b) >= 4 && binary.LittleEndian.Uint32(b) == dataDescriptorSignature {
		r.skip(4)
	}
	crc32 = r.uint32()
	if zip64 {
		compressedSize = r.uint64()
		uncompressedSize = r.uint64()
	} else {
		compressedSize = uint64(r.uint32())
		uncompressedSize = uint64(r.uint32())
	}
	return
}

// centralDirectoryHeader is the parsed fixed-size portion of a central
// directory file header (APPNOTE 4.3.12).
type centralDirectoryHeader struct {
	creatorVersion   uint16
	readerVersion    uint16
	flags            uint16
	method           uint16
	modifiedTime     uint16
	modifiedDate     uint16
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
	nameLen          int
	extraLen         int
	commentLen       int
	diskNumberStart  uint16
	internalAttrs    uint16
	externalAttrs    uint32
	localHeaderOffset uint32
}

func parseCentralDirectoryHeader(b []byte) (centralDirectoryHeader, error) {
	if len(b) != directoryHeaderLen {
		return centralDirectoryHeader{}, ErrFormat
	}
	r := readBuf(b)
	if sig := r.uint32(); sig != directoryHeaderSignature {
		return centralDirectoryHeader{}, ErrFormat
	}
	var h centralDirectoryHeader
	h.creatorVersion = r.uint16()
	h.readerVersion = r.uint16()
	h.flags = r.uint16()
	h.method = r.uint16()
	h.modifiedTime = r.uint16()
	h.modifiedDate = r.uint16()
	h.crc32 = r.uint32()
	h.compressedSize = r.uint32()
	h.uncompressedSize = r.uint32()
	h.nameLen = int(r.uint16())
	h.extraLen = int(r.uint16())
	h.commentLen = int(r.uint16())
	h.diskNumberStart = r.uint16()
	h.internalAttrs = r.uint16()
	h.externalAttrs = r.uint32()
	h.localHeaderOffset = r.uint32()
	return h, nil
}

// centralDirectoryEncoding describes the values writeCentralDirectoryHeader
// should serialize.
type centralDirectoryEncoding struct {
	creatorVersion    uint16
	readerVersion     uint16
	flags             uint16
	method            uint16
	modifiedTime      uint16
	modifiedDate      uint16
	crc32             uint32
	compressedSize    uint64
	uncompressedSize  uint64
	externalAttrs     uint32
	localHeaderOffset uint64
	name              []byte
	extra             []byte
	comment           []byte
	zip64             bool
}

func writeCentralDirectoryHeader(w *countWriter, e centralDirectoryEncoding) error {
	readerVersion := e.readerVersion
	extra := e.extra

	var buf [directoryHeaderLen]byte
	b := writeBuf(buf[:])
	b.uint32(directoryHeaderSignature)
	b.uint16(e.creatorVersion)

	compressedSize32, uncompressedSize32, offset32 := uint32(e.compressedSize), uint32(e.uncompressedSize), uint32(e.localHeaderOffset)
	if e.zip64 {
		readerVersion = zipVersion45
		compressedSize32, uncompressedSize32, offset32 = uint32max, uint32max, uint32max

		var zbuf [28]byte
		zb := writeBuf(zbuf[:])
		zb.uint16(zip64ExtraID)
		zb.uint16(24)
		zb.uint64(e.uncompressedSize)
		zb.uint64(e.compressedSize)
		zb.uint64(e.localHeaderOffset)
		extra = append(append([]byte{}, extra...), zbuf[:]...)
	}

	b.uint16(readerVersion)
	b.uint16(e.flags)
	b.uint16(e.method)
	b.uint16(e.modifiedTime)
	b.uint16(e.modifiedDate)
	b.uint32(e.crc32)
	b.uint32(compressedSize32)
	b.uint32(uncompressedSize32)
	b.uint16(uint16(len(e.name)))
	b.uint16(uint16(len(extra)))
	b.uint16(uint16(len(e.comment)))
	b.uint16(0) // disk number start
	b.uint16(0) // internal file attributes
	b.uint32(e.externalAttrs)
	b.uint32(offset32)
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if _, err := w.Write(e.name); err != nil {
		return err
	}
	if _, err := w.Write(extra); err != nil {
		return err
	}
	_, err := w.Write(e.comment)
	return err
}

// directoryEnd holds the fields of the (possibly zip64-promoted) end of
// central directory record, after any zip64 locator/record has already been
// folded in by the caller.
type directoryEnd struct {
	diskNumber        uint16
	directoryRecords  uint64
	directorySize     uint64
	directoryOffset   uint64
	comment           string
}

func parseEOCDR(b []byte) (directoryEnd, error) {
	if len(b) < directoryEndLen {
		return directoryEnd{}, ErrFormat
	}
	r := readBuf(b)
	if sig := r.uint32(); sig != directoryEndSignature {
		return directoryEnd{}, ErrFormat
	}
	var d directoryEnd
	d.diskNumber = r.uint16()
	r.skip(2) // disk with start of central directory
	r.skip(2) // central directory records on this disk
	d.directoryRecords = uint64(r.uint16())
	d.directorySize = uint64(r.uint32())
	d.directoryOffset = uint64(r.uint32())
	commentLen := int(r.uint16())
	if len(b) < directoryEndLen+commentLen {
		return directoryEnd{}, ErrFormat
	}
	d.comment = string(b[directoryEndLen : directoryEndLen+commentLen])
	return d, nil
}

// directory64Locator is the zip64 end of central directory locator
// (APPNOTE 4.3.15).
type directory64Locator struct {
	directory64EndOffset uint64
}

func parseDirectory64Locator(b []byte) (directory64Locator, error) {
	if len(b) != directory64LocLen {
		return directory64Locator{}, ErrFormat
	}
	r := readBuf(b)
	if sig := r.uint32(); sig != directory64LocSignature {
		return directory64Locator{}, ErrFormat
	}
	r.skip(4) // disk with start of zip64 EOCD record
	offset := r.uint64()
	return directory64Locator{directory64EndOffset: offset}, nil
}

// directory64End is the zip64 end of central directory record
// (APPNOTE 4.3.14), sans its extensible data sector.
type directory64End struct {
	directoryRecords uint64
	directorySize    uint64
	directoryOffset  uint64
}

func parseDirectory64End(b []byte) (directory64End, error) {
	if len(b) < directory64EndLen {
		return directory64End{}, ErrFormat
	}
	r := readBuf(b)
	if sig := r.uint32(); sig != directory64EndSignature {
		return directory64End{}, ErrFormat
	}
	r.skip(8) // size of this record - 12
	r.skip(2) // version made by
	r.skip(2) // version needed to extract
	r.skip(4) // number of this disk
	r.skip(4) // disk with start of central directory
	r.skip(8) // entries on this disk
	var d directory64End
	d.directoryRecords = r.uint64()
	d.directorySize = r.uint64()
	d.directoryOffset = r.uint64()
	return d, nil
}

// eocdEncoding describes the trailing records (optional zip64 end record +
// locator, then the classic EOCDR) written at finalize.
type eocdEncoding struct {
	records                 uint64
	directorySize            uint64
	directoryOffset          uint64
	comment                  []byte
	zip64                    bool
	zip64EndOfDirectoryOffset uint64
}

func writeEOCD(w *countWriter, e eocdEncoding) error {
	records, size, offset := e.records, e.directorySize, e.directoryOffset

	if e.zip64 {
		var buf [directory64EndLen + directory64LocLen]byte
		b := writeBuf(buf[:])
		b.uint32(directory64EndSignature)
		b.uint64(directory64EndLen - 12)
		b.uint16(zipVersion45)
		b.uint16(zipVersion45)
		b.uint32(0)
		b.uint32(0)
		b.uint64(records)
		b.uint64(records)
		b.uint64(size)
		b.uint64(offset)

		b.uint32(directory64LocSignature)
		b.uint32(0)
		b.uint64(e.zip64EndOfDirectoryOffset)
		b.uint32(1)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}

		records, size, offset = uint16max, uint32max, uint32max
	}

	var buf [directoryEndLen]byte
	b := writeBuf(buf[:])
	b.uint32(directoryEndSignature)
	b.skip(4) // disk number, disk with central directory start
	b.uint16(uint16(records))
	b.uint16(uint16(records))
	b.uint32(uint32(size))
	b.uint32(uint32(offset))
	b.uint16(uint16(len(e.comment)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := w.Write(e.comment)
	return err
}

// extraField is one {id, size, data} tuple from an extra-field TLV list.
type extraField struct {
	id   uint16
	data []byte
}

// parseExtraFields decodes a concatenation of {id:u16, size:u16, data} TLV
// tuples. It fails if a declared size extends past the end of b.
func parseExtraFields(b []byte) ([]extraField, error) {
	var fields []extraField
	r := readBuf(b)
	for len(r) >= 4 {
		id := r.uint16()
		size := int(r.uint16())
		if len(r) < size {
			return nil, ErrFormat
		}
		fields = append(fields, extraField{id: id, data: append([]byte{}, r.sub(size)...)})
	}
	return fields, nil
}

// countWriter wraps an io.Writer, counting bytes written through it. It is
// used by the writer state machine to track the output cursor.
type countWriter struct {
	w     writerAt
	count int64
}

// writerAt is the minimal interface countWriter needs: plain io.Writer.
type writerAt interface {
	Write(p []byte) (int, error)
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.count += int64(n)
	return n, err
}
