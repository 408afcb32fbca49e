package zip

// EntryIterator walks an Archive's central directory lazily, one record at a
// time. It is single-consumer: create a fresh one per traversal. Usage
// mirrors bufio.Scanner:
//
//	it := archive.Iterator()
//	for it.Next() {
//		entry := it.Entry()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type EntryIterator struct {
	archive *Archive
	cursor  uint64
	remaining uint64
	entry   *Entry
	err     error
	done    bool
}

// Iterator returns a fresh, single-pass EntryIterator over a's central
// directory.
func (a *Archive) Iterator() *EntryIterator {
	return &EntryIterator{
		archive:   a,
		cursor:    a.centralDirectoryOffset,
		remaining: a.entryCount,
	}
}

// Next advances to the next entry, returning false at end of directory or on
// error (check Err to distinguish the two).
func (it *EntryIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if it.remaining == 0 {
		it.done = true
		return false
	}

	entry, next, err := parseDirectoryEntry(it.archive, it.cursor)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}

	it.entry = entry
	it.cursor = next
	it.remaining--
	return true
}

// Entry returns the entry produced by the most recent call to Next.
func (it *EntryIterator) Entry() *Entry {
	return it.entry
}

// Err returns the first error encountered during iteration, if any.
func (it *EntryIterator) Err() error {
	return it.err
}

// parseDirectoryEntry performs one iteration step of §4.5: parse the central
// directory file header at cursor, decode and resolve its fields, and return
// the materialized Entry plus the cursor position of the next record.
func parseDirectoryEntry(a *Archive, cursor uint64) (*Entry, uint64, error) {
	fixedBuf, err := readRange(a.source, int64(cursor), directoryHeaderLen)
	if err != nil {
		return nil, 0, err
	}
	h, err := parseCentralDirectoryHeader(fixedBuf)
	if err != nil {
		return nil, 0, err
	}

	tailLen := h.nameLen + h.extraLen + h.commentLen
	tail, err := readRange(a.source, int64(cursor)+directoryHeaderLen, tailLen)
	if err != nil {
		return nil, 0, err
	}
	rawName := tail[:h.nameLen]
	rawExtra := tail[h.nameLen : h.nameLen+h.extraLen]
	rawComment := tail[h.nameLen+h.extraLen:]

	nextCursor := cursor + directoryHeaderLen + uint64(tailLen)

	if h.flags&flagStrongEncryption != 0 {
		return nil, 0, ErrEncrypted
	}

	e := &Entry{
		archive:                     a,
		CreatorVersion:              h.creatorVersion,
		ReaderVersion:               h.readerVersion,
		Flags:                       h.flags,
		Method:                      h.method,
		CRC32:                       h.crc32,
		ExternalAttrs:               h.externalAttrs,
		UncompressedSize:            uint64(h.uncompressedSize),
		CompressedSize:              uint64(h.compressedSize),
		relativeOffsetOfLocalHeader: uint64(h.localHeaderOffset),
		diskNumberStart:             uint32(h.diskNumberStart),
		Modified:                    dosTimeToTime(h.modifiedDate, h.modifiedTime),
		Encrypted:                   h.flags&flagEncrypted != 0,
	}

	switch h.method {
	case Store:
		e.Compressed = false
	case Deflate:
		e.Compressed = true
	}

	if err := resolveZip64(e, h, rawExtra); err != nil {
		return nil, 0, err
	}

	if h.flags&flagUTF8 != 0 {
		e.Name = string(rawName)
		e.Comment = string(rawComment)
	} else {
		e.Name = cp437Decode(rawName, 0, len(rawName))
		e.Comment = cp437Decode(rawComment, 0, len(rawComment))
	}

	if h.flags&flagUTF8 == 0 {
		if unicodeName, ok := resolveUnicodePathExtra(rawExtra, rawName); ok {
			e.Name = unicodeName
		}
	}

	return e, nextCursor, nil
}

// resolveZip64 reads the ZIP64 extended information extra field (id 0x0001)
// in order -- uncompressed size, compressed size, offset, disk number -- but
// only for the fields whose stored 32-bit value was the sentinel, per §4.5
// step 4. It fails if the extra field is missing or its payload ends early.
func resolveZip64(e *Entry, h centralDirectoryHeader, rawExtra []byte) error {
	needUncompressed := h.uncompressedSize == uint32max
	needCompressed := h.compressedSize == uint32max
	needOffset := h.localHeaderOffset == uint32max
	needDisk := h.diskNumberStart == uint16max

	if !needUncompressed && !needCompressed && !needOffset && !needDisk {
		return nil
	}

	fields, err := parseExtraFields(rawExtra)
	if err != nil {
		return err
	}

	for _, f := range fields {
		if f.id != zip64ExtraID {
			continue
		}
		r := readBuf(f.data)
		if needUncompressed {
			if len(r) < 8 {
				return ErrFormat
			}
			e.UncompressedSize = r.uint64()
			needUncompressed = false
		}
		if needCompressed {
			if len(r) < 8 {
				return ErrFormat
			}
			e.CompressedSize = r.uint64()
			needCompressed = false
		}
		if needOffset {
			if len(r) < 8 {
				return ErrFormat
			}
			e.relativeOffsetOfLocalHeader = r.uint64()
			needOffset = false
		}
		if needDisk {
			if len(r) < 4 {
				return ErrFormat
			}
			e.diskNumberStart = r.uint32()
			needDisk = false
		}
		break
	}

	if needUncompressed || needCompressed || needOffset || needDisk {
		return ErrFormat
	}
	return nil
}

// resolveUnicodePathExtra honors the Info-ZIP Unicode Path extra field
// (id 0x7075) per §4.5 step 5: payload is {version:u8, nameCrc:u32,
// utf8Name:[]u8}. It is accepted only when version == 1 and nameCrc matches
// CRC-32 of the header's raw (non-UTF8-decoded) file name bytes.
func resolveUnicodePathExtra(rawExtra []byte, rawName []byte) (string, bool) {
	fields, err := parseExtraFields(rawExtra)
	if err != nil {
		return "", false
	}
	for _, f := range fields {
		if f.id != infoZipUnicodePathID || len(f.data) < 5 {
			continue
		}
		r := readBuf(f.data)
		version := r.uint8()
		nameCRC := r.uint32()
		if version != 1 {
			continue
		}
		if nameCRC != crc32Checksum(rawName) {
			continue
		}
		return string(r), true
	}
	return "", false
}
