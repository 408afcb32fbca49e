package zip

import "hash/crc32"

// crc32Checksum computes the IEEE CRC-32 of b, used by the Info-ZIP Unicode
// Path extra field check in §4.5 step 5.
func crc32Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
