package sendproxy

import (
	"hash/crc32"
)

// crc32cTab CRC-32c table.
// CRC-32c uses a polynomial (0x1EDC6F41, reversed 0x82F63B78).
// This is also known as the Castagnoli CRC32 and which can compute a full 32-bit CRC step in 3 cycles.
var crc32cTab = crc32.MakeTable(crc32.Castagnoli)

// crc32cTLVLength the wire size of a CRC-32c TLV group: 1+2+4 bytes.
const crc32cTLVLength = 7

// CalcCRC32cChecksum calculate the CRC-32c checksum of raw as the 4 bytes
// carried in a PP2_TYPE_CRC32C group. the receiver recalculates it over the
// whole header with the checksum field zeroed, so raw must hold zeros in the
// checksum position.
func CalcCRC32cChecksum(raw []byte) []byte {
	sum := crc32.Checksum(raw, crc32cTab)
	return []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
}
