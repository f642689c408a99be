package channel

import (
	"encoding/binary"
	"io"
)

// oggCRC32Table is Ogg's custom CRC-32 (polynomial 0x04c11db7, unreflected),
// distinct from the reflected polynomial zlib/hash/crc32's IEEE table uses,
// so it cannot be built with crc32.MakeTable and is computed by hand here.
var oggCRC32Table [256]uint32

func init() {
	const poly = uint32(0x04c11db7)
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		oggCRC32Table[i] = crc
	}
}

func oggCRC32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRC32Table[byte(crc>>24)^b]
	}
	return crc
}

// oggPageWriter wraps a FLAC byte stream in Ogg pages (the "Ogg-FLAC"
// mapping), at most 255 lacing segments of up to 255 bytes per page, with
// the page's checksum field zeroed during CRC computation per the Ogg
// container spec. The first page it writes carries the BOS flag.
type oggPageWriter struct {
	dst        io.Writer
	serial     uint32
	sequence   uint32
	granulePos uint64
}

func newOggPageWriter(dst io.Writer, serial uint32) *oggPageWriter {
	return &oggPageWriter{dst: dst, serial: serial}
}

// WritePage frames payload as one packet over one or more Ogg pages
// (splitting if it exceeds the 255*255 byte single-page limit). Every page
// but the last leaves the packet unterminated (its lacing table ends with
// 255); only the last page ends with a value below 255.
func (w *oggPageWriter) WritePage(payload []byte, continued, last bool) error {
	const maxPayload = 255 * 255

	for len(payload) > 0 {
		chunk := payload
		isFinalChunk := true
		if len(chunk) > maxPayload {
			chunk = chunk[:maxPayload]
			isFinalChunk = false
		}

		if err := w.writeSinglePage(chunk, continued, last && isFinalChunk, isFinalChunk); err != nil {
			return err
		}
		continued = !isFinalChunk
		payload = payload[len(chunk):]
	}
	return nil
}

func (w *oggPageWriter) writeSinglePage(payload []byte, continued, last, terminated bool) error {
	segments := lacingValues(len(payload))
	if !terminated {
		// The packet continues on the next page: drop the closing value.
		segments = segments[:len(segments)-1]
	}

	header := make([]byte, 27+len(segments))
	copy(header[0:4], []byte("OggS"))
	header[4] = 0 // version

	var flags byte
	if continued {
		flags |= 0x01
	}
	if w.sequence == 0 {
		flags |= 0x02
	}
	if last {
		flags |= 0x04
	}
	header[5] = flags

	binary.LittleEndian.PutUint64(header[6:14], w.granulePos)
	binary.LittleEndian.PutUint32(header[14:18], w.serial)
	binary.LittleEndian.PutUint32(header[18:22], w.sequence)
	// header[22:26] is the checksum, left zero for the CRC pass below.
	header[26] = byte(len(segments))
	copy(header[27:], segments)

	page := append(header, payload...)
	// Checksum is computed over the whole page with the checksum field
	// zeroed, then written back into that field.
	crc := oggCRC32(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)

	w.sequence++
	_, err := w.dst.Write(page)
	return err
}

// lacingValues builds an Ogg lacing table for a payload of length n: as many
// 255-value segments as fit, followed by the remainder (which may be 0).
func lacingValues(n int) []byte {
	var segs []byte
	for n >= 255 {
		segs = append(segs, 255)
		n -= 255
	}
	segs = append(segs, byte(n))
	return segs
}
