package codec

import (
	"fmt"
	"io"
)

// oggPacketReader demultiplexes raw Ogg pages into logical packets for a
// single logical stream, mirroring (in reverse) the page framing this
// module writes in internal/channel's OGG-FLAC wrapper: capture pattern
// "OggS", version byte, header-type flags, granule position, serial,
// sequence, CRC-32, segment table, payload.
type oggPacketReader struct {
	r        io.Reader
	partial  []byte // bytes of a packet still spanning into the next page
	leftover []queuedPacket
	eos      bool
}

type queuedPacket struct {
	data []byte
}

func newOggPacketReader(r io.Reader) *oggPacketReader {
	return &oggPacketReader{r: r}
}

// NextPacket returns the next fully-assembled logical packet.
func (o *oggPacketReader) NextPacket() ([]byte, error) {
	for len(o.leftover) == 0 {
		if o.eos && o.partial == nil {
			return nil, io.EOF
		}
		payload, segLens, pageEndsMidPacket, err := o.readPage()
		if err != nil {
			return nil, err
		}

		data := payload
		for i, segLen := range segLens {
			isLast := i == len(segLens)-1
			chunk := data[:segLen]
			data = data[segLen:]

			if o.partial != nil {
				o.partial = append(o.partial, chunk...)
				if !isLast || !pageEndsMidPacket {
					o.leftover = append(o.leftover, queuedPacket{data: o.partial})
					o.partial = nil
				}
				continue
			}

			if isLast && pageEndsMidPacket {
				o.partial = append([]byte(nil), chunk...)
				continue
			}
			o.leftover = append(o.leftover, queuedPacket{data: chunk})
		}
	}

	pkt := o.leftover[0]
	o.leftover = o.leftover[1:]
	return pkt.data, nil
}

// readPage reads one physical Ogg page and returns its payload plus the
// length of each segment-table-delimited packet fragment in it.
// pageEndsMidPacket is true when the final fragment ends on a 255-byte
// segment, meaning the logical packet continues on the next page.
func (o *oggPacketReader) readPage() (payload []byte, segLens []int, pageEndsMidPacket bool, err error) {
	var header [27]byte
	if _, err = io.ReadFull(o.r, header[:]); err != nil {
		return nil, nil, false, err
	}
	if string(header[0:4]) != "OggS" {
		return nil, nil, false, fmt.Errorf("%w: bad ogg capture pattern", ErrProtocol)
	}
	headerType := header[5]
	if headerType&0x04 != 0 {
		o.eos = true
	}
	segCount := int(header[26])
	segTable := make([]byte, segCount)
	if _, err = io.ReadFull(o.r, segTable); err != nil {
		return nil, nil, false, err
	}

	total := 0
	cur := 0
	for _, s := range segTable {
		total += int(s)
		cur += int(s)
		if s < 255 {
			segLens = append(segLens, cur)
			cur = 0
		}
	}
	if cur > 0 {
		segLens = append(segLens, cur)
		pageEndsMidPacket = true
	}

	payload = make([]byte, total)
	if _, err = io.ReadFull(o.r, payload); err != nil {
		return nil, nil, false, err
	}
	return payload, segLens, pageEndsMidPacket, nil
}
