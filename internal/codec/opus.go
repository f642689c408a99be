package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jj11hh/opus"
)

const opusDecodeSampleRate = 48000 // Opus always decodes at 48 kHz internally.

// decodeOpus streams an Ogg/Opus file. jj11hh/opus provides only the raw
// codec (frame in, PCM out); the Ogg container is demultiplexed by this
// package's own oggPacketReader (oggdemux.go), mirroring the page framing
// the channel manager's OGG-FLAC wrapper writes in the other direction.
func decodeOpus(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error {
	packets := newOggPacketReader(src)

	head, err := packets.NextPacket()
	if err != nil {
		return fmt.Errorf("%w: opus head packet: %v", ErrProtocol, err)
	}
	if len(head) < 19 || string(head[0:8]) != "OpusHead" {
		return fmt.Errorf("%w: missing OpusHead", ErrProtocol)
	}
	channels := int(head[9])

	// Second packet is OpusTags (Vorbis-comment-style metadata); skip it.
	if _, err := packets.NextPacket(); err != nil {
		return fmt.Errorf("%w: opus tags packet: %v", ErrProtocol, err)
	}

	dec, err := opus.NewDecoder(opusDecodeSampleRate, channels)
	if err != nil {
		return fmt.Errorf("%w: opus decoder init: %v", ErrProtocol, err)
	}

	infoOnce(StreamInfo{
		SampleRate:    opusDecodeSampleRate,
		Channels:      channels,
		BitsPerSample: 16,
	})

	pcm := make([]int16, 5760*channels) // max Opus frame: 120ms @ 48kHz
	out := make([]byte, 0, len(pcm)*2)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		packet, err := packets.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: opus packet read: %v", ErrProtocol, err)
		}

		n, err := dec.Decode(packet, pcm)
		if err != nil {
			return fmt.Errorf("%w: opus decode: %v", ErrProtocol, err)
		}

		out = out[:0]
		for i := 0; i < n*channels; i++ {
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(pcm[i]))
			out = append(out, b[:]...)
		}
		if _, err := pcmOut.Write(out); err != nil {
			return err
		}
	}
}
