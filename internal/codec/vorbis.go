package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jfreymuth/vorbis"
)

// decodeVorbis streams an Ogg/Vorbis file via jfreymuth/vorbis, which
// demultiplexes its own Ogg container and decodes directly to float32
// samples; those are converted to the façade's little-endian int16 wire
// convention.
func decodeVorbis(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error {
	r, format, err := vorbis.NewReader(src)
	if err != nil {
		return fmt.Errorf("%w: vorbis header: %v", ErrProtocol, err)
	}

	infoOnce(StreamInfo{
		SampleRate:    format.SampleRate,
		Channels:      format.Channels,
		BitsPerSample: 16,
	})

	buf := make([]float32, 4096)
	out := make([]byte, 0, len(buf)*2)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(buf)
		if n > 0 {
			out = out[:0]
			for i := 0; i < n; i++ {
				v := int16(clampF32(buf[i]) * 32767.0)
				var b [2]byte
				binary.LittleEndian.PutUint16(b[:], uint16(v))
				out = append(out, b[:]...)
			}
			if _, werr := pcmOut.Write(out); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: vorbis decode: %v", ErrProtocol, err)
		}
	}
}

func clampF32(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
