package codec

import (
	"context"
	"fmt"
	"io"

	mp3 "github.com/llehouerou/go-mp3"
)

// decodeMP3 streams an MP3 elementary stream (or ID3v2-tagged file) via
// llehouerou/go-mp3, the pure-Go MP3 decoder the retrieval pack carries.
// The decoder always produces interleaved 16-bit stereo PCM.
func decodeMP3(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error {
	dec, err := mp3.NewDecoder(src)
	if err != nil {
		return fmt.Errorf("%w: mp3 header: %v", ErrProtocol, err)
	}

	infoOnce(StreamInfo{
		SampleRate:    dec.SampleRate(),
		Channels:      2,
		BitsPerSample: 16,
	})

	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := dec.Read(buf)
		if n > 0 {
			if _, werr := pcmOut.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: mp3 decode: %v", ErrProtocol, err)
		}
	}
}
