package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// decodeWAV streams a canonical RIFF/WAVE PCM file. No pack example or
// dependency supplies a WAV decoder; this is a small, direct chunk walk
// over the standard fixed-header container (justified stdlib use, see
// DESIGN.md).
func decodeWAV(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error {
	var riffHeader [12]byte
	if _, err := io.ReadFull(src, riffHeader[:]); err != nil {
		return fmt.Errorf("%w: wav riff header: %v", ErrProtocol, err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return fmt.Errorf("%w: not a wav file", ErrProtocol)
	}

	var si StreamInfo
	var sampleFormat SampleFormat
	haveFmt := false

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(src, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
		id := string(chunkHeader[0:4])
		size := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(src, body); err != nil {
				return fmt.Errorf("%w: wav fmt chunk: %v", ErrProtocol, err)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			channels := binary.LittleEndian.Uint16(body[2:4])
			sampleRate := binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample := binary.LittleEndian.Uint16(body[14:16])
			if audioFormat != 1 && audioFormat != 0xFFFE {
				return fmt.Errorf("%w: wav audio_format %d not PCM", ErrUnsupported, audioFormat)
			}
			si = StreamInfo{
				SampleRate:    int(sampleRate),
				Channels:      int(channels),
				BitsPerSample: int(bitsPerSample),
			}
			sampleFormat = intSampleFormat(si.BitsPerSample)
			haveFmt = true
		case "data":
			if !haveFmt {
				return fmt.Errorf("%w: wav data chunk before fmt chunk", ErrProtocol)
			}
			infoOnce(si)
			if _, err := io.CopyN(pcmOut, src, int64(size)); err != nil && err != io.EOF {
				return err
			}
			_ = sampleFormat
			// WAV data is already little-endian interleaved PCM at the
			// declared bit depth; no conversion needed.
			return drainPadding(src, size)
		default:
			if _, err := io.CopyN(io.Discard, src, int64(size)+int64(size%2)); err != nil {
				return nil
			}
		}
	}
}

func drainPadding(src io.Reader, size uint32) error {
	if size%2 == 1 {
		var pad [1]byte
		io.ReadFull(src, pad[:])
	}
	return nil
}
