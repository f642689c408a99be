package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// decodeAIFF streams a canonical FORM/AIFF PCM file. Like WAV, no pack
// example supplies an AIFF decoder; AIFF's big-endian fixed-header chunk
// layout is walked directly (justified stdlib use, see DESIGN.md). AIFF
// samples are big-endian on the wire; they are byte-swapped into the
// little-endian interleaved convention the rest of the façade uses.
func decodeAIFF(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error {
	var formHeader [12]byte
	if _, err := io.ReadFull(src, formHeader[:]); err != nil {
		return fmt.Errorf("%w: aiff form header: %v", ErrProtocol, err)
	}
	if string(formHeader[0:4]) != "FORM" || string(formHeader[8:12]) != "AIFF" {
		return fmt.Errorf("%w: not an aiff file", ErrProtocol)
	}

	var si StreamInfo
	haveCommon := false

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(src, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
		id := string(chunkHeader[0:4])
		size := binary.BigEndian.Uint32(chunkHeader[4:8])

		switch id {
		case "COMM":
			body := make([]byte, size)
			if _, err := io.ReadFull(src, body); err != nil {
				return fmt.Errorf("%w: aiff COMM chunk: %v", ErrProtocol, err)
			}
			channels := binary.BigEndian.Uint16(body[0:2])
			bitsPerSample := binary.BigEndian.Uint16(body[6:8])
			sampleRate := int(decodeIEEE80(body[8:18]))
			si = StreamInfo{
				SampleRate:    sampleRate,
				Channels:      int(channels),
				BitsPerSample: int(bitsPerSample),
			}
			haveCommon = true
			if size%2 == 1 {
				var pad [1]byte
				io.ReadFull(src, pad[:])
			}
		case "SSND":
			if !haveCommon {
				return fmt.Errorf("%w: aiff SSND chunk before COMM chunk", ErrProtocol)
			}
			infoOnce(si)
			var offsetBlock [8]byte
			if _, err := io.ReadFull(src, offsetBlock[:]); err != nil {
				return fmt.Errorf("%w: aiff SSND offset/block: %v", ErrProtocol, err)
			}
			dataSize := int64(size) - 8
			return swapAndWrite(src, pcmOut, dataSize, si.BitsPerSample)
		default:
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, src, skip); err != nil {
				return nil
			}
		}
	}
}

// swapAndWrite copies n bytes of big-endian PCM samples of the given bit
// depth to dst as little-endian.
func swapAndWrite(src io.Reader, dst io.Writer, n int64, bitsPerSample int) error {
	bytesPerSample := (bitsPerSample + 7) / 8
	if bytesPerSample <= 1 {
		_, err := io.CopyN(dst, src, n)
		return err
	}
	buf := make([]byte, bytesPerSample*4096)
	remaining := n
	for remaining > 0 {
		chunkLen := int64(len(buf))
		if chunkLen > remaining {
			chunkLen = remaining
		}
		read, err := io.ReadFull(src, buf[:chunkLen])
		if read > 0 {
			swapped := make([]byte, read)
			for i := 0; i+bytesPerSample <= read; i += bytesPerSample {
				for b := 0; b < bytesPerSample; b++ {
					swapped[i+b] = buf[i+bytesPerSample-1-b]
				}
			}
			if _, werr := dst.Write(swapped); werr != nil {
				return werr
			}
		}
		remaining -= int64(read)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// decodeIEEE80 decodes the 80-bit extended-precision float AIFF uses for
// sample rate, per the original AIFF specification.
func decodeIEEE80(b []byte) float64 {
	sign := 1.0
	if b[0]&0x80 != 0 {
		sign = -1.0
	}
	exponent := int(binary.BigEndian.Uint16(b[0:2]) & 0x7FFF)
	mantissa := binary.BigEndian.Uint64(b[2:10])
	if exponent == 0 && mantissa == 0 {
		return 0
	}
	f := float64(mantissa) * math.Pow(2, float64(exponent-16383-63))
	return sign * f
}
