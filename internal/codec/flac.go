package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// decodeFLAC streams a native FLAC file, publishing StreamInfo from the
// STREAMINFO metadata block and writing decoded PCM as it decodes frames.
func decodeFLAC(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error {
	stream, err := flac.New(src)
	if err != nil {
		return fmt.Errorf("%w: flac header: %v", ErrProtocol, err)
	}

	si := StreamInfo{
		SampleRate:    int(stream.Info.SampleRate),
		Channels:      int(stream.Info.NChannels),
		BitsPerSample: int(stream.Info.BitsPerSample),
		TotalSamples:  stream.Info.NSamples,
		MinBlockSize:  int(stream.Info.BlockSizeMin),
		MaxBlockSize:  int(stream.Info.BlockSizeMax),
	}
	infoOnce(si)

	sampleFormat := intSampleFormat(si.BitsPerSample)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := stream.ParseNext()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: flac frame: %v", ErrProtocol, err)
		}

		buf := interleaveFrame(f, sampleFormat)
		if _, err := pcmOut.Write(buf); err != nil {
			return err
		}
	}
}

func intSampleFormat(bits int) SampleFormat {
	switch {
	case bits <= 16:
		return SampleInt16
	case bits <= 24:
		return SampleInt24
	default:
		return SampleInt32
	}
}

// interleaveFrame converts a decoded FLAC frame's per-channel int32 sample
// subframes into interleaved little-endian bytes at the frame's native bit
// depth.
func interleaveFrame(f *frame.Frame, sf SampleFormat) []byte {
	nCh := len(f.Subframes)
	if nCh == 0 {
		return nil
	}
	nSamples := len(f.Subframes[0].Samples)
	bps := sf.BytesPerSample()
	out := make([]byte, nSamples*nCh*bps)

	for s := 0; s < nSamples; s++ {
		for c := 0; c < nCh; c++ {
			v := f.Subframes[c].Samples[s]
			off := (s*nCh + c) * bps
			putSample(out[off:off+bps], v, sf)
		}
	}
	return out
}

func putSample(dst []byte, v int32, sf SampleFormat) {
	switch sf {
	case SampleInt16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case SampleInt24:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
	default:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

// FlacPassthroughInfo is returned by DetectFlacPassthrough describing where
// PCM-equivalent passthrough can begin copying bytes verbatim.
type FlacPassthroughInfo struct {
	StreamInfo StreamInfo
	// HeaderBytes are the bytes from the start of the stream (the "fLaC"
	// marker and every metadata block up to and including STREAMINFO) that
	// must be forwarded once, verbatim, before the rest of the stream.
	// Metadata blocks that follow STREAMINFO are not included.
	HeaderBytes []byte
}

// DetectFlacPassthrough implements the passthrough-detection open question:
// it walks leading metadata blocks looking for STREAMINFO (legal, if
// unusual, for it not to be first), within the package sniff budget. If
// found, it returns the header bytes consumed plus the parsed StreamInfo so
// the caller can forward the remainder of the stream unchanged. If
// STREAMINFO never appears before the budget is exhausted, it returns
// ErrUnknownFormat so the caller falls through to full decode→encode.
func DetectFlacPassthrough(r io.Reader) (*FlacPassthroughInfo, error) {
	limited := io.LimitReader(r, sniffBudget)
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		n, err := limited.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if si, headerLen, ok := tryParseStreamInfo(buf); ok {
			return &FlacPassthroughInfo{StreamInfo: si, HeaderBytes: buf[:headerLen]}, nil
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: no STREAMINFO block found within sniff budget", ErrUnknownFormat)
}

// tryParseStreamInfo walks buf as a FLAC marker + metadata block sequence,
// looking specifically for a STREAMINFO block (type 0) among possibly
// several leading blocks. Returns the parsed info and the number of bytes
// (from the very start of buf) that make up the header through the end of
// the STREAMINFO block's own metadata-block-header + body. Returns ok=false
// if buf does not yet contain enough data to decide.
func tryParseStreamInfo(buf []byte) (StreamInfo, int, bool) {
	if len(buf) < 4 || string(buf[:4]) != "fLaC" {
		return StreamInfo{}, 0, false
	}
	pos := 4
	for {
		if pos+4 > len(buf) {
			return StreamInfo{}, 0, false
		}
		header := buf[pos]
		blockType := header & 0x7F
		length := int(buf[pos+1])<<16 | int(buf[pos+2])<<8 | int(buf[pos+3])
		bodyStart := pos + 4
		if bodyStart+length > len(buf) {
			return StreamInfo{}, 0, false
		}
		if blockType == 0 { // STREAMINFO
			body := buf[bodyStart : bodyStart+length]
			if length < 34 {
				return StreamInfo{}, 0, false
			}
			si := parseStreamInfoBody(body)
			return si, bodyStart + length, true
		}
		pos = bodyStart + length
	}
}

func parseStreamInfoBody(b []byte) StreamInfo {
	minBlock := int(binary.BigEndian.Uint16(b[0:2]))
	maxBlock := int(binary.BigEndian.Uint16(b[2:4]))
	sampleRate := int(b[10])<<12 | int(b[11])<<4 | int(b[12])>>4
	channels := int((b[12]>>1)&0x7) + 1
	bps := int((uint16(b[12]&0x1)<<4)|uint16(b[13]>>4)) + 1
	totalSamples := (uint64(b[13]&0xF) << 32) | uint64(b[14])<<24 | uint64(b[15])<<16 | uint64(b[16])<<8 | uint64(b[17])
	return StreamInfo{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bps,
		TotalSamples:  totalSamples,
		MinBlockSize:  minBlock,
		MaxBlockSize:  maxBlock,
	}
}
