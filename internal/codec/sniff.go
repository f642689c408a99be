package codec

import (
	"bufio"
	"bytes"
	"fmt"
)

// Format identifies a sniffed container/codec.
type Format int

const (
	FormatUnknown Format = iota
	FormatFLAC
	FormatMP3
	FormatOggVorbis
	FormatOggOpus
	FormatWAV
	FormatAIFF
)

func (f Format) String() string {
	switch f {
	case FormatFLAC:
		return "flac"
	case FormatMP3:
		return "mp3"
	case FormatOggVorbis:
		return "ogg/vorbis"
	case FormatOggOpus:
		return "ogg/opus"
	case FormatWAV:
		return "wav"
	case FormatAIFF:
		return "aiff"
	default:
		return "unknown"
	}
}

// sniffBudget is the maximum number of bytes peeked before giving up and
// returning ErrUnknownFormat.
const sniffBudget = 64 * 1024

// sniffFormat peeks at the front of br (which must support Peek, i.e. be a
// *bufio.Reader) and returns the detected format without consuming bytes
// beyond what Peek buffers.
func sniffFormat(br *bufio.Reader) (Format, error) {
	head, err := br.Peek(12)
	if err != nil && len(head) == 0 {
		return FormatUnknown, fmt.Errorf("%w: empty input", ErrUnknownFormat)
	}

	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.HasPrefix(head, []byte("RIFF")) && len(head) >= 12 && bytes.Equal(head[8:12], []byte("WAVE")):
		return FormatWAV, nil
	case bytes.HasPrefix(head, []byte("FORM")) && len(head) >= 12 && bytes.Equal(head[8:12], []byte("AIFF")):
		return FormatAIFF, nil
	case bytes.HasPrefix(head, []byte("OggS")):
		return sniffOggCodec(br)
	case isMP3Magic(head):
		return FormatMP3, nil
	}

	return FormatUnknown, fmt.Errorf("%w: no magic matched in first %d bytes", ErrUnknownFormat, len(head))
}

// isMP3Magic recognizes either an ID3v2 tag header or a raw MPEG frame sync.
func isMP3Magic(head []byte) bool {
	if bytes.HasPrefix(head, []byte("ID3")) {
		return true
	}
	if len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 {
		return true
	}
	return false
}

// sniffOggCodec peeks deeper into the first Ogg page to distinguish Vorbis
// from Opus, which share the outer OggS page framing but differ in the
// codec identification header carried in the first packet.
func sniffOggCodec(br *bufio.Reader) (Format, error) {
	head, err := br.Peek(64)
	if err != nil && len(head) == 0 {
		return FormatUnknown, fmt.Errorf("%w: truncated ogg page", ErrUnknownFormat)
	}
	if bytes.Contains(head, []byte("OpusHead")) {
		return FormatOggOpus, nil
	}
	if bytes.Contains(head, []byte("vorbis")) {
		return FormatOggVorbis, nil
	}
	return FormatUnknown, fmt.Errorf("%w: unrecognized ogg codec", ErrUnknownFormat)
}
