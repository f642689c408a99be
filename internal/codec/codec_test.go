package codec

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffFormat_EmptyInput(t *testing.T) {
	_, err := DecodeAudioStream(context.Background(), bytes.NewReader(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestConvertSamples_RoundTripInt16(t *testing.T) {
	original := []byte{0x34, 0x12, 0xCD, 0xAB} // two little-endian int16 samples
	converted := ConvertSamples(original, SampleInt16, SampleInt16)
	assert.Equal(t, original, converted)
}

func TestEncodeFlacStream_RejectsOutOfRangeCompressionLevel(t *testing.T) {
	_, err := EncodeFlacStream(context.Background(), bytes.NewReader(nil), PcmFormat{
		SampleRate: 44100, Channels: 2, BitsPerSample: 16,
	}, EncodeOptions{CompressionLevel: 13})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDetectFlacPassthrough_NoStreamInfo(t *testing.T) {
	// "fLaC" marker followed by a non-STREAMINFO block only; STREAMINFO
	// never appears, so passthrough detection must fail explicitly rather
	// than guess.
	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.Write([]byte{0x84, 0x00, 0x00, 0x02, 0xAA, 0xBB}) // type 4 (VORBIS_COMMENT), last-block flag set

	_, err := DetectFlacPassthrough(&buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodedStream_InfoPrecedesPCM(t *testing.T) {
	format := PcmFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16}
	pcm := bytes.Repeat([]byte{0x01, 0x02}, 4096*2)

	es, err := EncodeFlacStream(context.Background(), bytes.NewReader(pcm), format, EncodeOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ds, err := DecodeAudioStream(ctx, es)
	require.NoError(t, err)

	info, err := ds.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44100, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
}
