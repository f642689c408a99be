package channel

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICYWriter_InterleavesMetadataAtInterval(t *testing.T) {
	meta := NewMetadataSnapshot()
	meta.Set("Song", "Artist", "", "http://cover")

	var out bytes.Buffer
	w := newICYWriter(&out, 8, meta)

	_, err := w.Write(bytes.Repeat([]byte{0xAA}, 8))
	require.NoError(t, err)

	data := out.Bytes()
	require.Len(t, data, 8+1+64) // 8 audio bytes + 1 length byte + 64 padded bytes (53-byte payload)
	assert.Equal(t, byte(4), data[8])
	assert.True(t, strings.Contains(string(data[9:]), "StreamTitle='Artist - Song'"))
}

func TestICYWriter_RejectsOversizedMetadata(t *testing.T) {
	meta := NewMetadataSnapshot()
	meta.Set(strings.Repeat("x", 5000), "artist", "", "")

	var out bytes.Buffer
	w := newICYWriter(&out, 4, meta)

	_, err := w.Write(bytes.Repeat([]byte{0x01}, 4))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestICYWriter_CachesFrameWhenMetadataUnchanged(t *testing.T) {
	meta := NewMetadataSnapshot()
	meta.Set("Song", "Artist", "", "")

	var out bytes.Buffer
	w := newICYWriter(&out, 4, meta)

	_, err := w.Write(bytes.Repeat([]byte{0x01}, 8))
	require.NoError(t, err)

	first, err := w.buildMetaFrame()
	require.NoError(t, err)
	second, err := w.buildMetaFrame()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
