package channel

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOggPageWriter_ProducesValidChecksum(t *testing.T) {
	var out bytes.Buffer
	w := newOggPageWriter(&out, 42)

	payload := []byte("fake flac frame data")
	require.NoError(t, w.WritePage(payload, false, false))

	page := out.Bytes()
	require.True(t, len(page) > 27)
	assert.Equal(t, "OggS", string(page[0:4]))

	storedCRC := binary.LittleEndian.Uint32(page[22:26])

	zeroed := make([]byte, len(page))
	copy(zeroed, page)
	binary.LittleEndian.PutUint32(zeroed[22:26], 0)
	recomputed := oggCRC32(zeroed)

	assert.Equal(t, recomputed, storedCRC)
}

func TestOggPageWriter_SplitsOversizedPayload(t *testing.T) {
	var out bytes.Buffer
	w := newOggPageWriter(&out, 1)

	payload := bytes.Repeat([]byte{0x5A}, 255*255+10)
	require.NoError(t, w.WritePage(payload, false, true))

	data := out.Bytes()
	// Two pages means two "OggS" capture patterns.
	count := bytes.Count(data, []byte("OggS"))
	assert.Equal(t, 2, count)
}

func TestLacingValues(t *testing.T) {
	assert.Equal(t, []byte{0}, lacingValues(0))
	assert.Equal(t, []byte{10}, lacingValues(10))
	assert.Equal(t, []byte{255, 0}, lacingValues(255))
	assert.Equal(t, []byte{255, 5}, lacingValues(260))
}
