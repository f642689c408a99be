package channel

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnsupported is returned when an operation cannot be expressed in the
// wire format being produced.
var ErrUnsupported = errors.New("channel: unsupported")

const maxMetaPayload = 255 * 16 // padded_len byte maxes out at 255*16 bytes

// icyWriter interleaves ICY metadata blocks into an audio byte stream every
// metaint bytes, mirroring Shoutcast/Icecast's in-band metadata convention.
// Grounded on the teacher's broadcastWriter (a io.Writer that fans bytes to
// many clients) generalized to also splice in a length-prefixed metadata
// frame at a fixed byte interval.
type icyWriter struct {
	dst      io.Writer
	metaint  int
	sinceMeta int
	meta     *MetadataSnapshot
	lastVersion uint64
	lastFrame   []byte
}

// newICYWriter wraps dst so that every metaint bytes of audio, a metadata
// block reflecting meta's current state is interleaved.
func newICYWriter(dst io.Writer, metaint int, meta *MetadataSnapshot) *icyWriter {
	return &icyWriter{dst: dst, metaint: metaint, meta: meta}
}

func (w *icyWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		remaining := w.metaint - w.sinceMeta
		chunk := p
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}

		if _, err := w.dst.Write(chunk); err != nil {
			return 0, err
		}
		w.sinceMeta += len(chunk)
		p = p[len(chunk):]

		if w.sinceMeta == w.metaint {
			frame, err := w.buildMetaFrame()
			if err != nil {
				return 0, err
			}
			if _, err := w.dst.Write(frame); err != nil {
				return 0, err
			}
			w.sinceMeta = 0
		}
	}
	return total, nil
}

// buildMetaFrame emits a single zero length byte (empty payload) when the
// metadata is unchanged since this writer's last full frame, or builds a
// fresh frame and caches it. A metadata payload whose padded length would
// exceed 255*16 bytes is rejected rather than silently truncated.
func (w *icyWriter) buildMetaFrame() ([]byte, error) {
	title, artist, _, coverURL, version := w.meta.Get()
	if version == w.lastVersion && w.lastFrame != nil {
		return []byte{0}, nil
	}

	payload := fmt.Sprintf("StreamTitle='%s - %s';StreamUrl='%s';", artist, title, coverURL)
	paddedLen := (len(payload) + 15) / 16 * 16
	if paddedLen > maxMetaPayload {
		return nil, fmt.Errorf("icy metadata block %d bytes exceeds %d byte maximum: %w", paddedLen, maxMetaPayload, ErrUnsupported)
	}

	frame := make([]byte, 1+paddedLen)
	frame[0] = byte(paddedLen / 16)
	copy(frame[1:], payload)
	// Remaining bytes are zero-padding, already zero-valued by make().

	w.lastVersion = version
	w.lastFrame = frame
	return frame, nil
}
