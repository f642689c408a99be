package codec

import (
	"bufio"
	"context"
	"io"
)

// TranscodeToFlacStream detects the input format; if it is already FLAC, it
// returns a zero-copy passthrough wrapper that preserves StreamInfo and
// forwards bytes unchanged. Otherwise it decodes then re-encodes to FLAC.
func TranscodeToFlacStream(ctx context.Context, r io.Reader, opts EncodeOptions) (*DecodedStream, error) {
	br := bufio.NewReaderSize(r, sniffBudget)

	peek, _ := br.Peek(4)
	if string(peek) == "fLaC" {
		if ds, ok := tryPassthrough(ctx, br); ok {
			return ds, nil
		}
		// STREAMINFO never appeared within budget; fall through to full
		// decode→encode per the documented open-question resolution.
	}

	decoded, err := DecodeAudioStream(ctx, br)
	if err != nil {
		return nil, err
	}

	info, err := decoded.Info(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := EncodeFlacStream(ctx, decoded, info.PcmFormat(), opts)
	if err != nil {
		return nil, err
	}

	// Wrap the EncodedStream so callers see the same DecodedStream-shaped
	// API (Info/Read/Wait/Close) regardless of which path was taken.
	return wrapEncodedAsDecoded(encoded, info), nil
}

// tryPassthrough attempts the zero-copy FLAC passthrough path. It returns
// ok=false if STREAMINFO cannot be located within the sniff budget, in
// which case the caller falls through to full transcode.
func tryPassthrough(ctx context.Context, br *bufio.Reader) (*DecodedStream, bool) {
	peekBuf, _ := br.Peek(sniffBudget)
	passInfo, err := DetectFlacPassthrough(newBytesReader(peekBuf))
	if err != nil {
		return nil, false
	}

	pr, pw := io.Pipe()
	ds := &DecodedStream{
		Format: FormatFLAC,
		pr:     pr,
		pw:     pw,
		infoCh: make(chan StreamInfo, 1),
		done:   make(chan struct{}),
	}
	ds.infoCh <- passInfo.StreamInfo
	close(ds.infoCh)
	ds.cancel = func() {}

	go func() {
		defer close(ds.done)
		defer pw.Close()
		// Forward remaining buffered bytes, then the rest of the
		// underlying reader, verbatim.
		if _, err := io.Copy(pw, br); err != nil {
			ds.setErr(err)
			pw.CloseWithError(err)
		}
	}()

	return ds, true
}

func newBytesReader(b []byte) io.Reader {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &sliceReader{data: cp}
}

type sliceReader struct {
	data []byte
	pos  int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

// wrapEncodedAsDecoded adapts an EncodedStream (the decode→encode path's
// output) to the DecodedStream type so TranscodeToFlacStream has one return
// type regardless of path taken.
func wrapEncodedAsDecoded(es *EncodedStream, info StreamInfo) *DecodedStream {
	pr, pw := io.Pipe()
	ds := &DecodedStream{
		Format:  FormatFLAC,
		pr:      pr,
		infoCh:  make(chan StreamInfo, 1),
		done:    make(chan struct{}),
		cancel:  func() {},
		info:    info,
		gotInfo: true,
	}
	ds.infoCh <- info
	close(ds.infoCh)

	go func() {
		defer close(ds.done)
		_, err := io.Copy(pw, es)
		waitErr := es.Wait()
		if err == nil {
			err = waitErr
		}
		if err != nil {
			ds.setErr(err)
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return ds
}
