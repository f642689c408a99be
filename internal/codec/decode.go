package codec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// decodeFunc is implemented once per supported format. It reads encoded
// bytes from src, publishes StreamInfo exactly once via infoOnce, and
// writes decoded little-endian interleaved PCM bytes to pcmOut. It must
// respect ctx cancellation on its own blocking points.
type decodeFunc func(ctx context.Context, src io.Reader, infoOnce func(StreamInfo), pcmOut io.Writer) error

var decoders = map[Format]decodeFunc{
	FormatFLAC:      decodeFLAC,
	FormatWAV:       decodeWAV,
	FormatAIFF:      decodeAIFF,
	FormatMP3:       decodeMP3,
	FormatOggVorbis: decodeVorbis,
	FormatOggOpus:   decodeOpus,
}

// DecodedStream is a finite, non-restartable source of StreamInfo followed
// by PCM bytes. The three-stage ingest/decode/writer split described by the
// codec façade collapses here into one decode goroutine writing into an
// io.Pipe; ingest buffering is provided by bufio.Reader and backpressure by
// the pipe itself blocking writes until the reader catches up.
type DecodedStream struct {
	Format Format

	pr       *io.PipeReader
	pw       *io.PipeWriter
	infoCh   chan StreamInfo
	infoOnce sync.Once
	info     StreamInfo
	gotInfo  bool

	errMu sync.Mutex
	err   error

	cancel context.CancelFunc
	done   chan struct{}
}

// DecodeAudioStream sniffs the format of r (consuming no more than the
// sniff budget) and constructs the appropriate streaming decoder.
func DecodeAudioStream(ctx context.Context, r io.Reader) (*DecodedStream, error) {
	br := bufio.NewReaderSize(r, sniffBudget)
	format, err := sniffFormat(br)
	if err != nil {
		return nil, err
	}

	fn, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no registered decoder", ErrUnsupported, format)
	}

	runCtx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	ds := &DecodedStream{
		Format: format,
		pr:     pr,
		pw:     pw,
		infoCh: make(chan StreamInfo, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	publish := func(si StreamInfo) {
		ds.infoOnce.Do(func() {
			ds.infoCh <- si
			close(ds.infoCh)
		})
	}

	go func() {
		defer close(ds.done)
		err := fn(runCtx, br, publish, pw)
		// Ensure StreamInfo is always published, even on early failure,
		// so waiting readers are not left blocked forever.
		publish(StreamInfo{})
		if err != nil {
			ds.setErr(err)
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	return ds, nil
}

func (ds *DecodedStream) setErr(err error) {
	ds.errMu.Lock()
	ds.err = err
	ds.errMu.Unlock()
}

// Info blocks until the first decoded frame publishes StreamInfo, or ctx is
// done.
func (ds *DecodedStream) Info(ctx context.Context) (StreamInfo, error) {
	if ds.gotInfo {
		return ds.info, nil
	}
	select {
	case si, ok := <-ds.infoCh:
		if ok {
			ds.info = si
			ds.gotInfo = true
		}
		return ds.info, nil
	case <-ctx.Done():
		return StreamInfo{}, ctx.Err()
	}
}

// Read implements io.Reader over the decoded PCM byte stream. It blocks
// until StreamInfo has been published before returning any byte, per the
// data-model invariant that StreamInfo precedes all PCM bytes.
func (ds *DecodedStream) Read(p []byte) (int, error) {
	if !ds.gotInfo {
		if _, err := ds.Info(context.Background()); err != nil {
			return 0, err
		}
	}
	return ds.pr.Read(p)
}

// Wait blocks until the internal decode goroutine finishes and returns its
// terminal error, if any.
func (ds *DecodedStream) Wait() error {
	<-ds.done
	ds.errMu.Lock()
	defer ds.errMu.Unlock()
	return ds.err
}

// Close cancels the internal decode task and releases pipe resources.
func (ds *DecodedStream) Close() error {
	ds.cancel()
	return ds.pr.Close()
}
