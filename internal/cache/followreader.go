package cache

import (
	"fmt"
	"io"
	"os"
	"time"
)

// followReader reads a payload file as it is being written, polling for new
// bytes and signalling EOF only when the sentinel file appears. If the
// writer dies (detected via a stall past the staleness window with no
// sentinel), it fails with ErrTruncated.
type followReader struct {
	f         *os.File
	cache     *Cache
	pk        string
	sentinel  string
	pollEvery time.Duration
}

// OpenFollowReader opens pk's canonical payload for progressive reading and
// registers an open-handle so the cache's eviction pass treats it as hot.
func (c *Cache) OpenFollowReader(pk, ext string) (io.ReadCloser, error) {
	path := c.payloadPath(pk, "orig", ext)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: pk %q payload not yet present: %v", ErrNotFound, pk, err)
	}

	c.mu.Lock()
	c.openHands[pk]++
	c.mu.Unlock()

	return &followReader{
		f:         f,
		cache:     c,
		pk:        pk,
		sentinel:  c.sentinelPath(pk, ext),
		pollEvery: 50 * time.Millisecond,
	}, nil
}

func (fr *followReader) Read(p []byte) (int, error) {
	for {
		n, err := fr.f.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}

		if _, serr := os.Stat(fr.sentinel); serr == nil {
			return 0, io.EOF
		}

		info, statErr := os.Stat(fr.f.Name())
		if statErr == nil && time.Since(info.ModTime()) > staleAfter {
			return 0, ErrTruncated
		}

		time.Sleep(fr.pollEvery)
	}
}

func (fr *followReader) Close() error {
	fr.cache.mu.Lock()
	if fr.cache.openHands[fr.pk] > 0 {
		fr.cache.openHands[fr.pk]--
	}
	fr.cache.mu.Unlock()
	return fr.f.Close()
}
