// Package radioparadise implements a MusicSource and TrackSource backed by
// Radio Paradise's block API: each "block" is a single continuous audio file
// spanning several songs, fetched by event ID and chained via end_event into
// the next block.
package radioparadise

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultAPIBase is Radio Paradise's metadata API root.
	DefaultAPIBase = "https://api.radioparadise.com/api"
	// DefaultImageBase prefixes relative cover-art paths returned by the API.
	DefaultImageBase = "https://img.radioparadise.com/"
	// bitrateFLAC selects lossless FLAC blocks from get_block.
	bitrateFLAC = "4"
)

// Song is one track within a Block, as Radio Paradise's API describes it.
type Song struct {
	Artist   string  `json:"artist"`
	Title    string  `json:"title"`
	Album    string  `json:"album"`
	Year     string  `json:"year"`
	Elapsed  int64   `json:"elapsed,string"`
	Duration int64   `json:"duration,string"`
	Cover    string  `json:"cover"`
	Rating   float32 `json:"rating,string"`
}

// Block is one continuous audio file covering several songs back to back.
type Block struct {
	Event     uint64          `json:"event,string"`
	EndEvent  uint64          `json:"end_event,string"`
	URL       string          `json:"url"`
	Length    int64           `json:"length,string"`
	ImageBase string          `json:"image_base"`
	Songs     map[string]Song `json:"song"`
}

// SongsOrdered returns the block's songs sorted by their numeric index key,
// the order Radio Paradise's API itself uses ("0", "1", "2", ...).
func (b *Block) SongsOrdered() []Song {
	keys := make([]int, 0, len(b.Songs))
	for k := range b.Songs {
		if n, err := strconv.Atoi(k); err == nil {
			keys = append(keys, n)
		}
	}
	sortInts(keys)

	out := make([]Song, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.Songs[strconv.Itoa(k)])
	}
	return out
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// CoverURL resolves a song's relative cover path against the block's image
// base, normalising the protocol-relative form the API sometimes returns.
func (b *Block) CoverURL(relative string) string {
	if relative == "" {
		return ""
	}
	base := b.ImageBase
	if base == "" {
		base = DefaultImageBase
	}
	if strings.HasPrefix(base, "//") {
		base = "https:" + base
	}
	return base + relative
}

// Client fetches blocks from Radio Paradise's metadata API for one channel.
type Client struct {
	http    *resty.Client
	apiBase string
	channel int
}

// NewClient builds a Client for the given channel (0 = main mix, 1 = mellow,
// 2 = rock, 3 = eclectic), reusing a shared resty.Client across requests.
func NewClient(channel int) *Client {
	http := resty.New().
		SetBaseURL(DefaultAPIBase).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "denpa-hub/1.0")
	return &Client{http: http, apiBase: DefaultAPIBase, channel: channel}
}

// GetBlock fetches a block by event ID. A nil event fetches the block
// currently playing on the channel.
func (c *Client) GetBlock(ctx context.Context, event *uint64) (*Block, error) {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("bitrate", bitrateFLAC).
		SetQueryParam("info", "true").
		SetQueryParam("channel", strconv.Itoa(c.channel))
	if event != nil {
		req.SetQueryParam("event", strconv.FormatUint(*event, 10))
	}

	var block Block
	resp, err := req.SetResult(&block).Get("/get_block")
	if err != nil {
		return nil, fmt.Errorf("radioparadise: get_block: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("radioparadise: get_block: status %s", resp.Status())
	}
	if block.ImageBase == "" {
		block.ImageBase = DefaultImageBase
	}
	if strings.HasPrefix(block.ImageBase, "//") {
		block.ImageBase = "https:" + block.ImageBase
	}
	return &block, nil
}

// NowPlaying fetches the block currently playing on the channel.
func (c *Client) NowPlaying(ctx context.Context) (*Block, error) {
	return c.GetBlock(ctx, nil)
}
