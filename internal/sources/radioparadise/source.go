package radioparadise

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arung-agamani/denpa-hub/internal/sources"
)

// ChannelKind identifies one of Radio Paradise's four broadcast mixes.
type ChannelKind int

const (
	ChannelMain ChannelKind = iota
	ChannelMellow
	ChannelRock
	ChannelEclectic
)

// Descriptor carries the slug/display metadata for a ChannelKind.
type Descriptor struct {
	Kind        ChannelKind
	ID          int
	Slug        string
	DisplayName string
	Description string
}

// Descriptors lists every supported Radio Paradise channel, in API order.
var Descriptors = []Descriptor{
	{Kind: ChannelMain, ID: 0, Slug: "main", DisplayName: "Main Mix", Description: "Eclectic mix of rock, world, electronica, and more"},
	{Kind: ChannelMellow, ID: 1, Slug: "mellow", DisplayName: "Mellow Mix", Description: "Mellower, less aggressive music"},
	{Kind: ChannelRock, ID: 2, Slug: "rock", DisplayName: "Rock Mix", Description: "Heavier, more guitar-driven music"},
	{Kind: ChannelEclectic, ID: 3, Slug: "eclectic", DisplayName: "Eclectic Mix", Description: "Curated worldwide selection"},
}

// Source is the MusicSource view onto one Radio Paradise channel: a single
// always-live feed, browsable only as a snapshot of the block currently
// playing (there is no addressable back-catalog the way a local library has
// one).
type Source struct {
	desc   Descriptor
	client *Client

	mu        sync.RWMutex
	lastBlock *Block
	updateID  uint32
	lastCh    int64
}

// NewSource builds a MusicSource for the given channel descriptor.
func NewSource(desc Descriptor) *Source {
	return &Source{desc: desc, client: NewClient(desc.ID), lastCh: time.Now().Unix()}
}

func (s *Source) ID() string   { return "radioparadise:" + s.desc.Slug }
func (s *Source) Name() string { return "Radio Paradise: " + s.desc.DisplayName }

func (s *Source) RootContainer() sources.Container {
	return sources.Container{ID: "rp:" + s.desc.Slug + ":root", Title: s.desc.DisplayName}
}

// Browse returns the songs of the block currently playing as leaf items.
// Radio Paradise channels have no browsable hierarchy beyond "what's live".
func (s *Source) Browse(ctx context.Context, objectID string) (sources.BrowseResult, error) {
	block, err := s.currentBlock(ctx)
	if err != nil {
		return sources.BrowseResult{}, err
	}

	songs := block.SongsOrdered()
	items := make([]sources.Item, 0, len(songs))
	for i, song := range songs {
		items = append(items, songToItem(block, s.desc.Slug, i, song))
	}
	return sources.BrowseResult{Items: items, TotalCount: len(items)}, nil
}

// GetItems pages over the songs in the currently playing block. Radio
// Paradise exposes no deeper catalog than "what's live right now".
func (s *Source) GetItems(ctx context.Context, offset, count int) ([]sources.Item, error) {
	result, err := s.Browse(ctx, "")
	if err != nil {
		return nil, err
	}
	if offset >= len(result.Items) {
		return nil, nil
	}
	end := offset + count
	if end > len(result.Items) || count <= 0 {
		end = len(result.Items)
	}
	return result.Items[offset:end], nil
}

// ResolveURI returns the CDN URL of the block the song belongs to directly —
// Radio Paradise's blocks are already public HTTPS URLs, so no cache
// ingestion is needed just to resolve an address (the streaming path through
// Channel re-downloads and transcodes it via TrackSource.NextBlock instead).
func (s *Source) ResolveURI(ctx context.Context, objectID string) (string, error) {
	event, _, ok := parseSongObjectID(objectID)
	if !ok {
		return "", fmt.Errorf("radioparadise resolve %q: %w", objectID, sources.ErrNotFound)
	}
	block, err := s.client.GetBlock(ctx, &event)
	if err != nil {
		return "", fmt.Errorf("radioparadise %s: %w", s.desc.Slug, err)
	}
	return block.URL, nil
}

func (s *Source) SupportsFIFO() bool { return false }

func (s *Source) UpdateID() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateID
}

func (s *Source) LastChange() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Unix(s.lastCh, 0)
}

// currentBlock fetches the live block on every call and records it as
// lastBlock, bumping UpdateID when its event differs from the previous one.
func (s *Source) currentBlock(ctx context.Context) (*Block, error) {
	block, err := s.client.NowPlaying(ctx)
	if err != nil {
		return nil, fmt.Errorf("radioparadise %s: %w", s.desc.Slug, err)
	}

	s.mu.Lock()
	if s.lastBlock == nil || s.lastBlock.Event != block.Event {
		s.updateID++
		s.lastCh = time.Now().Unix()
	}
	s.lastBlock = block
	s.mu.Unlock()

	return block, nil
}

func songToItem(block *Block, channelSlug string, index int, song Song) sources.Item {
	return sources.Item{
		ID:          fmt.Sprintf("rp:%s:song:%d:%d", channelSlug, block.Event, index),
		ParentID:    "rp:" + channelSlug + ":root",
		Title:       song.Title,
		Artist:      song.Artist,
		Album:       song.Album,
		AlbumArtURI: block.CoverURL(song.Cover),
		DurationMs:  song.Duration,
	}
}

func parseSongObjectID(objectID string) (event uint64, index int, ok bool) {
	parts := strings.Split(objectID, ":")
	if len(parts) != 5 || parts[0] != "rp" || parts[2] != "song" {
		return 0, 0, false
	}
	ev, err1 := strconv.ParseUint(parts[3], 10, 64)
	idx, err2 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return ev, idx, true
}
