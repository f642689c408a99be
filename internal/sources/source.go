// Package sources defines the contract every music catalog adapter
// implements, plus the shared browse/item types the streaming core needs
// from a catalog without depending on any particular one.
package sources

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates an object ID has no corresponding container or item.
var ErrNotFound = errors.New("sources: object not found")

// ErrFIFOUnsupported reports that a source cannot hand out a FIFO queue
// (the local source wraps it when no rotation is active).
var ErrFIFOUnsupported = errors.New("sources: source does not support FIFO queue operations")

// Container is a browsable DIDL-Lite container: a folder-like node a client
// can descend into.
type Container struct {
	ID       string
	Title    string
	ParentID string
	ChildCount int
}

// Item is a single playable entry returned from Browse or GetItems.
type Item struct {
	ID          string
	ParentID    string
	Title       string
	Artist      string
	Album       string
	AlbumArtURI string
	DurationMs  int64
	// URI is left empty until ResolveURI is called; Browse/GetItems only
	// need to describe what exists, not how to fetch it.
	URI string
}

// BrowseResult is what Browse returns for one object ID: its child
// containers and items, consistent with a DIDL-Lite "BrowseDirectChildren"
// response shape without committing to any particular XML encoding here
// (that encoding is an external collaborator's job).
type BrowseResult struct {
	Containers []Container
	Items      []Item
	TotalCount int
}

// MusicSource is implemented by every music catalog adapter: the local
// library, a live internet radio channel, or a future third-party catalog.
type MusicSource interface {
	// ID returns a stable identity string for this source instance.
	ID() string
	// Name returns a human-readable display name.
	Name() string
	// RootContainer returns the top-level container clients browse into.
	RootContainer() Container
	// Browse returns the children of objectID.
	Browse(ctx context.Context, objectID string) (BrowseResult, error)
	// ResolveURI returns a URI the HTTP layer can serve for objectID: an
	// external stream URL, or a "cache:<pk><ext>" reference for a cached
	// payload.
	ResolveURI(ctx context.Context, objectID string) (string, error)
	// SupportsFIFO reports whether AppendTrack/RemoveOldest are meaningful
	// for this source's internal queue.
	SupportsFIFO() bool
	// UpdateID is a freshness marker that increases whenever this source's
	// browse tree changes, per the UPnP ContentDirectory convention.
	UpdateID() uint32
	// LastChange returns when this source's tree was last mutated.
	LastChange() time.Time
	// GetItems returns a page of items for MediaServer enumeration queries.
	GetItems(ctx context.Context, offset, count int) ([]Item, error)
}

// FIFOQueue is implemented by sources whose SupportsFIFO() is true.
type FIFOQueue interface {
	AppendTrack(ctx context.Context, item Item) error
	RemoveOldest(ctx context.Context) (Item, error)
}
