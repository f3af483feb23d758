// Package assets copies generated media into owned storage and keeps a
// minimal record of every asset a user produced.
package assets

import (
	"context"
	"io"
	"time"

	"github.com/mdsxbm/tapcanvas/pkg/api"
)

// Record is the minimal persisted trace of a generated asset.
type Record struct {
	ID           string
	OwnerID      string
	Name         string
	Type         api.AssetType
	URL          string
	ThumbnailURL string
	Vendor       string
	TaskKind     api.TaskKind
	Prompt       string
	ModelKey     string
	CreatedAt    time.Time
}

// Store persists asset records.
type Store interface {
	// CreateIfAbsent inserts rec unless a record of the same owner already
	// has rec.URL. It reports whether a row was created.
	CreateIfAbsent(ctx context.Context, rec *Record) (bool, error)
}

// Uploader copies bytes into owned storage.
type Uploader interface {
	// Exists returns the public URL of key if it is already stored.
	Exists(ctx context.Context, key string) (string, bool, error)

	// Put stores the object and returns its public URL. size is -1 when
	// unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// Owns reports whether url already points into owned storage.
	Owns(url string) bool
}
