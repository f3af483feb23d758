package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mdsxbm/tapcanvas/pkg/api"
	"github.com/mdsxbm/tapcanvas/pkg/debug"
	"github.com/mdsxbm/tapcanvas/pkg/observability"
)

// DefaultMaxBytes caps a single downloaded asset.
const DefaultMaxBytes int64 = 512 << 20

const nameRunes = 40

var errTooLarge = errors.New("asset exceeds size limit")

// Meta describes the task that produced a batch of assets.
type Meta struct {
	UserID   string
	Vendor   string
	Kind     api.TaskKind
	Prompt   string
	ModelKey string
}

// Rehoster copies vendor asset URLs into owned storage and records them.
// A nil Uploader keeps vendor URLs; a nil Store skips persistence.
type Rehoster struct {
	uploader   Uploader
	store      Store
	httpClient *http.Client
	maxBytes   int64
	now        func() time.Time
}

// Option configures a Rehoster.
type Option func(*Rehoster)

// WithHTTPClient sets the client used to download vendor assets.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Rehoster) { r.httpClient = c }
}

// WithMaxBytes caps the size of one downloaded asset.
func WithMaxBytes(n int64) Option {
	return func(r *Rehoster) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithClock overrides time.Now for record names.
func WithClock(now func() time.Time) Option {
	return func(r *Rehoster) { r.now = now }
}

// NewRehoster creates a Rehoster.
func NewRehoster(uploader Uploader, store Store, opts ...Option) *Rehoster {
	r := &Rehoster{
		uploader:   uploader,
		store:      store,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		maxBytes:   DefaultMaxBytes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rehost returns a copy of assets with url and thumbnailUrl swapped for owned
// copies and creates one record per distinct URL. It never fails: an asset
// that cannot be copied keeps its vendor URL, and record errors are logged.
func (r *Rehoster) Rehost(ctx context.Context, meta Meta, assets []api.TaskAsset) []api.TaskAsset {
	if len(assets) == 0 {
		return assets
	}
	ctx, span := observability.StartSpan(ctx, "assets.rehost",
		attribute.String("vendor", meta.Vendor),
		attribute.Int("assets", len(assets)),
	)
	defer span.End()

	copied := make(map[string]string)
	out := make([]api.TaskAsset, len(assets))
	for i, a := range assets {
		a.URL = r.copyOnce(ctx, copied, a.URL, a.Type)
		if a.ThumbnailURL != "" {
			a.ThumbnailURL = r.copyOnce(ctx, copied, a.ThumbnailURL, api.AssetTypeImage)
		}
		out[i] = a
		r.record(ctx, meta, a)
	}
	return out
}

func (r *Rehoster) copyOnce(ctx context.Context, seen map[string]string, src string, typ api.AssetType) string {
	if src == "" {
		return src
	}
	if dst, ok := seen[src]; ok {
		return dst
	}
	dst := r.copy(ctx, src, typ)
	seen[src] = dst
	return dst
}

// copy stores src under gen/<images|videos>/<sha256(src)>.<ext>. An object
// that already exists under that key is reused without downloading.
func (r *Rehoster) copy(ctx context.Context, src string, typ api.AssetType) string {
	if r.uploader == nil || r.uploader.Owns(src) {
		observability.RehostTotal.WithLabelValues("skipped").Inc()
		return src
	}
	key := Key(src, typ)
	if url, ok, err := r.uploader.Exists(ctx, key); err == nil && ok {
		observability.RehostTotal.WithLabelValues("existing").Inc()
		debug.Log(debug.Rehost, "already stored", "key", key)
		return url
	}

	url, err := r.upload(ctx, src, key, typ)
	if err != nil {
		observability.RehostTotal.WithLabelValues("kept").Inc()
		slog.Warn("keeping vendor asset url", "error", api.NewRehostFailure(debug.Truncate(src, 120), err))
		return src
	}
	observability.RehostTotal.WithLabelValues("uploaded").Inc()
	debug.Log(debug.Rehost, "uploaded", "key", key, "url", url)
	return url
}

func (r *Rehoster) upload(ctx context.Context, src, key string, typ api.AssetType) (string, error) {
	if strings.HasPrefix(src, "data:") {
		data, contentType, err := DecodeDataURL(src)
		if err != nil {
			return "", err
		}
		if int64(len(data)) > r.maxBytes {
			return "", errTooLarge
		}
		return r.uploader.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	if resp.ContentLength > r.maxBytes {
		return "", errTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(key, typ)
	}
	body := &capReader{r: resp.Body, left: r.maxBytes}
	return r.uploader.Put(ctx, key, body, resp.ContentLength, contentType)
}

func (r *Rehoster) record(ctx context.Context, meta Meta, a api.TaskAsset) {
	if r.store == nil || meta.UserID == "" || a.URL == "" {
		return
	}
	rec := &Record{
		OwnerID:      meta.UserID,
		Name:         r.name(meta.Prompt, a.Type),
		Type:         a.Type,
		URL:          a.URL,
		ThumbnailURL: a.ThumbnailURL,
		Vendor:       meta.Vendor,
		TaskKind:     meta.Kind,
		Prompt:       meta.Prompt,
		ModelKey:     meta.ModelKey,
		CreatedAt:    r.now(),
	}
	created, err := r.store.CreateIfAbsent(ctx, rec)
	switch {
	case err != nil:
		observability.AssetRecordsTotal.WithLabelValues("error").Inc()
		slog.Warn("asset record not saved", "user", meta.UserID, "url", debug.Truncate(a.URL, 120), "error", err)
	case created:
		observability.AssetRecordsTotal.WithLabelValues("created").Inc()
	default:
		observability.AssetRecordsTotal.WithLabelValues("duplicate").Inc()
	}
}

// name is a prompt excerpt, or the asset type and a timestamp when the
// prompt is blank.
func (r *Rehoster) name(prompt string, typ api.AssetType) string {
	p := strings.Join(strings.Fields(prompt), " ")
	if p == "" {
		return fmt.Sprintf("%s %s", typ, r.now().Format("2006-01-02 15:04:05"))
	}
	if utf8.RuneCountInString(p) <= nameRunes {
		return p
	}
	return string([]rune(p)[:nameRunes]) + "..."
}

// Key returns the storage key for src.
func Key(src string, typ api.AssetType) string {
	sum := sha256.Sum256([]byte(src))
	dir := "images"
	if typ == api.AssetTypeVideo {
		dir = "videos"
	}
	return fmt.Sprintf("gen/%s/%s.%s", dir, hex.EncodeToString(sum[:]), extension(src, typ))
}

func extension(src string, typ api.AssetType) string {
	if strings.HasPrefix(src, "data:") {
		mediaType, _, _ := strings.Cut(strings.TrimPrefix(src, "data:"), ";")
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" && !strings.ContainsAny(sub, ",+") {
			return strings.ToLower(sub)
		}
	} else {
		p := src
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
		switch ext {
		case "png", "jpg", "jpeg", "webp", "gif", "mp4", "webm", "mov":
			return ext
		}
	}
	if typ == api.AssetTypeVideo {
		return "mp4"
	}
	return "png"
}

func contentTypeFor(key string, typ api.AssetType) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	if typ == api.AssetTypeVideo {
		return "video/mp4"
	}
	return "image/png"
}

// DecodeDataURL decodes a base64 data URL into its bytes and media type.
func DecodeDataURL(s string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, "", errors.New("malformed data url")
	}
	mediaType, params, _ := strings.Cut(header, ";")
	if !strings.Contains(params, "base64") {
		return nil, "", errors.New("data url is not base64")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data url: %w", err)
	}
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return data, mediaType, nil
}

// capReader fails once more than left bytes have been read.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, errTooLarge
	}
	return n, err
}
