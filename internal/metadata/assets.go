package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ryanm101/gamelens/internal/assets"
	"github.com/ryanm101/gamelens/internal/metrics"
	"github.com/ryanm101/gamelens/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultImageExtension is used when an image URL has no extension.
const DefaultImageExtension = ".jpg"

// DefaultAssetURLPrefix is the path stored images are served under.
const DefaultAssetURLPrefix = "/images/games"

// Fetcher downloads a game's cover image. Fetch never fails: an empty path
// means there is no image.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string, gameID int) string
	Remove(ctx context.Context, localPath string) error
}

// AssetFetcher downloads images over HTTP into an asset store.
type AssetFetcher struct {
	client    *http.Client
	store     *assets.Store
	urlPrefix string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewAssetFetcher creates a fetcher writing into store. Stored images are
// addressed as urlPrefix + "/" + file name.
func NewAssetFetcher(client *http.Client, store *assets.Store, urlPrefix string, timeout time.Duration, logger *slog.Logger) *AssetFetcher {
	if client == nil {
		client = NewHTTPClient()
	}
	if urlPrefix == "" {
		urlPrefix = DefaultAssetURLPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetFetcher{
		client:    client,
		store:     store,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		timeout:   timeout,
		logger:    logger,
	}
}

// Fetch downloads imageURL and stores it under a unique name derived from
// gameID. Any failure is logged as a warning and reported as "".
func (f *AssetFetcher) Fetch(ctx context.Context, imageURL string, gameID int) string {
	ctx, span := tracing.StartSpan(ctx, "metadata.FetchAsset",
		trace.WithAttributes(attribute.Int("game.id", gameID)))
	defer span.End()

	name := imageFileName(imageURL, gameID)
	if err := f.download(ctx, imageURL, name); err != nil {
		span.RecordError(err)
		metrics.AssetDownloads.WithLabelValues("failed").Inc()
		f.logger.Warn("failed to save background image", "game_id", gameID, "error", err)
		return ""
	}

	metrics.AssetDownloads.WithLabelValues("stored").Inc()
	localPath := f.urlPrefix + "/" + name
	f.logger.Info("saved background image", "game_id", gameID, "path", localPath)
	return localPath
}

func (f *AssetFetcher) download(ctx context.Context, imageURL, name string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("invalid image url: %w", err)
	}

	resp, err := f.client.Do(req) //nolint:gosec // URL comes from the upstream API payload
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http error: %s", resp.Status)
	}

	return f.store.Put(ctx, name, resp.Body, resp.Header.Get("Content-Type"))
}

// Remove deletes an image previously returned by Fetch.
func (f *AssetFetcher) Remove(ctx context.Context, localPath string) error {
	if localPath == "" {
		return nil
	}
	return f.store.Delete(ctx, path.Base(localPath))
}

// imageFileName builds "<gameID>_<uuid><ext>" so that games sharing a source
// URL, or retries of the same game, never overwrite each other.
func imageFileName(imageURL string, gameID int) string {
	return fmt.Sprintf("%d_%s%s", gameID, uuid.NewString(), imageExtension(imageURL))
}

// imageExtension returns the extension of the URL path, ignoring any query
// string, or DefaultImageExtension when there is none.
func imageExtension(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := path.Ext(p)
	if ext == "" || ext == "." || strings.ContainsAny(ext, "/\\") {
		return DefaultImageExtension
	}
	return strings.ToLower(ext)
}
