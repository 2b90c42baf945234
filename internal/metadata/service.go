package metadata

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ryanm101/gamelens/internal/db"
	"github.com/ryanm101/gamelens/internal/metrics"
	"github.com/ryanm101/gamelens/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	opSearch = "search games"
	opGet    = "get game"
)

// Service answers game queries from the local database and falls back to the
// upstream provider on a miss, storing whatever it fetches.
type Service struct {
	db       *db.DB
	provider Provider
	fetcher  Fetcher
	logger   *slog.Logger

	inflight singleflight.Group
}

// NewService creates a new metadata service.
func NewService(d *db.DB, p Provider, f Fetcher, logger *slog.Logger) (*Service, error) {
	if d == nil {
		return nil, errors.New("database is required")
	}
	if p == nil {
		return nil, errors.New("metadata provider is required")
	}
	if f == nil {
		return nil, errors.New("asset fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: d, provider: p, fetcher: f, logger: logger}, nil
}

// Search returns one page of games whose name contains query. Any local match
// satisfies the call. Otherwise the provider is searched and every result is
// resolved to a full stored game; a single failure fails the whole call.
func (s *Service) Search(ctx context.Context, query string, page, pageSize int) (_ []*db.Game, err error) {
	ctx, span := tracing.StartSpan(ctx, "metadata.Search", trace.WithAttributes(
		attribute.String("query", query),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	))
	defer func() { tracing.EndSpan(span, err) }()

	if strings.TrimSpace(query) == "" {
		return nil, invalidArgument(opSearch, "query must not be empty")
	}
	if page < 1 {
		return nil, invalidArgument(opSearch, "page must be at least 1")
	}
	if pageSize < 1 {
		return nil, invalidArgument(opSearch, "page size must be at least 1")
	}

	local, err := s.db.SearchGames(ctx, query, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, classify(opSearch, err)
	}
	if len(local) > 0 {
		metrics.CacheLookups.WithLabelValues("search", "hit").Inc()
		return local, nil
	}
	metrics.CacheLookups.WithLabelValues("search", "miss").Inc()

	s.logger.Info("no local matches, searching upstream", "provider", s.provider.Name(), "query", query, "page", page)
	result, err := s.provider.Search(ctx, query, page, pageSize)
	if err != nil {
		return nil, classify(opSearch, err)
	}

	games := make([]*db.Game, 0, len(result.Results))
	for _, item := range result.Results {
		g, err := s.GetByID(ctx, item.ID)
		if err != nil {
			return nil, classify(opSearch, err)
		}
		games = append(games, g)
	}
	return games, nil
}

// GetByID returns the stored game with the given upstream id, fetching and
// storing it first if it is not cached. Cached games are never refreshed.
func (s *Service) GetByID(ctx context.Context, id int) (_ *db.Game, err error) {
	ctx, span := tracing.StartSpan(ctx, "metadata.GetByID",
		trace.WithAttributes(attribute.Int("game.id", id)))
	defer func() { tracing.EndSpan(span, err) }()

	if id <= 0 {
		return nil, invalidArgument(opGet, "id must be positive")
	}

	g, err := s.db.GetGame(ctx, id)
	if err != nil {
		return nil, classify(opGet, err)
	}
	if g != nil {
		metrics.CacheLookups.WithLabelValues("get", "hit").Inc()
		return g, nil
	}
	metrics.CacheLookups.WithLabelValues("get", "miss").Inc()

	// Concurrent misses for one id share a single upstream fetch. The shared
	// fetch outlives any one caller's cancellation; the upstream and image
	// timeouts still bound it.
	ch := s.inflight.DoChan(strconv.Itoa(id), func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), id)
	})

	select {
	case <-ctx.Done():
		return nil, classify(opGet, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, classify(opGet, res.Err)
		}
		if res.Shared {
			span.SetAttributes(attribute.Bool("singleflight.shared", true))
		}
		return res.Val.(*db.Game), nil
	}
}

// fetch loads one game from the provider and stores it.
func (s *Service) fetch(ctx context.Context, id int) (*db.Game, error) {
	s.logger.Info("game not cached, fetching details", "provider", s.provider.Name(), "game_id", id)
	detail, err := s.provider.GetDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.normalize(ctx, detail)
}
