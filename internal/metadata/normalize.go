package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/ryanm101/gamelens/internal/db"
	"github.com/ryanm101/gamelens/internal/metrics"
	"github.com/ryanm101/gamelens/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// normalize turns one upstream detail payload into a stored Game inside a
// single unit of work. The steps run in a fixed order: re-check storage,
// download the image, resolve the four reference categories, commit.
func (s *Service) normalize(ctx context.Context, detail *GameDetail) (_ *db.Game, err error) {
	ctx, span := tracing.StartSpan(ctx, "metadata.normalize",
		trace.WithAttributes(attribute.Int("game.id", detail.ID)))
	defer func() { tracing.EndSpan(span, err) }()

	u := s.db.Begin()
	defer u.Rollback()

	// A concurrent miss for the same id may have stored the game already.
	existing, err := u.FindGame(ctx, detail.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	var localImage string
	if detail.BackgroundImage != "" {
		localImage = s.fetcher.Fetch(ctx, detail.BackgroundImage, detail.ID)
	}

	g := &db.Game{
		ID:                   detail.ID,
		Name:                 detail.Name,
		Description:          detail.Description,
		Metacritic:           detail.Metacritic,
		Released:             detail.Released.Ptr(),
		BackgroundImageURL:   detail.BackgroundImage,
		LocalBackgroundImage: localImage,
	}

	sources := map[db.Category][]NamedEntity{
		db.CategoryGenre:     detail.Genres,
		db.CategoryPlatform:  unwrapPlatforms(detail.Platforms),
		db.CategoryDeveloper: detail.Developers,
		db.CategoryPublisher: detail.Publishers,
	}
	for _, c := range db.Categories {
		refs, err := resolveReferences(ctx, u, c, sources[c])
		if err != nil {
			s.discardImage(ctx, localImage)
			return nil, err
		}
		g.SetReferences(c, refs)
	}

	if err := u.AddGame(g); err != nil {
		s.discardImage(ctx, localImage)
		return nil, err
	}

	result, err := u.Commit(ctx)
	if err != nil {
		s.discardImage(ctx, localImage)
		if errors.Is(err, db.ErrGameExists) {
			return s.adoptCommitted(ctx, detail.ID)
		}
		return nil, err
	}

	for c, n := range result.Created {
		metrics.ReferencesCreated.WithLabelValues(string(c)).Add(float64(n))
	}
	if result.Conflicts > 0 {
		metrics.CommitConflicts.WithLabelValues("reference").Add(float64(result.Conflicts))
	}

	s.logger.Info("saved game to database", "game_name", g.Name, "game_id", g.ID)
	return g, nil
}

// adoptCommitted returns the game a concurrent writer committed first. The
// losing unit of work has already been rolled back.
func (s *Service) adoptCommitted(ctx context.Context, id int) (*db.Game, error) {
	metrics.CommitConflicts.WithLabelValues("game").Inc()
	g, err := s.db.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("game %d reported as existing but not found", id)
	}
	s.logger.Info("game committed concurrently, returning stored copy", "game_id", id)
	return g, nil
}

// discardImage removes an image whose game was not stored.
func (s *Service) discardImage(ctx context.Context, localPath string) {
	if localPath == "" {
		return
	}
	if err := s.fetcher.Remove(ctx, localPath); err != nil {
		s.logger.Warn("failed to remove orphaned image", "path", localPath, "error", err)
	}
}
