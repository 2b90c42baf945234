package metadata

import (
	"context"

	"github.com/ryanm101/gamelens/internal/db"
)

// resolveReferences maps upstream (id, name) pairs of one category to
// reference rows. Each id resolves to the entity already staged in u, then to
// the committed row, and only then to a new entity, which is staged at once so
// a repeat of the id later in the same payload gets the same pointer.
// Names of existing entities are never changed.
func resolveReferences(ctx context.Context, u *db.UnitOfWork, c db.Category, pairs []NamedEntity) ([]*db.Reference, error) {
	refs := make([]*db.Reference, 0, len(pairs))
	seen := make(map[int]bool, len(pairs))

	for _, p := range pairs {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		ref, err := u.FindReference(ctx, c, p.ID)
		if err != nil {
			return nil, err
		}
		if ref == nil {
			ref, err = u.AddReference(c, &db.Reference{ID: p.ID, Name: p.Name})
			if err != nil {
				return nil, err
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// unwrapPlatforms extracts the (id, name) pair nested under each platform
// entry. Entries without a platform are skipped.
func unwrapPlatforms(wrapped []PlatformWrapper) []NamedEntity {
	out := make([]NamedEntity, 0, len(wrapped))
	for _, w := range wrapped {
		if w.Platform == nil {
			continue
		}
		out = append(out, *w.Platform)
	}
	return out
}
