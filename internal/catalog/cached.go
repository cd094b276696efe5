package catalog

import (
	"context"

	"github.com/Harvey-AU/competitor-prices/internal/cache"
)

const snapshotKey = "catalogue"

// CachedLoader reads the whole catalogue from its source on the first Load and
// serves every competitor from that copy for the rest of the run.
type CachedLoader struct {
	source Source
	cache  *cache.InMemoryCache[*Snapshot]
}

// NewCachedLoader wraps source.
func NewCachedLoader(source Source) *CachedLoader {
	return &CachedLoader{
		source: source,
		cache:  cache.NewInMemoryCache[*Snapshot](),
	}
}

// Load returns the cleaned entries for competitor from the cached catalogue.
// A failed read is not cached, so the next Load tries the source again.
func (l *CachedLoader) Load(ctx context.Context, competitor string) ([]MatchEntry, error) {
	snapshot, err := l.cache.GetOrLoad(snapshotKey, func() (*Snapshot, error) {
		return l.source.Snapshot(ctx)
	})
	if err != nil {
		return nil, err
	}
	return snapshot.Entries(competitor)
}
