// Package poicache memoizes supplier results per query.
package poicache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

// Store persists cached search results.
type Store interface {
	Get(ctx context.Context, key string) ([]itinerary.POI, bool, error)
	Set(ctx context.Context, key string, pois []itinerary.POI, ttl time.Duration) error
}

// Supplier wraps another supplier with a read-through cache.
type Supplier struct {
	next   itinerary.POISupplier
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

var _ itinerary.POISupplier = (*Supplier)(nil)

// New decorates next. A non-positive ttl keeps entries until the store evicts them.
func New(next itinerary.POISupplier, store Store, ttl time.Duration, logger *slog.Logger) *Supplier {
	return &Supplier{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "poi.cache"),
	}
}

// Search serves from the store when possible. Cache failures degrade to a direct lookup.
func (s *Supplier) Search(ctx context.Context, q itinerary.SearchQuery) ([]itinerary.POI, error) {
	key := Key(q)
	if pois, ok, err := s.store.Get(ctx, key); err != nil {
		s.logger.Warn("poi cache read failed", "key", key, "error", err)
	} else if ok {
		s.logger.Debug("poi cache hit", "key", key, "count", len(pois))
		return pois, nil
	}

	pois, err := s.next.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(pois) > 0 {
		if err := s.store.Set(ctx, key, pois, s.ttl); err != nil {
			s.logger.Warn("poi cache write failed", "key", key, "error", err)
		}
	}
	return pois, nil
}

// Key renders a stable cache key. Interest order and case do not matter.
func Key(q itinerary.SearchQuery) string {
	interests := make([]string, 0, len(q.Interests))
	for _, i := range q.Interests {
		if v := strings.ToLower(strings.TrimSpace(i)); v != "" {
			interests = append(interests, v)
		}
	}
	sort.Strings(interests)
	return fmt.Sprintf("%s|%s|indoor=%t|access=%t|limit=%d",
		strings.ToLower(strings.TrimSpace(q.City)),
		strings.Join(interests, ","),
		q.IndoorOnly, q.Accessibility, q.Limit)
}
