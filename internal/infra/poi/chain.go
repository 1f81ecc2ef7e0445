package poi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

// Chain asks the primary supplier first and tops the result up from the secondary when the
// primary fails or returns fewer than minResults POIs.
type Chain struct {
	primary    itinerary.POISupplier
	secondary  itinerary.POISupplier
	minResults int
	logger     *slog.Logger
}

var _ itinerary.POISupplier = (*Chain)(nil)

// NewChain wires an ordered pair of suppliers.
func NewChain(primary, secondary itinerary.POISupplier, minResults int, logger *slog.Logger) *Chain {
	return &Chain{
		primary:    primary,
		secondary:  secondary,
		minResults: minResults,
		logger:     logger.With("component", "poi.chain"),
	}
}

// Search implements itinerary.POISupplier.
func (c *Chain) Search(ctx context.Context, q itinerary.SearchQuery) ([]itinerary.POI, error) {
	pois, primaryErr := c.primary.Search(ctx, q)
	if primaryErr != nil {
		c.logger.Warn("primary poi supplier failed", "city", q.City, "error", primaryErr)
		pois = nil
	}

	want := c.minResults
	if q.Limit > 0 && q.Limit < want {
		want = q.Limit
	}
	if len(pois) >= want || c.secondary == nil {
		if primaryErr != nil {
			return nil, primaryErr
		}
		return truncate(pois, q.Limit), nil
	}

	extra, err := c.secondary.Search(ctx, q)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("all poi suppliers failed: %w", err)
		}
		c.logger.Warn("secondary poi supplier failed", "city", q.City, "error", err)
		return truncate(pois, q.Limit), nil
	}

	seen := make(map[string]struct{}, len(pois))
	for _, p := range pois {
		seen[p.ID] = struct{}{}
	}
	added := 0
	for _, p := range extra {
		if len(pois) >= want {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		pois = append(pois, p)
		added++
	}
	if added > 0 {
		c.logger.Info("topped up poi results", "city", q.City, "added", added, "total", len(pois))
	}
	return truncate(pois, q.Limit), nil
}

func truncate(pois []itinerary.POI, limit int) []itinerary.POI {
	if limit > 0 && len(pois) > limit {
		return pois[:limit]
	}
	return pois
}
