// Package poi holds the supplier plumbing shared by the concrete POI sources.
package poi

import (
	"sort"
	"strings"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

// DefaultKeys are searched when no interest maps to an OSM key.
var DefaultKeys = []string{"tourism", "amenity", "historic"}

var interestKeys = map[string][]string{
	"food":          {"amenity"},
	"culture":       {"tourism", "historic"},
	"history":       {"historic", "tourism"},
	"shopping":      {"shop", "amenity"},
	"nature":        {"leisure", "natural"},
	"religion":      {"amenity"},
	"architecture":  {"historic", "tourism"},
	"entertainment": {"leisure", "amenity"},
	"sports":        {"leisure", "sport"},
	"art":           {"tourism", "amenity"},
}

// CategoryKeys lists the OSM keys, in the order a category is picked from an element's tags.
var CategoryKeys = []string{"tourism", "historic", "amenity", "shop", "leisure", "natural", "sport"}

// KeysFor maps interests onto OSM top-level keys, sorted and without duplicates.
func KeysFor(interests []string) []string {
	seen := make(map[string]struct{})
	for _, interest := range interests {
		for _, key := range interestKeys[strings.ToLower(strings.TrimSpace(interest))] {
			seen[key] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return append([]string(nil), DefaultKeys...)
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Category picks the first known OSM key present in tags and returns it with its value.
func Category(tags map[string]string) (string, string) {
	for _, key := range CategoryKeys {
		if v, ok := tags[key]; ok {
			return key, v
		}
	}
	return "other", ""
}

var durationHints = []struct {
	hint    string
	minutes int
}{
	{"palace", 120},
	{"fort", 180},
	{"museum", 90},
	{"temple", 60},
	{"market", 120},
	{"park", 60},
	{"monument", 45},
	{"restaurant", 90},
	{"cafe", 30},
}

// EstimateDuration guesses a visit length in minutes from the subcategory and tag values.
func EstimateDuration(subcategory string, tags map[string]string) int {
	sub := strings.ToLower(subcategory)
	for _, h := range durationHints {
		if strings.Contains(sub, h.hint) || tagsMention(tags, h.hint) {
			return h.minutes
		}
	}
	return itinerary.DefaultVisitDuration
}

// Matches applies the indoor and accessibility preferences of a query.
func Matches(p itinerary.POI, q itinerary.SearchQuery) bool {
	if q.IndoorOnly && !tagsMention(p.Tags, "indoor") {
		return false
	}
	if q.Accessibility && !tagsMention(p.Tags, "wheelchair") {
		return false
	}
	return true
}

// MatchesInterests reports whether a POI's category falls under one of the interests. An empty
// interest list matches everything.
func MatchesInterests(p itinerary.POI, interests []string) bool {
	if len(interests) == 0 {
		return true
	}
	for _, key := range KeysFor(interests) {
		if p.Category == key {
			return true
		}
	}
	for _, interest := range interests {
		needle := strings.ToLower(strings.TrimSpace(interest))
		if needle != "" && (strings.Contains(strings.ToLower(p.Subcategory), needle) || strings.Contains(strings.ToLower(p.Name), needle)) {
			return true
		}
	}
	return false
}

func tagsMention(tags map[string]string, needle string) bool {
	for k, v := range tags {
		if strings.Contains(strings.ToLower(k), needle) || strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}
