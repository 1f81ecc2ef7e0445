package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/infra/poi"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	defaultUserAgent    = "trip-planner/1.0"
	maxAttempts         = 4
	sourceTag           = "osm"
)

// DefaultInstances are the public Overpass endpoints tried in order.
var DefaultInstances = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.openstreetmap.ru/api/interpreter",
}

// Options configures a Client.
type Options struct {
	Instances    []string
	NominatimURL string
	UserAgent    string
	Timeout      time.Duration
	BaseBackoff  time.Duration
}

// Client finds POIs through Nominatim geocoding and Overpass queries.
type Client struct {
	instances    []string
	nominatimURL string
	userAgent    string
	baseBackoff  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ itinerary.POISupplier = (*Client)(nil)

// NewClient builds an Overpass client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	instances := opts.Instances
	if len(instances) == 0 {
		instances = DefaultInstances
	}
	nominatim := strings.TrimSpace(opts.NominatimURL)
	if nominatim == "" {
		nominatim = defaultNominatimURL
	}
	agent := strings.TrimSpace(opts.UserAgent)
	if agent == "" {
		agent = defaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Client{
		instances:    instances,
		nominatimURL: nominatim,
		userAgent:    agent,
		baseBackoff:  backoff,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger.With("component", "poi.overpass"),
	}
}

// BBox is a south/west/north/east bounding box.
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Search implements itinerary.POISupplier.
func (c *Client) Search(ctx context.Context, q itinerary.SearchQuery) ([]itinerary.POI, error) {
	city := strings.TrimSpace(q.City)
	if city == "" {
		return nil, errors.New("overpass search requires a city")
	}
	bbox, err := c.LookupBBox(ctx, city)
	if err != nil {
		return nil, err
	}
	query := BuildQuery(poi.KeysFor(q.Interests), bbox)

	var lastErr error
	for _, instance := range c.instances {
		elements, err := c.runQuery(ctx, instance, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("overpass instance failed", "instance", instance, "error", err)
			lastErr = err
			continue
		}
		pois := make([]itinerary.POI, 0, len(elements))
		for _, el := range elements {
			p, ok := toPOI(el)
			if !ok || !poi.Matches(p, q) {
				continue
			}
			pois = append(pois, p)
			if q.Limit > 0 && len(pois) >= q.Limit {
				break
			}
		}
		c.logger.Info("overpass search complete", "city", city, "instance", instance, "elements", len(elements), "pois", len(pois))
		return pois, nil
	}
	return nil, fmt.Errorf("all overpass instances failed: %w", lastErr)
}

// LookupBBox geocodes a city name with Nominatim.
func (c *Client) LookupBBox(ctx context.Context, city string) (BBox, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("format", "json")
	params.Set("limit", "1")
	endpoint := c.nominatimURL + "?" + params.Encode()

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return BBox{}, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	var places []struct {
		BoundingBox []string `json:"boundingbox"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return BBox{}, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(places) == 0 || len(places[0].BoundingBox) != 4 {
		return BBox{}, fmt.Errorf("no bounding box found for %q", city)
	}
	// Nominatim orders the box as min_lat, max_lat, min_lon, max_lon.
	var vals [4]float64
	for i, raw := range places[0].BoundingBox {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return BBox{}, fmt.Errorf("parse bounding box for %q: %w", city, err)
		}
		vals[i] = v
	}
	return BBox{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}, nil
}

// BuildQuery renders an Overpass QL query for named nodes and ways under the given keys.
func BuildQuery(keys []string, b BBox) string {
	box := fmt.Sprintf("(%s,%s,%s,%s)", fmtCoord(b.MinLat), fmtCoord(b.MinLon), fmtCoord(b.MaxLat), fmtCoord(b.MaxLon))
	var sb strings.Builder
	sb.WriteString("[out:json][timeout:25];\n(\n")
	for _, key := range keys {
		for _, kind := range []string{"node", "way"} {
			fmt.Fprintf(&sb, "  %s[%q][\"name\"]%s;\n", kind, key, box)
		}
	}
	sb.WriteString(");\nout center;\n")
	return sb.String()
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *latLon           `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type queryResponse struct {
	Elements []element `json:"elements"`
}

func (c *Client) runQuery(ctx context.Context, instance, query string) ([]element, error) {
	form := url.Values{}
	form.Set("data", query)
	encoded := form.Encode()

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodPost, instance, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	return out.Elements, nil
}

func toPOI(el element) (itinerary.POI, bool) {
	name := el.Tags["name"]
	if name == "" {
		name = el.Tags["name:en"]
	}
	if name == "" {
		return itinerary.POI{}, false
	}
	var coords itinerary.Coordinates
	switch {
	case el.Lat != nil && el.Lon != nil:
		coords = itinerary.Coordinates{Lat: *el.Lat, Lon: *el.Lon}
	case el.Center != nil:
		coords = itinerary.Coordinates{Lat: el.Center.Lat, Lon: el.Center.Lon}
	default:
		return itinerary.POI{}, false
	}
	if itinerary.ValidateCoordinates(coords) != nil {
		return itinerary.POI{}, false
	}
	category, sub := poi.Category(el.Tags)
	return itinerary.POI{
		ID:                fmt.Sprintf("%s/%d", el.Type, el.ID),
		Name:              name,
		Category:          category,
		Subcategory:       sub,
		Coordinates:       coords,
		EstimatedDuration: poi.EstimateDuration(sub, el.Tags),
		Source:            sourceTag,
		Tags:              el.Tags,
	}, true
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &httpStatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// doWithRetry retries rate limits, gateway failures and network errors with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.baseBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, lastErr
}
