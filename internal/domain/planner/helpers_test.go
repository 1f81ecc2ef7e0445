package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/trip-planner/internal/domain/guide"
	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int {
	return &v
}

func blockPtr(b itinerary.BlockType) *itinerary.BlockType {
	return &b
}

// scriptedChat replays replies in order and records every request.
type scriptedChat struct {
	replies []string
	err     error
	reqs    []chatgpt.ChatCompletionRequest
}

func (s *scriptedChat) CreateChatCompletion(_ context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return chatgpt.ChatCompletionResponse{}, s.err
	}
	if len(s.reqs) > len(s.replies) {
		return chatgpt.ChatCompletionResponse{}, errors.New("no scripted reply left")
	}
	var resp chatgpt.ChatCompletionResponse
	resp.Choices = append(resp.Choices, struct {
		Message chatgpt.Message `json:"message"`
	}{Message: chatgpt.Message{Role: "assistant", Content: s.replies[len(s.reqs)-1]}})
	return resp, nil
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttls     []time.Duration
	saveErr  error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]Session)}
}

func (m *memorySessions) Get(_ context.Context, id string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

func (m *memorySessions) Save(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[s.ID] = s
	m.ttls = append(m.ttls, ttl)
	return nil
}

type memoryVersions struct {
	mu       sync.Mutex
	versions map[string][]Version
}

func newMemoryVersions() *memoryVersions {
	return &memoryVersions{versions: make(map[string][]Version)}
}

func (m *memoryVersions) Append(_ context.Context, v Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions[v.SessionID] {
		if existing.Version == v.Version {
			return fmt.Errorf("version %d already exists", v.Version)
		}
	}
	m.versions[v.SessionID] = append(m.versions[v.SessionID], v)
	return nil
}

func (m *memoryVersions) List(_ context.Context, id string) ([]Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Version(nil), m.versions[id]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type recordingArchive struct {
	snaps []Snapshot
	err   error
}

func (a *recordingArchive) Put(_ context.Context, snap Snapshot) error {
	if a.err != nil {
		return a.err
	}
	a.snaps = append(a.snaps, snap)
	return nil
}

type stubTokens struct{}

func (stubTokens) Issue(id string) (string, error) {
	return "token-" + id, nil
}

type stubSupplier struct {
	pois    []itinerary.POI
	err     error
	queries []itinerary.SearchQuery
}

func (s *stubSupplier) Search(_ context.Context, q itinerary.SearchQuery) ([]itinerary.POI, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]itinerary.POI, 0, len(s.pois))
	for _, p := range s.pois {
		if q.IndoorOnly && p.Tags["indoor"] != "yes" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type recordingGuide struct {
	reqs []guide.ExplainRequest
}

func (g *recordingGuide) Explain(_ context.Context, req guide.ExplainRequest) (guide.Explanation, error) {
	g.reqs = append(g.reqs, req)
	return guide.Explanation{Explanation: "because " + req.POIName, Grounded: true}, nil
}

type fixedMinutes float64

func (f fixedMinutes) Estimate(_, _ itinerary.Coordinates) (float64, error) {
	return float64(f), nil
}

// jaipurPOIs returns n POIs spread a little around the old city.
func jaipurPOIs(n int) []itinerary.POI {
	out := make([]itinerary.POI, n)
	for i := range out {
		tags := map[string]string{}
		if i%2 == 0 {
			tags["indoor"] = "yes"
		}
		out[i] = itinerary.POI{
			ID:                fmt.Sprintf("poi/%d", i+1),
			Name:              fmt.Sprintf("Place %d", i+1),
			Category:          "tourism",
			Subcategory:       "attraction",
			Coordinates:       itinerary.Coordinates{Lat: 26.90 + float64(i)*0.002, Lon: 75.80},
			EstimatedDuration: 60,
			Source:            "catalog",
			Tags:              tags,
		}
	}
	return out
}
