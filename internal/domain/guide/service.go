package guide

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

// Config holds runtime knobs for the guide service.
type Config struct {
	Model       string
	Temperature float32
	Prompt      string
	TopK        int
	MinScore    float64
	ChunkTokens int
}

// Service answers grounded questions about POIs and plans.
type Service interface {
	Explain(ctx context.Context, req ExplainRequest) (Explanation, error)
	Lookup(ctx context.Context, req ExplainRequest) ([]Match, error)
	Ingest(ctx context.Context, doc Document) (int, error)
}

type service struct {
	cfg      Config
	repo     SnippetRepository
	embedder Embedder
	chunker  Chunker
	client   chatClient
	logger   *slog.Logger
}

// NewService wires the guide domain. client may be nil, in which case answers are retrieval-only.
func NewService(cfg Config, repo SnippetRepository, embedder Embedder, chunker Chunker, client chatClient, logger *slog.Logger) Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = 200
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = defaultPrompt
	}
	return &service{
		cfg:      cfg,
		repo:     repo,
		embedder: embedder,
		chunker:  chunker,
		client:   client,
		logger:   logger.With("component", "guide.service"),
	}
}

const defaultPrompt = "You are a local travel guide. Answer in at most four sentences using only the numbered context. " +
	"If the context does not cover the question, say so briefly."

// lookupTemplates lists the queries tried in order per kind. The first query with hits wins.
var lookupTemplates = map[Kind][]string{
	KindPOI:     {"{poi} {question}", "{poi}", "{city} {question}"},
	KindPlan:    {"{question}", "{city} itinerary pace travel time", "{city} sightseeing"},
	KindWeather: {"{question} {city} indoor", "{city} rainy day indoor", "{city} weather"},
}

func (s *service) Explain(ctx context.Context, req ExplainRequest) (Explanation, error) {
	req = normalizeRequest(req)
	if !req.Kind.Valid() {
		return Explanation{}, apperrors.Wrap("invalid_input", fmt.Sprintf("unknown explanation kind %q", req.Kind), nil)
	}
	if req.Kind == KindPOI && req.POIName == "" {
		return Explanation{}, apperrors.Wrap("invalid_input", "poiName is required for poi explanations", nil)
	}

	matches, err := s.Lookup(ctx, req)
	if err != nil {
		s.logger.Warn("guide lookup failed", "kind", req.Kind, "city", req.City, "error", err)
		matches = nil
	}
	if len(matches) == 0 {
		return Explanation{Explanation: genericAnswer(req), Citations: []Citation{}, Grounded: false}, nil
	}

	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		citations = append(citations, Citation{
			Source:  m.Snippet.Source,
			Section: m.Snippet.Section,
			City:    m.Snippet.City,
			Score:   m.Score,
		})
	}

	answer, err := s.answer(ctx, req, matches)
	if err != nil {
		s.logger.Warn("guide llm failed, answering from retrieval", "kind", req.Kind, "error", err)
		answer = matches[0].Snippet.Text
	}
	return Explanation{Explanation: answer, Citations: citations, Grounded: true}, nil
}

// Lookup runs the kind's query templates in order and returns the first non-empty result set.
func (s *service) Lookup(ctx context.Context, req ExplainRequest) ([]Match, error) {
	req = normalizeRequest(req)
	queries := renderQueries(req)
	if len(queries) == 0 {
		return nil, nil
	}
	var lastErr error
	for i, q := range queries {
		vectors, err := s.embedder.Embed(ctx, []string{q})
		if err != nil || len(vectors) == 0 {
			lastErr = fmt.Errorf("embed lookup query: %w", err)
			continue
		}
		hits, err := s.repo.Search(ctx, req.City, vectors[0], s.cfg.TopK)
		if err != nil {
			lastErr = fmt.Errorf("search snippets: %w", err)
			continue
		}
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score >= s.cfg.MinScore {
				filtered = append(filtered, h)
			}
		}
		if len(filtered) > 0 {
			s.logger.Debug("guide lookup hit", "strategy", i, "query", q, "hits", len(filtered))
			return filtered, nil
		}
	}
	return nil, lastErr
}

func (s *service) Ingest(ctx context.Context, doc Document) (int, error) {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return 0, apperrors.Wrap("invalid_input", "guide text cannot be empty", nil)
	}
	chunks := s.chunker.Split(text, s.cfg.ChunkTokens)
	if len(chunks) == 0 {
		return 0, nil
	}
	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, apperrors.Wrap("llm_error", "failed to embed guide text", err)
	}
	if len(vectors) != len(chunks) {
		return 0, apperrors.Wrap("llm_error", fmt.Sprintf("expected %d embeddings, got %d", len(chunks), len(vectors)), nil)
	}
	for i, chunk := range chunks {
		snippet := Snippet{
			ID:        snippetID(doc, i, chunk),
			City:      strings.TrimSpace(doc.City),
			Source:    strings.TrimSpace(doc.Source),
			Section:   strings.TrimSpace(doc.Section),
			Text:      chunk,
			Embedding: vectors[i],
		}
		if err := s.repo.Insert(ctx, snippet); err != nil {
			return i, apperrors.Wrap("storage_error", "failed to store guide snippet", err)
		}
	}
	return len(chunks), nil
}

func (s *service) answer(ctx context.Context, req ExplainRequest, matches []Match) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no llm client configured")
	}
	var sb strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&sb, "[%d] (%s / %s) %s\n", i+1, m.Snippet.Source, m.Snippet.Section, m.Snippet.Text)
	}
	user := fmt.Sprintf("Kind: %s\nCity: %s\n", req.Kind, req.City)
	if req.POIName != "" {
		user += "Place: " + req.POIName + "\n"
	}
	if req.Question != "" {
		user += "Question: " + req.Question + "\n"
	}
	if req.Summary != "" {
		user += "Itinerary:\n" + req.Summary + "\n"
	}
	user += "Context:\n" + sb.String()

	resp, err := s.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		Messages: []chatgpt.Message{
			{Role: "system", Content: s.cfg.Prompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if usage := resp.TokenUsage(); !usage.IsZero() {
		s.logger.Debug("guide completion", "model", resp.Model, "usage", usage)
	}
	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

func normalizeRequest(req ExplainRequest) ExplainRequest {
	req.Kind = Kind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	req.City = strings.TrimSpace(req.City)
	req.POIName = strings.TrimSpace(req.POIName)
	req.Question = strings.TrimSpace(req.Question)
	req.Summary = strings.TrimSpace(req.Summary)
	return req
}

func renderQueries(req ExplainRequest) []string {
	r := strings.NewReplacer("{poi}", req.POIName, "{question}", req.Question, "{city}", req.City)
	seen := make(map[string]struct{})
	var out []string
	for _, tmpl := range lookupTemplates[req.Kind] {
		q := strings.Join(strings.Fields(r.Replace(tmpl)), " ")
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

func genericAnswer(req ExplainRequest) string {
	city := req.City
	if city == "" {
		city = "the city"
	}
	switch req.Kind {
	case KindPOI:
		return fmt.Sprintf("%s is one of the stops picked for your time in %s. No guide notes cover it yet, so check opening hours before you go.", req.POIName, city)
	case KindWeather:
		return fmt.Sprintf("Outdoor stops in %s were swapped for indoor ones to keep the plan comfortable in bad weather.", city)
	default:
		return fmt.Sprintf("The plan groups nearby stops in %s into morning, afternoon and evening blocks to keep travel time low.", city)
	}
}

// snippetID is stable for identical content so re-ingesting a seed corpus is idempotent.
func snippetID(doc Document, idx int, chunk string) string {
	key := fmt.Sprintf("%s|%s|%s|%d|%s", strings.ToLower(strings.TrimSpace(doc.City)), doc.Source, doc.Section, idx, chunk)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
