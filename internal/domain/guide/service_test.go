package guide

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
	apperrors "github.com/yanqian/trip-planner/pkg/errors"
	"github.com/yanqian/trip-planner/pkg/tokenizer"
)

// sequenceEmbedder numbers every text it sees so the repo can answer per strategy.
type sequenceEmbedder struct {
	texts []string
}

func (e *sequenceEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		e.texts = append(e.texts, t)
		out[i] = []float32{float32(len(e.texts))}
	}
	return out, nil
}

type stubRepo struct {
	inserted []Snippet
	hitsFrom int
	hits     []Match
	cities   []string
}

func (r *stubRepo) Insert(_ context.Context, s Snippet) error {
	r.inserted = append(r.inserted, s)
	return nil
}

func (r *stubRepo) Search(_ context.Context, city string, embedding []float32, _ int) ([]Match, error) {
	r.cities = append(r.cities, city)
	if r.hitsFrom > 0 && int(embedding[0]) >= r.hitsFrom {
		return append([]Match(nil), r.hits...), nil
	}
	return nil, nil
}

type stubChat struct {
	content string
	err     error
	reqs    []chatgpt.ChatCompletionRequest
}

func (c *stubChat) CreateChatCompletion(_ context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	c.reqs = append(c.reqs, req)
	if c.err != nil {
		return chatgpt.ChatCompletionResponse{}, c.err
	}
	resp := chatgpt.ChatCompletionResponse{}
	resp.Choices = append(resp.Choices, struct {
		Message chatgpt.Message `json:"message"`
	}{Message: chatgpt.Message{Role: "assistant", Content: c.content}})
	return resp, nil
}

func newTestService(repo SnippetRepository, emb Embedder, client chatClient, cfg Config) Service {
	return NewService(cfg, repo, emb, tokenizer.NewWordCounter(), client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var hawaMahal = Match{
	Snippet: Snippet{City: "Jaipur", Source: "jaipur-guide", Section: "Hawa Mahal", Text: "The Palace of Winds has 953 windows."},
	Score:   0.8,
}

func TestExplainFallsBackToNextStrategy(t *testing.T) {
	emb := &sequenceEmbedder{}
	repo := &stubRepo{hitsFrom: 2, hits: []Match{hawaMahal}}
	chat := &stubChat{content: "It was built so royal women could watch the street."}
	svc := newTestService(repo, emb, chat, Config{Model: "gpt-4o-mini"})

	out, err := svc.Explain(context.Background(), ExplainRequest{Kind: "POI", City: "Jaipur", POIName: "Hawa Mahal", Question: "why visit?"})
	require.NoError(t, err)
	require.True(t, out.Grounded)
	require.Equal(t, "It was built so royal women could watch the street.", out.Explanation)
	require.Len(t, out.Citations, 1)
	require.Equal(t, "jaipur-guide", out.Citations[0].Source)
	require.Equal(t, []string{"Hawa Mahal why visit?", "Hawa Mahal"}, emb.texts)
	require.Equal(t, []string{"Jaipur", "Jaipur"}, repo.cities)

	require.Len(t, chat.reqs, 1)
	require.Equal(t, "gpt-4o-mini", chat.reqs[0].Model)
	require.True(t, strings.Contains(chat.reqs[0].Messages[1].Content, "953 windows"))
}

func TestExplainAnswersFromRetrievalWhenLLMFails(t *testing.T) {
	repo := &stubRepo{hitsFrom: 1, hits: []Match{hawaMahal}}
	svc := newTestService(repo, &sequenceEmbedder{}, &stubChat{err: errors.New("boom")}, Config{})

	out, err := svc.Explain(context.Background(), ExplainRequest{Kind: KindPOI, City: "Jaipur", POIName: "Hawa Mahal"})
	require.NoError(t, err)
	require.True(t, out.Grounded)
	require.Equal(t, hawaMahal.Snippet.Text, out.Explanation)
}

func TestExplainWithoutSnippetsIsUngrounded(t *testing.T) {
	emb := &sequenceEmbedder{}
	svc := newTestService(&stubRepo{}, emb, nil, Config{})

	out, err := svc.Explain(context.Background(), ExplainRequest{Kind: KindWeather, City: "Jaipur"})
	require.NoError(t, err)
	require.False(t, out.Grounded)
	require.Empty(t, out.Citations)
	require.Contains(t, out.Explanation, "Jaipur")
	require.Equal(t, []string{"Jaipur indoor", "Jaipur rainy day indoor", "Jaipur weather"}, emb.texts)
}

func TestExplainDropsLowScores(t *testing.T) {
	low := hawaMahal
	low.Score = 0.01
	repo := &stubRepo{hitsFrom: 1, hits: []Match{low}}
	svc := newTestService(repo, &sequenceEmbedder{}, nil, Config{MinScore: 0.05})

	out, err := svc.Explain(context.Background(), ExplainRequest{Kind: KindPlan, City: "Jaipur", Question: "is this too rushed?"})
	require.NoError(t, err)
	require.False(t, out.Grounded)
}

func TestExplainValidatesRequest(t *testing.T) {
	svc := newTestService(&stubRepo{}, &sequenceEmbedder{}, nil, Config{})

	_, err := svc.Explain(context.Background(), ExplainRequest{Kind: "history", City: "Jaipur"})
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	_, err = svc.Explain(context.Background(), ExplainRequest{Kind: KindPOI, City: "Jaipur"})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestIngestChunksAndStores(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, &sequenceEmbedder{}, nil, Config{ChunkTokens: 3})

	n, err := svc.Ingest(context.Background(), Document{
		City:    "Jaipur",
		Source:  "jaipur-guide",
		Section: "Amber Fort",
		Text:    "Amber Fort sits on a hill above Maota Lake.",
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Len(t, repo.inserted, 3)
	require.Equal(t, "Amber Fort sits", repo.inserted[0].Text)
	require.Equal(t, "Jaipur", repo.inserted[2].City)
	require.NotEmpty(t, repo.inserted[1].ID)

	_, err = svc.Ingest(context.Background(), Document{City: "Jaipur", Text: "  "})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}
