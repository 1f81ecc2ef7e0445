package guide

import (
	"context"

	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
)

// Kind selects the lookup strategies and the fallback wording of an explanation.
type Kind string

const (
	KindPOI     Kind = "poi"
	KindPlan    Kind = "plan"
	KindWeather Kind = "weather"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindPOI, KindPlan, KindWeather:
		return true
	}
	return false
}

// Snippet is one chunk of guide text with its embedding.
type Snippet struct {
	ID        string    `json:"id"`
	City      string    `json:"city"`
	Source    string    `json:"source"`
	Section   string    `json:"section"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Match is a scored search hit.
type Match struct {
	Snippet Snippet
	Score   float64
}

// Document is raw guide text before chunking.
type Document struct {
	City    string `yaml:"city" json:"city"`
	Source  string `yaml:"source" json:"source"`
	Section string `yaml:"section" json:"section"`
	Text    string `yaml:"text" json:"text"`
}

// ExplainRequest asks why a POI, a plan or a weather adjustment makes sense.
type ExplainRequest struct {
	Kind     Kind   `json:"kind"`
	City     string `json:"city"`
	POIName  string `json:"poiName,omitempty"`
	Question string `json:"question,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Citation points at the snippet an answer leaned on.
type Citation struct {
	Source  string  `json:"source"`
	Section string  `json:"section"`
	City    string  `json:"city,omitempty"`
	Score   float64 `json:"score"`
}

// Explanation is the guide's answer.
type Explanation struct {
	Explanation string     `json:"explanation"`
	Citations   []Citation `json:"citations"`
	Grounded    bool       `json:"grounded"`
}

// SnippetRepository stores and searches guide snippets.
type SnippetRepository interface {
	Insert(ctx context.Context, s Snippet) error
	Search(ctx context.Context, city string, embedding []float32, limit int) ([]Match, error)
}

// Embedder converts texts to vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits text into pieces of at most budget tokens.
type Chunker interface {
	Split(text string, budget int) []string
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}
