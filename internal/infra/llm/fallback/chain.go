package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
)

// ErrAllBackendsFailed is returned once every backend has been tried.
var ErrAllBackendsFailed = errors.New("all llm backends failed")

// ChatClient is the completion surface every backend exposes.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// Backend is one entry of the ordered provider list.
type Backend struct {
	Name   string
	Client ChatClient
	// Model overrides the request model when set.
	Model string
}

// Class is the failure category that decides what the chain does next.
type Class string

const (
	ClassRateLimit Class = "rate_limit"
	ClassTimeout   Class = "timeout"
	ClassAuth      Class = "auth"
	ClassOther     Class = "other"
)

type action int

const (
	actionNext action = iota
	actionRetryOnce
	actionAbort
)

var policy = map[Class]action{
	ClassRateLimit: actionNext,
	ClassTimeout:   actionRetryOnce,
	ClassAuth:      actionNext,
	ClassOther:     actionAbort,
}

var statusClasses = map[int]Class{
	http.StatusTooManyRequests: ClassRateLimit,
	http.StatusRequestTimeout:  ClassTimeout,
	http.StatusGatewayTimeout:  ClassTimeout,
	http.StatusUnauthorized:    ClassAuth,
	http.StatusForbidden:       ClassAuth,
}

// TextRule maps an unstructured provider message onto a class.
type TextRule struct {
	Pattern *regexp.Regexp
	Class   Class
}

// DefaultTextRules lists, per backend name, the messages recognised when a provider reports
// failures only as text. Backends without an entry fall back to ClassOther.
var DefaultTextRules = map[string][]TextRule{
	"openai": {
		{Pattern: regexp.MustCompile(`(?i)rate limit|insufficient_quota`), Class: ClassRateLimit},
		{Pattern: regexp.MustCompile(`(?i)invalid_api_key|incorrect api key`), Class: ClassAuth},
	},
	"gemini": {
		{Pattern: regexp.MustCompile(`RESOURCE_EXHAUSTED|(?i)quota exceeded`), Class: ClassRateLimit},
		{Pattern: regexp.MustCompile(`DEADLINE_EXCEEDED`), Class: ClassTimeout},
		{Pattern: regexp.MustCompile(`PERMISSION_DENIED|UNAUTHENTICATED|(?i)api key not valid`), Class: ClassAuth},
	},
}

// Chain tries backends in order and applies the class policy between attempts.
type Chain struct {
	backends []Backend
	rules    map[string][]TextRule
	logger   *slog.Logger
}

var _ ChatClient = (*Chain)(nil)

// NewChain validates the backend list.
func NewChain(backends []Backend, rules map[string][]TextRule, logger *slog.Logger) (*Chain, error) {
	if len(backends) == 0 {
		return nil, errors.New("fallback chain requires at least one backend")
	}
	for i, b := range backends {
		if b.Client == nil {
			return nil, fmt.Errorf("backend %d (%s) has no client", i, b.Name)
		}
	}
	if rules == nil {
		rules = DefaultTextRules
	}
	return &Chain{
		backends: backends,
		rules:    rules,
		logger:   logger.With("component", "llm.fallback"),
	}, nil
}

// CreateChatCompletion implements ChatClient.
func (c *Chain) CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error) {
	var lastErr error
	for _, b := range c.backends {
		attemptReq := req
		if b.Model != "" {
			attemptReq.Model = b.Model
		}
		retried := false
		for {
			if err := ctx.Err(); err != nil {
				return chatgpt.ChatCompletionResponse{}, err
			}
			resp, err := b.Client.CreateChatCompletion(ctx, attemptReq)
			if err == nil {
				return resp, nil
			}
			lastErr = fmt.Errorf("llm backend %s: %w", b.Name, err)
			class := c.Classify(b.Name, err)
			c.logger.Warn("llm backend failed", "backend", b.Name, "class", class, "error", err)

			switch policy[class] {
			case actionRetryOnce:
				if !retried {
					retried = true
					continue
				}
			case actionAbort:
				return chatgpt.ChatCompletionResponse{}, lastErr
			}
			break
		}
	}
	return chatgpt.ChatCompletionResponse{}, fmt.Errorf("%w: %w", ErrAllBackendsFailed, lastErr)
}

// Classify sorts an error into a Class. Typed status codes and network timeouts win over the
// per-backend text rules.
func (c *Chain) Classify(backend string, err error) Class {
	var statusErr *chatgpt.StatusError
	if errors.As(err, &statusErr) {
		if class, ok := statusClasses[statusErr.Code]; ok {
			return class
		}
		if class, ok := matchText(c.rules[backend], statusErr.Body); ok {
			return class
		}
		return ClassOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	if class, ok := matchText(c.rules[backend], err.Error()); ok {
		return class
	}
	return ClassOther
}

func matchText(rules []TextRule, msg string) (Class, bool) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "", false
	}
	for _, r := range rules {
		if r.Pattern.MatchString(msg) {
			return r.Class, true
		}
	}
	return "", false
}
