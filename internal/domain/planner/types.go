package planner

import (
	"time"

	"github.com/yanqian/trip-planner/internal/domain/guide"
	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

// Session is the per-conversation state. It is only mutated while holding the session lock.
type Session struct {
	ID             string                       `json:"id"`
	Constraints    itinerary.Constraints        `json:"constraints"`
	Days           int                          `json:"days"`
	StartDate      string                       `json:"startDate,omitempty"`
	Draft          Intent                       `json:"draft"`
	QuestionsAsked int                          `json:"questionsAsked"`
	AskedFields    []string                     `json:"askedFields,omitempty"`
	Itinerary      *itinerary.Itinerary         `json:"itinerary,omitempty"`
	Reasoning      itinerary.Reasoning          `json:"reasoning"`
	Feasibility    *itinerary.FeasibilityReport `json:"feasibility,omitempty"`
	Version        int                          `json:"version"`
	LastEdit       *EditRecord                  `json:"lastEdit,omitempty"`
	CreatedAt      time.Time                    `json:"createdAt"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
}

// EditRecord remembers the last applied edit and its scope evaluation.
type EditRecord struct {
	Request itinerary.EditRequest `json:"request"`
	Changes []itinerary.Change    `json:"changes"`
	Scope   itinerary.ScopeReport `json:"scope"`
	At      time.Time             `json:"at"`
}

// Version is one entry of an itinerary's history.
type Version struct {
	SessionID string              `json:"sessionId"`
	Version   int                 `json:"version"`
	Itinerary itinerary.Itinerary `json:"itinerary"`
	Changes   []itinerary.Change  `json:"changes"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Snapshot is the archived form of a version.
type Snapshot struct {
	ID          string                      `json:"id"`
	SessionID   string                      `json:"sessionId"`
	Version     int                         `json:"version"`
	Constraints itinerary.Constraints       `json:"constraints"`
	Itinerary   itinerary.Itinerary         `json:"itinerary"`
	Reasoning   itinerary.Reasoning         `json:"reasoning"`
	Feasibility itinerary.FeasibilityReport `json:"feasibility"`
	CreatedAt   time.Time                   `json:"createdAt"`
}

// Intent is what the interpreter extracted from a free-text trip description.
type Intent struct {
	City      string   `json:"city,omitempty"`
	Duration  int      `json:"duration,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Pace      string   `json:"pace,omitempty"`
}

// Merge overlays the non-empty fields of next.
func (i Intent) Merge(next Intent) Intent {
	out := i
	if next.City != "" {
		out.City = next.City
	}
	if next.Duration > 0 {
		out.Duration = next.Duration
	}
	if len(next.Interests) > 0 {
		out.Interests = appendUnique(out.Interests, next.Interests...)
	}
	if next.Pace != "" {
		out.Pace = next.Pace
	}
	return out
}

// PlanRequest asks for a fresh itinerary.
type PlanRequest struct {
	City                string   `json:"city"`
	Days                int      `json:"days"`
	StartDate           string   `json:"startDate,omitempty"`
	Pace                string   `json:"pace"`
	MaxTravelTimePerDay int      `json:"maxTravelTimePerDay,omitempty"`
	Interests           []string `json:"interests,omitempty"`
	IndoorOnly          bool     `json:"indoorOnly,omitempty"`
	Accessibility       bool     `json:"accessibility,omitempty"`
}

// PlanResponse is returned by Plan and by a conversation that proceeds to planning.
type PlanResponse struct {
	SessionID   string                      `json:"sessionId"`
	AccessToken string                      `json:"accessToken"`
	Version     int                         `json:"version"`
	Constraints itinerary.Constraints       `json:"constraints"`
	Itinerary   itinerary.Itinerary         `json:"itinerary"`
	Reasoning   itinerary.Reasoning         `json:"reasoning"`
	Feasibility itinerary.FeasibilityReport `json:"feasibility"`
}

// Conversation actions.
const (
	ActionAsk        = "ask"
	ActionProceed    = "proceed"
	ActionMaxReached = "max_reached"
)

// ConverseRequest is one user turn. An empty SessionID starts a new conversation.
type ConverseRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

// ConverseResponse tells the client what happens next.
type ConverseResponse struct {
	SessionID      string        `json:"sessionId"`
	Action         string        `json:"action"`
	Question       string        `json:"question,omitempty"`
	Missing        []string      `json:"missing,omitempty"`
	QuestionsAsked int           `json:"questionsAsked"`
	Intent         Intent        `json:"intent"`
	Plan           *PlanResponse `json:"plan,omitempty"`
}

// EditCommand carries either free text or an already structured request.
type EditCommand struct {
	Text    string                 `json:"text,omitempty"`
	Request *itinerary.EditRequest `json:"request,omitempty"`
}

// Edit statuses.
const (
	EditStatusApplied = "applied"
	EditStatusClarify = "clarify"
)

// EditResponse reports an applied edit or asks for clarification.
type EditResponse struct {
	Status        string                       `json:"status"`
	Clarification string                       `json:"clarification,omitempty"`
	Version       int                          `json:"version,omitempty"`
	Request       *itinerary.EditRequest       `json:"request,omitempty"`
	Itinerary     *itinerary.Itinerary         `json:"itinerary,omitempty"`
	Changes       []itinerary.Change           `json:"changes,omitempty"`
	Scope         *itinerary.ScopeReport       `json:"scope,omitempty"`
	Feasibility   *itinerary.FeasibilityReport `json:"feasibility,omitempty"`
}

// ItineraryView is the read model of a session's current plan.
type ItineraryView struct {
	SessionID   string                `json:"sessionId"`
	Version     int                   `json:"version"`
	Constraints itinerary.Constraints `json:"constraints"`
	Itinerary   itinerary.Itinerary   `json:"itinerary"`
	Reasoning   itinerary.Reasoning   `json:"reasoning"`
}

// FeasibilityView pairs the latest report with per-check counts.
type FeasibilityView struct {
	Report  itinerary.FeasibilityReport       `json:"report"`
	Summary map[string]itinerary.CheckSummary `json:"summary"`
}

// ExplainRequest is the session-scoped form of guide.ExplainRequest.
type ExplainRequest struct {
	Kind     guide.Kind `json:"kind"`
	POIName  string     `json:"poiName,omitempty"`
	Question string     `json:"question,omitempty"`
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
