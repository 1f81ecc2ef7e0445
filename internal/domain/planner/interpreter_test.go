package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

func TestParseIntentRules(t *testing.T) {
	cases := []struct {
		message string
		want    Intent
	}{
		{"Plan a 3-day trip to Jaipur. I like food and culture.", Intent{City: "Jaipur", Duration: 3, Interests: []string{"food", "culture"}}},
		{"city is Jaipur duration is three days", Intent{City: "Jaipur", Duration: 3}},
		{"3 days in Jaipur", Intent{City: "Jaipur", Duration: 3}},
		{"a relaxed week in Goa", Intent{City: "Goa", Pace: "relaxed"}},
		{"I want to see forts and museums, something packed", Intent{Interests: []string{"art", "architecture"}, Pace: "fast"}},
		{"breakfast places near the train station", Intent{Interests: nil}},
	}
	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			require.Equal(t, tc.want, ParseIntentRules(tc.message))
		})
	}
}

func TestParseEditRules(t *testing.T) {
	cases := []struct {
		command string
		want    itinerary.EditRequest
	}{
		{"Make Day 2 more relaxed", itinerary.EditRequest{EditType: itinerary.EditPace, Scope: itinerary.ScopeDay, Day: intPtr(2), Value: "relaxed"}},
		{"Swap the Day 1 evening plan to something indoors", itinerary.EditRequest{EditType: itinerary.EditWeather, Scope: itinerary.ScopeBlock, Day: intPtr(1), Block: blockPtr(itinerary.BlockEvening)}},
		{"Reduce travel time", itinerary.EditRequest{EditType: itinerary.EditReduceTravel, Scope: itinerary.ScopeFull}},
		{"Add one famous local food place", itinerary.EditRequest{EditType: itinerary.EditAdd, Scope: itinerary.ScopeFull, Category: "food"}},
		{"skip the afternoon stop", itinerary.EditRequest{EditType: itinerary.EditRemove, Scope: itinerary.ScopeBlock, Block: blockPtr(itinerary.BlockAfternoon)}},
		{"Replace something on day 3 with a museum", itinerary.EditRequest{EditType: itinerary.EditSwap, Scope: itinerary.ScopeDay, Day: intPtr(3), Category: "art"}},
	}
	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			parsed := ParseEditRules(tc.command)
			require.True(t, parsed.Understood)
			require.Equal(t, tc.want, parsed.Request)
		})
	}

	unknown := ParseEditRules("hmm not sure")
	require.False(t, unknown.Understood)
	require.NotEmpty(t, unknown.Clarification)
}

func TestParseIntentUsesLLMOutput(t *testing.T) {
	chat := &scriptedChat{replies: []string{"```json\n{\"city\":\"Jaipur\",\"duration\":\"3\",\"interests\":\"food, Culture\",\"pace\":\"Relaxed\"}\n```"}}
	interp := NewInterpreter(InterpreterConfig{Model: "gpt-4o-mini"}, chat, discardLogger())

	intent := interp.ParseIntent(context.Background(), "three relaxed days in jaipur for food and culture")
	require.Equal(t, Intent{City: "Jaipur", Duration: 3, Interests: []string{"food", "culture"}, Pace: "relaxed"}, intent)
	require.Equal(t, "json_object", chat.reqs[0].ResponseFormat.Type)
}

func TestParseIntentFallsBackToRules(t *testing.T) {
	for _, chat := range []*scriptedChat{
		{err: errors.New("quota exceeded")},
		{replies: []string{"I think you mean Jaipur!"}},
	} {
		interp := NewInterpreter(InterpreterConfig{}, chat, discardLogger())
		intent := interp.ParseIntent(context.Background(), "2 days in Agra")
		require.Equal(t, Intent{City: "Agra", Duration: 2}, intent)
	}

	intent := NewInterpreter(InterpreterConfig{}, nil, discardLogger()).ParseIntent(context.Background(), "2 days in Agra")
	require.Equal(t, "Agra", intent.City)
}

func TestParseEditCoercesLLMOutput(t *testing.T) {
	chat := &scriptedChat{replies: []string{`Sure! {"edit_type":"Swap","scope":"block","day":"1","block":"Evening","value":null,"category":"food","understood":"true","clarification_needed":null}`}}
	interp := NewInterpreter(InterpreterConfig{}, chat, discardLogger())

	parsed := interp.ParseEdit(context.Background(), "swap day 1 evening for food", "Day 1: ...", 3)
	require.True(t, parsed.Understood)
	require.Equal(t, itinerary.EditRequest{
		EditType: itinerary.EditSwap,
		Scope:    itinerary.ScopeBlock,
		Day:      intPtr(1),
		Block:    blockPtr(itinerary.BlockEvening),
		Category: "food",
	}, parsed.Request)
	require.Contains(t, chat.reqs[0].Messages[1].Content, "3 day(s)")
}

func TestParseEditPassesClarificationThrough(t *testing.T) {
	chat := &scriptedChat{replies: []string{`{"edit_type":null,"scope":null,"day":null,"block":null,"value":null,"category":null,"understood":false,"clarification_needed":"Which day?"}`}}
	interp := NewInterpreter(InterpreterConfig{}, chat, discardLogger())

	parsed := interp.ParseEdit(context.Background(), "change it", "", 2)
	require.False(t, parsed.Understood)
	require.Equal(t, "Which day?", parsed.Clarification)
}

func TestSanitizeJSON(t *testing.T) {
	require.Equal(t, `{"a":1}`, sanitizeJSON("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, sanitizeJSON("Here you go: {\"a\":1} hope it helps"))
}

func TestParseIntentNormalizesLLMPace(t *testing.T) {
	cases := map[string]string{
		"Fast":      "fast",
		"leisurely": "relaxed",
		"sometimes": "",
		"":          "",
	}
	for raw, want := range cases {
		chat := &scriptedChat{replies: []string{`{"city":"Jaipur","duration":2,"interests":[],"pace":"` + raw + `"}`}}
		intent := NewInterpreter(InterpreterConfig{}, chat, discardLogger()).ParseIntent(context.Background(), "two days in jaipur")
		require.Equal(t, want, intent.Pace, raw)
	}
}
