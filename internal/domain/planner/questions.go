package planner

const (
	fieldCity      = "city"
	fieldDuration  = "duration"
	fieldInterests = "interests"
)

var questionTemplates = map[string]string{
	fieldCity:      "Which city would you like to visit?",
	fieldDuration:  "How many days is your trip?",
	fieldInterests: "What are you interested in? For example: food, culture, history, or nature?",
}

// missingFields lists what still blocks planning. City and duration are required. Interests
// are asked for once, and only while fewer than two required fields are missing.
func missingFields(draft Intent, asked []string) []string {
	var missing []string
	if draft.City == "" {
		missing = append(missing, fieldCity)
	}
	if draft.Duration <= 0 {
		missing = append(missing, fieldDuration)
	}
	if len(draft.Interests) == 0 && len(missing) < 2 && !contains(asked, fieldInterests) {
		missing = append(missing, fieldInterests)
	}
	return missing
}

func questionFor(field string) string {
	if q, ok := questionTemplates[field]; ok {
		return q
	}
	return "Tell me more about your trip preferences."
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
