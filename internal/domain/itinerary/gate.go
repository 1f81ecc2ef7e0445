package itinerary

// MaxClarifyingQuestions is the ceiling of a QuestionGate.
const MaxClarifyingQuestions = 6

// QuestionGate counts clarification questions. Once the ceiling is reached the conversation
// must proceed to planning with whatever it has. The zero value is ready to use.
type QuestionGate struct {
	count int
}

// RestoreQuestionGate rebuilds a gate from a persisted count.
func RestoreQuestionGate(count int) *QuestionGate {
	if count < 0 {
		count = 0
	}
	if count > MaxClarifyingQuestions {
		count = MaxClarifyingQuestions
	}
	return &QuestionGate{count: count}
}

// Increment records one more question and returns the new count. It never passes the ceiling.
func (g *QuestionGate) Increment() int {
	if g.count < MaxClarifyingQuestions {
		g.count++
	}
	return g.count
}

// Count returns how many questions were asked.
func (g *QuestionGate) Count() int {
	return g.count
}

// IsMaxReached reports whether no further questions may be asked.
func (g *QuestionGate) IsMaxReached() bool {
	return g.count >= MaxClarifyingQuestions
}

// Reset starts a new conversation.
func (g *QuestionGate) Reset() {
	g.count = 0
}
