package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/infra/llm/chatgpt"
)

// ChatClient is the completion surface the interpreter needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req chatgpt.ChatCompletionRequest) (chatgpt.ChatCompletionResponse, error)
}

// InterpreterConfig holds prompt and model settings.
type InterpreterConfig struct {
	Model        string
	Temperature  float32
	IntentPrompt string
	EditPrompt   string
}

// ParsedEdit is the interpreter's reading of a free-text edit command.
type ParsedEdit struct {
	Request       itinerary.EditRequest
	Understood    bool
	Clarification string
}

// Interpreter turns free text into intents and edit requests. The language model is tried
// first; when it is missing or fails, keyword rules take over.
type Interpreter struct {
	cfg    InterpreterConfig
	client ChatClient
	logger *slog.Logger
}

// NewInterpreter builds an interpreter. client may be nil.
func NewInterpreter(cfg InterpreterConfig, client ChatClient, logger *slog.Logger) *Interpreter {
	return &Interpreter{cfg: cfg, client: client, logger: logger.With("component", "planner.interpreter")}
}

const intentShape = ` Respond ONLY with valid minified JSON using this shape: ` +
	`{"city":string|null,"duration":number|null,"interests":string[],"pace":"relaxed"|"moderate"|"fast"|null}. ` +
	`Use null when the message does not say. Never return plain text.`

const editShape = ` Respond ONLY with valid minified JSON using this shape: ` +
	`{"edit_type":"pace"|"swap"|"add"|"remove"|"replace"|"reduce_travel"|"weather","scope":"day"|"block"|"poi"|"full",` +
	`"day":number|null,"block":"morning"|"afternoon"|"evening"|null,"value":string|null,"category":string|null,` +
	`"understood":boolean,"clarification_needed":string|null}. For remove, value is the bracketed POI id. Never return plain text.`

// ParseIntent extracts trip constraints from a message.
func (i *Interpreter) ParseIntent(ctx context.Context, message string) Intent {
	if i.client != nil {
		intent, err := i.llmIntent(ctx, message)
		if err == nil {
			return intent
		}
		i.logger.Warn("llm intent parsing failed, using rules", "error", err)
	}
	return ParseIntentRules(message)
}

// ParseEdit reads an edit command against a summary of the current itinerary.
func (i *Interpreter) ParseEdit(ctx context.Context, command, summary string, days int) ParsedEdit {
	if i.client != nil {
		parsed, err := i.llmEdit(ctx, command, summary, days)
		if err == nil {
			return parsed
		}
		i.logger.Warn("llm edit parsing failed, using rules", "error", err)
	}
	return ParseEditRules(command)
}

func (i *Interpreter) llmIntent(ctx context.Context, message string) (Intent, error) {
	system := strings.TrimSpace(i.cfg.IntentPrompt)
	if system == "" {
		system = "You extract travel planning constraints from a traveller's message."
	}
	raw, err := i.complete(ctx, system+intentShape, message)
	if err != nil {
		return Intent{}, err
	}
	var wire struct {
		City      *string         `json:"city"`
		Duration  json.RawMessage `json:"duration"`
		Interests json.RawMessage `json:"interests"`
		Pace      *string         `json:"pace"`
	}
	if err := json.Unmarshal([]byte(sanitizeJSON(raw)), &wire); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	duration, err := coerceInt(wire.Duration)
	if err != nil {
		return Intent{}, fmt.Errorf("decode duration: %w", err)
	}
	interests, err := coerceStringArray(wire.Interests)
	if err != nil {
		return Intent{}, fmt.Errorf("decode interests: %w", err)
	}
	intent := Intent{Interests: normalizeList(interests)}
	if wire.City != nil {
		intent.City = strings.TrimSpace(*wire.City)
	}
	if duration != nil && *duration > 0 {
		intent.Duration = *duration
	}
	if wire.Pace != nil {
		intent.Pace = normalizePace(*wire.Pace)
	}
	return intent, nil
}

func (i *Interpreter) llmEdit(ctx context.Context, command, summary string, days int) (ParsedEdit, error) {
	system := strings.TrimSpace(i.cfg.EditPrompt)
	if system == "" {
		system = "You parse travel itinerary edit commands into structured requests."
	}
	user := fmt.Sprintf("Edit command: %q\nThe itinerary has %d day(s).\nCurrent itinerary:\n%s", command, days, summary)
	raw, err := i.complete(ctx, system+editShape, user)
	if err != nil {
		return ParsedEdit{}, err
	}
	return decodeEdit(raw)
}

func (i *Interpreter) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := i.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:          i.cfg.Model,
		Temperature:    i.cfg.Temperature,
		ResponseFormat: &chatgpt.ResponseFormat{Type: "json_object"},
		Messages: []chatgpt.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if usage := resp.TokenUsage(); !usage.IsZero() {
		i.logger.Debug("llm completion", "model", resp.Model, "usage", usage)
	}
	content := strings.TrimSpace(resp.Content())
	if content == "" {
		return "", errors.New("empty completion")
	}
	return content, nil
}

func decodeEdit(raw string) (ParsedEdit, error) {
	var wire struct {
		EditType      *string         `json:"edit_type"`
		Scope         *string         `json:"scope"`
		Day           json.RawMessage `json:"day"`
		Block         *string         `json:"block"`
		Value         json.RawMessage `json:"value"`
		Category      *string         `json:"category"`
		Understood    json.RawMessage `json:"understood"`
		Clarification *string         `json:"clarification_needed"`
	}
	if err := json.Unmarshal([]byte(sanitizeJSON(raw)), &wire); err != nil {
		return ParsedEdit{}, fmt.Errorf("decode edit: %w", err)
	}
	day, err := coerceInt(wire.Day)
	if err != nil {
		return ParsedEdit{}, fmt.Errorf("decode day: %w", err)
	}
	understood, err := coerceBool(wire.Understood)
	if err != nil {
		return ParsedEdit{}, fmt.Errorf("decode understood: %w", err)
	}
	value, err := coerceString(wire.Value)
	if err != nil {
		return ParsedEdit{}, fmt.Errorf("decode value: %w", err)
	}
	req := itinerary.EditRequest{
		EditType: itinerary.EditType(deref(wire.EditType)),
		Scope:    itinerary.Scope(deref(wire.Scope)),
		Day:      day,
		Value:    value,
		Category: deref(wire.Category),
	}
	if b := deref(wire.Block); b != "" {
		block := itinerary.BlockType(b)
		req.Block = &block
	}
	req = req.Normalized()
	parsed := ParsedEdit{Request: req, Understood: understood, Clarification: deref(wire.Clarification)}
	if parsed.Understood && req.EditType == "" {
		parsed.Understood = false
	}
	if !parsed.Understood && parsed.Clarification == "" {
		parsed.Clarification = "Could you say which day or part of the plan you want to change, and how?"
	}
	return parsed, nil
}

// sanitizeJSON strips markdown fences and any prose around the first JSON object.
func sanitizeJSON(raw string) string {
	sanitized := strings.TrimSpace(raw)
	sanitized = strings.TrimPrefix(sanitized, "```json")
	sanitized = strings.TrimSuffix(sanitized, "```")
	sanitized = strings.Trim(sanitized, "`")
	sanitized = strings.TrimSpace(strings.TrimPrefix(sanitized, "json"))
	if start, end := strings.Index(sanitized, "{"), strings.LastIndex(sanitized, "}"); start >= 0 && end > start {
		sanitized = sanitized[start : end+1]
	}
	return sanitized
}

func coerceInt(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		v := int(n)
		return &v, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("unsupported number format")
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		if w, ok := numberWords[strings.ToLower(s)]; ok {
			return &w, nil
		}
		return nil, err
	}
	return &v, nil
}

func coerceBool(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, errors.New("unsupported boolean format")
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

func coerceString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
	return "", errors.New("unsupported string format")
}

func coerceStringArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		return strings.Split(single, ","), nil
	case '[':
		var many []string
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, err
		}
		return many, nil
	default:
		return nil, errors.New("unsupported array format")
	}
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{})
	for _, item := range items {
		clean := strings.ToLower(strings.TrimSpace(item))
		if clean == "" {
			continue
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

var (
	knownCities = []string{"jaipur", "delhi", "mumbai", "bangalore", "goa", "udaipur", "agra"}

	cityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`city\s+is\s+(\w+)`),
		regexp.MustCompile(`trip\s+to\s+(\w+)`),
		regexp.MustCompile(`visit\s+(\w+)`),
		regexp.MustCompile(`to\s+(\w+)`),
		regexp.MustCompile(`in\s+(\w+)`),
	}

	durationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`duration\s+is\s+(\w+)\s+days?`),
		regexp.MustCompile(`for\s+(\w+)\s+days?`),
		regexp.MustCompile(`(\w+)\s*-?\s*days?\b`),
		regexp.MustCompile(`(\d+)d\s+trip`),
	}

	numberWords = map[string]int{
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"a": 1,
	}

	interestKeywords = []struct {
		interest string
		keywords []string
	}{
		{"food", []string{"food", "cuisine", "restaurant", "eat", "dining"}},
		{"culture", []string{"culture", "cultural", "heritage", "tradition"}},
		{"history", []string{"history", "historical", "ancient", "monument"}},
		{"nature", []string{"nature", "park", "garden", "wildlife", "outdoor"}},
		{"adventure", []string{"adventure", "trekking", "hiking", "sports"}},
		{"shopping", []string{"shopping", "market", "bazaar", "mall"}},
		{"art", []string{"art", "museum", "gallery", "painting"}},
		{"architecture", []string{"architecture", "building", "palace", "fort"}},
	}

	relaxedWords = []string{"relaxed", "slow", "leisurely", "easy"}
	fastWords    = []string{"fast", "quick", "packed", "busy"}
)

// ParseIntentRules is the keyword parser used without a language model.
func ParseIntentRules(message string) Intent {
	text := strings.ToLower(message)
	return Intent{
		City:      ruleCity(text),
		Duration:  ruleDuration(text),
		Interests: ruleInterests(text),
		Pace:      rulePace(text),
	}
}

func ruleCity(text string) string {
	for _, p := range cityPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if isKnownCity(m[1]) {
				return capitalize(m[1])
			}
		}
	}
	for _, city := range knownCities {
		if strings.Contains(text, city) {
			return capitalize(city)
		}
	}
	return ""
}

func ruleDuration(text string) int {
	for _, p := range durationPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
			if n, ok := numberWords[m[1]]; ok {
				return n
			}
		}
	}
	return 0
}

func ruleInterests(text string) []string {
	var out []string
	for _, entry := range interestKeywords {
		for _, kw := range entry.keywords {
			if containsWord(text, kw) {
				out = append(out, entry.interest)
				break
			}
		}
	}
	return out
}

// normalizePace maps a model-supplied pace onto the enum. Synonyms go through the keyword rules and
// anything else is dropped so the configured default applies.
func normalizePace(raw string) string {
	pace := strings.ToLower(strings.TrimSpace(raw))
	switch itinerary.Pace(pace) {
	case itinerary.PaceRelaxed, itinerary.PaceModerate, itinerary.PaceFast:
		return pace
	}
	return rulePace(pace)
}

func rulePace(text string) string {
	switch {
	case mentionsAny(text, relaxedWords):
		return string(itinerary.PaceRelaxed)
	case mentionsAny(text, fastWords):
		return string(itinerary.PaceFast)
	case strings.Contains(text, "moderate"):
		return string(itinerary.PaceModerate)
	}
	return ""
}

var (
	dayPattern   = regexp.MustCompile(`day\s*(\d+)`)
	blockPattern = regexp.MustCompile(`\b(morning|afternoon|evening)\b`)
)

var editKeywords = []struct {
	editType itinerary.EditType
	keywords []string
}{
	{itinerary.EditReduceTravel, []string{"reduce travel", "less travel", "less driving", "closer together"}},
	{itinerary.EditWeather, []string{"rain", "weather", "too hot", "indoor"}},
	{itinerary.EditPace, []string{"relax", "slower", "less rushed", "faster", "more packed", "pace"}},
	{itinerary.EditRemove, []string{"remove", "drop", "skip", "delete"}},
	{itinerary.EditAdd, []string{"add", "include", "one more"}},
	{itinerary.EditSwap, []string{"swap", "replace", "change", "different"}},
}

// ParseEditRules is the keyword parser for edit commands.
func ParseEditRules(command string) ParsedEdit {
	text := strings.ToLower(strings.TrimSpace(command))
	var editType itinerary.EditType
	for _, entry := range editKeywords {
		if mentionsAny(text, entry.keywords) {
			editType = entry.editType
			break
		}
	}
	if editType == "" {
		return ParsedEdit{Clarification: "Could you say which day or part of the plan you want to change, and how?"}
	}

	req := itinerary.EditRequest{EditType: editType, Scope: itinerary.ScopeFull}
	if m := dayPattern.FindStringSubmatch(text); m != nil {
		if d, err := strconv.Atoi(m[1]); err == nil {
			req.Day = &d
			req.Scope = itinerary.ScopeDay
		}
	}
	if m := blockPattern.FindStringSubmatch(text); m != nil {
		block := itinerary.BlockType(m[1])
		req.Block = &block
		req.Scope = itinerary.ScopeBlock
	}
	switch editType {
	case itinerary.EditPace:
		if mentionsAny(text, []string{"faster", "more packed"}) {
			req.Value = string(itinerary.PaceFast)
		} else {
			req.Value = string(itinerary.PaceRelaxed)
		}
	case itinerary.EditAdd, itinerary.EditSwap:
		if interests := ruleInterests(text); len(interests) > 0 {
			req.Category = interests[0]
		}
	}
	return ParsedEdit{Request: req.Normalized(), Understood: true}
}

func isKnownCity(word string) bool {
	for _, c := range knownCities {
		if c == word {
			return true
		}
	}
	return false
}

// mentionsAny matches phrases as substrings and single words on word boundaries.
func mentionsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(w, " ") {
			if strings.Contains(text, w) {
				return true
			}
			continue
		}
		if containsWord(text, w) {
			return true
		}
	}
	return false
}

// containsWord also accepts inflections of words longer than three letters.
func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) }) {
		if f == word || strings.HasPrefix(f, word) && len(word) > 3 {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
