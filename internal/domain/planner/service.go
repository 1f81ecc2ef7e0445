package planner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/trip-planner/internal/domain/guide"
	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

// Error codes returned by the planner service.
const (
	CodeSessionNotFound   = "session_not_found"
	CodeItineraryNotReady = "itinerary_not_ready"
	CodeEditNotFound      = "edit_not_found"
	CodeStorage           = "storage_error"
)

// MaxTripDays bounds the trip length accepted by Plan.
const MaxTripDays = 14

// Service orchestrates planning, conversations and edits per session.
type Service interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResponse, error)
	Converse(ctx context.Context, req ConverseRequest) (ConverseResponse, error)
	Edit(ctx context.Context, sessionID string, cmd EditCommand) (EditResponse, error)
	Itinerary(ctx context.Context, sessionID string) (ItineraryView, error)
	History(ctx context.Context, sessionID string) ([]Version, error)
	Feasibility(ctx context.Context, sessionID string) (FeasibilityView, error)
	EditEvaluation(ctx context.Context, sessionID string) (itinerary.ScopeReport, error)
	Explain(ctx context.Context, sessionID string, req ExplainRequest) (guide.Explanation, error)
}

// Explainer answers guide questions.
type Explainer interface {
	Explain(ctx context.Context, req guide.ExplainRequest) (guide.Explanation, error)
}

// Truncater trims prompt context to a token budget.
type Truncater interface {
	Truncate(text string, budget int) string
}

// Deps groups the collaborators of the planner service.
type Deps struct {
	Store       SessionStore
	Versions    VersionRepository
	Archive     Archive
	Supplier    itinerary.POISupplier
	Estimator   itinerary.TravelTimeEstimator
	Interpreter *Interpreter
	Tokens      TokenIssuer
	Guide       Explainer
	Counter     Truncater
}

type service struct {
	cfg       Config
	deps      Deps
	scheduler *itinerary.Scheduler
	validator *itinerary.Validator
	editor    *itinerary.Editor
	verifier  *itinerary.Verifier
	locks     *keyedMutex
	logger    *slog.Logger

	now     func() time.Time
	shuffle func([]itinerary.POI)
}

// NewService wires the planner domain.
func NewService(cfg Config, deps Deps, logger *slog.Logger) Service {
	if deps.Estimator == nil {
		deps.Estimator = itinerary.NewGreatCircleEstimator()
	}
	return &service{
		cfg:       cfg.withDefaults(),
		deps:      deps,
		scheduler: itinerary.NewScheduler(deps.Estimator),
		validator: itinerary.NewValidator(),
		editor:    itinerary.NewEditor(deps.Supplier, deps.Estimator),
		verifier:  itinerary.NewVerifier(),
		locks:     newKeyedMutex(),
		logger:    logger.With("component", "planner.service"),
		now:       time.Now,
		shuffle: func(pois []itinerary.POI) {
			rand.Shuffle(len(pois), func(i, j int) { pois[i], pois[j] = pois[j], pois[i] })
		},
	}
}

func (s *service) Plan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	if _, _, err := s.constraintsFrom(req); err != nil {
		return PlanResponse{}, err
	}
	now := s.now()
	sess := Session{ID: uuid.NewString(), CreatedAt: now}
	unlock := s.locks.Lock(sess.ID)
	defer unlock()
	return s.plan(ctx, &sess, req)
}

func (s *service) Converse(ctx context.Context, req ConverseRequest) (ConverseResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ConverseResponse{}, apperrors.Wrap(itinerary.CodeInvalidInput, "message cannot be empty", nil)
	}

	var sess Session
	if req.SessionID == "" {
		sess = Session{ID: uuid.NewString(), CreatedAt: s.now()}
		defer s.locks.Lock(sess.ID)()
	} else {
		defer s.locks.Lock(req.SessionID)()
		loaded, err := s.load(ctx, req.SessionID)
		if err != nil {
			return ConverseResponse{}, err
		}
		sess = loaded
	}

	sess.Draft = sess.Draft.Merge(s.deps.Interpreter.ParseIntent(ctx, message))
	gate := itinerary.RestoreQuestionGate(sess.QuestionsAsked)
	resp := ConverseResponse{SessionID: sess.ID, Intent: sess.Draft}

	if gate.IsMaxReached() {
		resp.Action = ActionMaxReached
		resp.QuestionsAsked = gate.Count()
		if sess.Draft.City == "" {
			resp.Missing = []string{fieldCity}
			s.logger.Info("question limit reached without a city", "session_id", sess.ID)
			return resp, s.save(ctx, sess)
		}
		plan, err := s.plan(ctx, &sess, s.requestFromDraft(sess))
		if err != nil {
			return ConverseResponse{}, err
		}
		resp.Plan = &plan
		return resp, nil
	}

	missing := missingFields(sess.Draft, sess.AskedFields)
	if len(missing) > 0 {
		resp.Action = ActionAsk
		resp.Missing = missing
		resp.Question = questionFor(missing[0])
		resp.QuestionsAsked = gate.Increment()
		sess.QuestionsAsked = gate.Count()
		sess.AskedFields = appendUnique(sess.AskedFields, missing[0])
		sess.UpdatedAt = s.now()
		if err := s.save(ctx, sess); err != nil {
			return ConverseResponse{}, err
		}
		return resp, nil
	}

	resp.Action = ActionProceed
	resp.QuestionsAsked = gate.Count()
	plan, err := s.plan(ctx, &sess, s.requestFromDraft(sess))
	if err != nil {
		return ConverseResponse{}, err
	}
	resp.Plan = &plan
	return resp, nil
}

func (s *service) Edit(ctx context.Context, sessionID string, cmd EditCommand) (EditResponse, error) {
	defer s.locks.Lock(sessionID)()
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return EditResponse{}, err
	}
	if sess.Itinerary == nil {
		return EditResponse{}, apperrors.Wrap(CodeItineraryNotReady, "session has no itinerary yet", nil)
	}
	current := *sess.Itinerary

	var req itinerary.EditRequest
	switch {
	case cmd.Request != nil:
		req = cmd.Request.Normalized()
	case strings.TrimSpace(cmd.Text) != "":
		summary := s.summarize(current)
		parsed := s.deps.Interpreter.ParseEdit(ctx, strings.TrimSpace(cmd.Text), summary, len(current.Days))
		if !parsed.Understood {
			return EditResponse{Status: EditStatusClarify, Clarification: parsed.Clarification}, nil
		}
		req = parsed.Request
	default:
		return EditResponse{}, apperrors.Wrap(itinerary.CodeInvalidInput, "edit text or request is required", nil)
	}

	result, err := s.editor.Apply(ctx, current, req, sess.Constraints)
	if err != nil {
		return EditResponse{}, err
	}
	if !result.Success {
		return EditResponse{}, apperrors.Wrap(itinerary.CodeUnknownEditType, result.Error, nil)
	}

	if req.EditType == itinerary.EditPace && req.Day == nil {
		if pace := itinerary.ParsePace(req.Value); validPace(pace) {
			sess.Constraints.Pace = pace
		}
	}
	scope := s.verifier.Verify(current, result.Itinerary, req, result.Changes)
	report := s.validator.Evaluate(result.Itinerary, sess.Constraints)

	edited := result.Itinerary
	sess.Itinerary = &edited
	sess.Feasibility = &report
	sess.Version++
	sess.LastEdit = &EditRecord{Request: req, Changes: result.Changes, Scope: scope, At: s.now()}
	if err := s.commit(ctx, sess, result.Changes); err != nil {
		return EditResponse{}, err
	}

	s.logger.Info("edit applied",
		"session_id", sess.ID,
		"edit_type", req.EditType,
		"version", sess.Version,
		"changes", len(result.Changes),
		"scope_passed", scope.Passed,
	)
	return EditResponse{
		Status:      EditStatusApplied,
		Version:     sess.Version,
		Request:     &req,
		Itinerary:   &edited,
		Changes:     result.Changes,
		Scope:       &scope,
		Feasibility: &report,
	}, nil
}

func (s *service) Itinerary(ctx context.Context, sessionID string) (ItineraryView, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return ItineraryView{}, err
	}
	if sess.Itinerary == nil {
		return ItineraryView{}, apperrors.Wrap(CodeItineraryNotReady, "session has no itinerary yet", nil)
	}
	return ItineraryView{
		SessionID:   sess.ID,
		Version:     sess.Version,
		Constraints: sess.Constraints,
		Itinerary:   *sess.Itinerary,
		Reasoning:   sess.Reasoning,
	}, nil
}

func (s *service) History(ctx context.Context, sessionID string) ([]Version, error) {
	if _, err := s.load(ctx, sessionID); err != nil {
		return nil, err
	}
	versions, err := s.deps.Versions.List(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(CodeStorage, "failed to load history", err)
	}
	return versions, nil
}

func (s *service) Feasibility(ctx context.Context, sessionID string) (FeasibilityView, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return FeasibilityView{}, err
	}
	if sess.Feasibility == nil {
		return FeasibilityView{}, apperrors.Wrap(CodeItineraryNotReady, "session has no itinerary yet", nil)
	}
	return FeasibilityView{Report: *sess.Feasibility, Summary: sess.Feasibility.Summarize()}, nil
}

func (s *service) EditEvaluation(ctx context.Context, sessionID string) (itinerary.ScopeReport, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return itinerary.ScopeReport{}, err
	}
	if sess.LastEdit == nil {
		return itinerary.ScopeReport{}, apperrors.Wrap(CodeEditNotFound, "no edit has been applied to this session", nil)
	}
	return sess.LastEdit.Scope, nil
}

func (s *service) Explain(ctx context.Context, sessionID string, req ExplainRequest) (guide.Explanation, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return guide.Explanation{}, err
	}
	city := sess.Constraints.City
	if city == "" {
		city = sess.Draft.City
	}
	greq := guide.ExplainRequest{
		Kind:     req.Kind,
		City:     city,
		POIName:  req.POIName,
		Question: req.Question,
	}
	if sess.Itinerary != nil {
		greq.Summary = s.summarize(*sess.Itinerary)
	}
	return s.deps.Guide.Explain(ctx, greq)
}

// plan builds a fresh itinerary into sess and persists it as the next version.
func (s *service) plan(ctx context.Context, sess *Session, req PlanRequest) (PlanResponse, error) {
	constraints, days, err := s.constraintsFrom(req)
	if err != nil {
		return PlanResponse{}, err
	}

	pois, err := s.deps.Supplier.Search(ctx, itinerary.SearchQuery{
		City:          constraints.City,
		Interests:     constraints.Preferences.Interests,
		IndoorOnly:    constraints.Preferences.IndoorOnly,
		Accessibility: constraints.Preferences.Accessibility,
		Limit:         s.cfg.SearchLimit,
	})
	if err != nil {
		return PlanResponse{}, apperrors.Wrap(itinerary.CodeSupplierFailure, "failed to find places to visit", err)
	}
	if len(pois) > s.cfg.KeepPOIs {
		pois = pois[:s.cfg.KeepPOIs]
	}
	s.shuffle(pois)

	windows, err := itinerary.MakeWindows(days, req.StartDate, s.now(), s.cfg.Location)
	if err != nil {
		return PlanResponse{}, err
	}
	built, reasoning, err := s.scheduler.Build(pois, windows, constraints)
	if err != nil {
		return PlanResponse{}, err
	}
	report := s.validator.Evaluate(built, constraints)

	sess.Constraints = constraints
	sess.Days = days
	sess.StartDate = strings.TrimSpace(req.StartDate)
	sess.Itinerary = &built
	sess.Reasoning = reasoning
	sess.Feasibility = &report
	sess.LastEdit = nil
	sess.Version++
	if err := s.commit(ctx, *sess, nil); err != nil {
		return PlanResponse{}, err
	}

	token, err := s.deps.Tokens.Issue(sess.ID)
	if err != nil {
		return PlanResponse{}, err
	}
	s.logger.Info("itinerary planned",
		"session_id", sess.ID,
		"city", constraints.City,
		"days", days,
		"pois", len(pois),
		"version", sess.Version,
		"feasible", report.IsFeasible,
	)
	return PlanResponse{
		SessionID:   sess.ID,
		AccessToken: token,
		Version:     sess.Version,
		Constraints: constraints,
		Itinerary:   built,
		Reasoning:   reasoning,
		Feasibility: report,
	}, nil
}

// commit appends the version, stores the session and archives a snapshot. Archive failures
// are logged and do not fail the call.
func (s *service) commit(ctx context.Context, sess Session, changes []itinerary.Change) error {
	now := s.now()
	sess.UpdatedAt = now
	if changes == nil {
		changes = []itinerary.Change{}
	}
	if err := s.deps.Versions.Append(ctx, Version{
		SessionID: sess.ID,
		Version:   sess.Version,
		Itinerary: *sess.Itinerary,
		Changes:   changes,
		CreatedAt: now,
	}); err != nil {
		return apperrors.Wrap(CodeStorage, "failed to record itinerary version", err)
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}
	snap := Snapshot{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Version:     sess.Version,
		Constraints: sess.Constraints,
		Itinerary:   *sess.Itinerary,
		Reasoning:   sess.Reasoning,
		CreatedAt:   now,
	}
	if sess.Feasibility != nil {
		snap.Feasibility = *sess.Feasibility
	}
	if err := s.deps.Archive.Put(ctx, snap); err != nil {
		s.logger.Warn("snapshot archive failed", "session_id", sess.ID, "version", sess.Version, "error", err)
	}
	return nil
}

func (s *service) load(ctx context.Context, id string) (Session, error) {
	if strings.TrimSpace(id) == "" {
		return Session{}, apperrors.Wrap(CodeSessionNotFound, "session id is required", nil)
	}
	sess, ok, err := s.deps.Store.Get(ctx, id)
	if err != nil {
		return Session{}, apperrors.Wrap(CodeStorage, "failed to load session", err)
	}
	if !ok {
		return Session{}, apperrors.Wrap(CodeSessionNotFound, fmt.Sprintf("session %s not found", id), nil)
	}
	return sess, nil
}

func (s *service) save(ctx context.Context, sess Session) error {
	if err := s.deps.Store.Save(ctx, sess, s.cfg.SessionTTL); err != nil {
		return apperrors.Wrap(CodeStorage, "failed to save session", err)
	}
	return nil
}

func (s *service) summarize(it itinerary.Itinerary) string {
	summary := SummarizeItinerary(it)
	if s.deps.Counter == nil {
		return summary
	}
	return s.deps.Counter.Truncate(summary, s.cfg.SummaryTokenBudget)
}

func (s *service) constraintsFrom(req PlanRequest) (itinerary.Constraints, int, error) {
	city := strings.TrimSpace(req.City)
	if city == "" {
		return itinerary.Constraints{}, 0, apperrors.Wrap(itinerary.CodeInvalidInput, "city is required", nil)
	}
	if req.Days < 1 || req.Days > MaxTripDays {
		return itinerary.Constraints{}, 0, apperrors.Wrap(itinerary.CodeInvalidInput, fmt.Sprintf("days must be between 1 and %d", MaxTripDays), nil)
	}
	pace := itinerary.ParsePace(req.Pace)
	if pace == "" {
		pace = itinerary.ParsePace(s.cfg.DefaultPace)
	}
	if !validPace(pace) {
		return itinerary.Constraints{}, 0, apperrors.Wrap(itinerary.CodeInvalidInput, fmt.Sprintf("unknown pace %q", req.Pace), nil)
	}
	if req.MaxTravelTimePerDay < 0 {
		return itinerary.Constraints{}, 0, apperrors.Wrap(itinerary.CodeInvalidInput, "maxTravelTimePerDay cannot be negative", nil)
	}
	maxTravel := req.MaxTravelTimePerDay
	if maxTravel == 0 {
		maxTravel = s.cfg.MaxTravelTimePerDay
	}
	return itinerary.Constraints{
		City:                city,
		Pace:                pace,
		MaxTravelTimePerDay: maxTravel,
		Preferences: itinerary.Preferences{
			Interests:     normalizeList(req.Interests),
			IndoorOnly:    req.IndoorOnly,
			Accessibility: req.Accessibility,
		},
	}, req.Days, nil
}

func (s *service) requestFromDraft(sess Session) PlanRequest {
	days := sess.Draft.Duration
	if days <= 0 {
		days = s.cfg.DefaultDays
	}
	if days > MaxTripDays {
		days = MaxTripDays
	}
	return PlanRequest{
		City:      sess.Draft.City,
		Days:      days,
		Pace:      sess.Draft.Pace,
		Interests: sess.Draft.Interests,
	}
}

func validPace(p itinerary.Pace) bool {
	switch p {
	case itinerary.PaceRelaxed, itinerary.PaceModerate, itinerary.PaceFast:
		return true
	}
	return false
}
