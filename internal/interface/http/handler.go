package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/domain/planner"
)

// Handler wires the HTTP transport to the planner service.
type Handler struct {
	planner   planner.Service
	validator *itinerary.Validator
	verifier  *itinerary.Verifier
	logger    *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc planner.Service, logger *slog.Logger) *Handler {
	return &Handler{
		planner:   svc,
		validator: itinerary.NewValidator(),
		verifier:  itinerary.NewVerifier(),
		logger:    logger.With("component", "http.handler"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Plan builds a new itinerary and opens a session for it.
func (h *Handler) Plan(c *gin.Context) {
	var req planner.PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.planner.Plan(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusCreated, resp)
}

type messageBody struct {
	Message string `json:"message"`
}

// StartConversation opens a session from a first free-text message.
func (h *Handler) StartConversation(c *gin.Context) {
	var body messageBody
	if !bindJSON(c, &body) {
		return
	}
	h.converse(c, planner.ConverseRequest{Message: body.Message})
}

// ContinueConversation adds a message to an existing conversation.
func (h *Handler) ContinueConversation(c *gin.Context) {
	var body messageBody
	if !bindJSON(c, &body) {
		return
	}
	h.converse(c, planner.ConverseRequest{SessionID: c.Param("id"), Message: body.Message})
}

func (h *Handler) converse(c *gin.Context, req planner.ConverseRequest) {
	resp, err := h.planner.Converse(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

type evaluateBody struct {
	Itinerary   itinerary.Itinerary   `json:"itinerary"`
	Constraints itinerary.Constraints `json:"constraints"`
}

// EvaluateItinerary scores a client supplied itinerary without touching any session.
func (h *Handler) EvaluateItinerary(c *gin.Context) {
	var body evaluateBody
	if !bindJSON(c, &body) {
		return
	}
	if len(body.Itinerary.Days) == 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "itinerary must contain at least one day", nil))
		return
	}
	report := h.validator.Evaluate(body.Itinerary, body.Constraints)
	c.JSON(http.StatusOK, planner.FeasibilityView{Report: report, Summary: report.Summarize()})
}

type verifyBody struct {
	Original itinerary.Itinerary   `json:"original"`
	Edited   itinerary.Itinerary   `json:"edited"`
	Request  itinerary.EditRequest `json:"request"`
	Changes  []itinerary.Change    `json:"changes"`
}

// VerifyEdit checks that a client supplied edit stayed in scope.
func (h *Handler) VerifyEdit(c *gin.Context) {
	var body verifyBody
	if !bindJSON(c, &body) {
		return
	}
	if body.Request.EditType == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "request.edit_type is required", nil))
		return
	}
	c.JSON(http.StatusOK, h.verifier.Verify(body.Original, body.Edited, body.Request.Normalized(), body.Changes))
}

// GetItinerary returns the session's current itinerary.
func (h *Handler) GetItinerary(c *gin.Context) {
	view, err := h.planner.Itinerary(c.Request.Context(), sessionID(c))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetHistory lists every stored version of the session's itinerary.
func (h *Handler) GetHistory(c *gin.Context) {
	versions, err := h.planner.History(c.Request.Context(), sessionID(c))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// Edit applies a free-text or structured edit.
func (h *Handler) Edit(c *gin.Context) {
	var cmd planner.EditCommand
	if !bindJSON(c, &cmd) {
		return
	}
	resp, err := h.planner.Edit(c.Request.Context(), sessionID(c), cmd)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Explain answers a question about the session's itinerary.
func (h *Handler) Explain(c *gin.Context) {
	var req planner.ExplainRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.planner.Explain(c.Request.Context(), sessionID(c), req)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// FeasibilityReport returns the latest feasibility evaluation.
func (h *Handler) FeasibilityReport(c *gin.Context) {
	view, err := h.planner.Feasibility(c.Request.Context(), sessionID(c))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, view)
}

// EditReport returns the scope verification of the last edit.
func (h *Handler) EditReport(c *gin.Context) {
	report, err := h.planner.EditEvaluation(c.Request.Context(), sessionID(c))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return false
	}
	return true
}

// sessionID prefers the authenticated claim over the raw path parameter.
func sessionID(c *gin.Context) string {
	if claims, ok := getClaims(c); ok {
		return claims.SessionID
	}
	return c.Param("id")
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
