package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/morningai/morningai/internal/audit"
	"github.com/morningai/morningai/internal/decisions"
	"github.com/morningai/morningai/internal/models"
)

// CreateDecisionRequest proposes an automated action for review
type CreateDecisionRequest struct {
	Strategy            string  `json:"strategy" binding:"required,max=200"`
	StrategyDescription string  `json:"strategy_description"`
	TriggerType         string  `json:"trigger_type" binding:"required,max=100"`
	TriggerValue        float64 `json:"trigger_value"`
	TriggerThreshold    float64 `json:"trigger_threshold"`
	PredictedImpact     string  `json:"predicted_impact"`
	RiskAssessment      string  `json:"risk_assessment"`
	Priority            string  `json:"priority" binding:"omitempty,priority"`
	// Omitted means the server default; 0 disables auto-approval
	AutoApproveSeconds *int `json:"auto_approve_seconds" binding:"omitempty,min=0"`
}

// ReviewRequest is an operator's verdict comment
type ReviewRequest struct {
	Comment string `json:"comment" binding:"max=2000"`
}

// DecisionResponse wraps a single decision
type DecisionResponse struct {
	Message  string         `json:"message,omitempty"`
	Decision decisions.View `json:"decision"`
}

func (s *Server) respondDecisionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, decisions.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Decision not found"})
	case errors.Is(err, decisions.ErrNotPending):
		c.JSON(http.StatusConflict, gin.H{"message": "Decision is no longer pending"})
	case errors.Is(err, decisions.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status filter"})
	default:
		s.logger.Error().Err(err).Msg("Decision operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

// @Summary List decisions
// @Tags decisions
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or auto_approved"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/decisions [get]
func (s *Server) listDecisions(c *gin.Context) {
	items, err := s.decisions.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		s.respondDecisionError(c, err)
		return
	}

	now := s.now()
	views := make([]decisions.View, len(items))
	for i, d := range items {
		views[i] = decisions.NewView(d, now)
	}
	c.JSON(http.StatusOK, gin.H{"decisions": views, "total": len(views)})
}

// @Summary Get decision
// @Tags decisions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Decision ID"
// @Success 200 {object} DecisionResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/decisions/{id} [get]
func (s *Server) getDecision(c *gin.Context) {
	d, err := s.decisions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, DecisionResponse{Decision: decisions.NewView(*d, s.now())})
}

// @Summary Create decision
// @Description Stores a pending decision and schedules its auto-approval (admin only)
// @Tags decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateDecisionRequest true "Decision"
// @Success 201 {object} DecisionResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/decisions [post]
func (s *Server) createDecision(c *gin.Context) {
	var req CreateDecisionRequest
	if !s.bindJSON(c, &req) {
		return
	}

	autoApprove := s.config.Decisions.DefaultAutoApprove
	if req.AutoApproveSeconds != nil {
		autoApprove = time.Duration(*req.AutoApproveSeconds) * time.Second
	}

	d, err := s.decisions.Create(c.Request.Context(), decisions.CreateInput{
		Strategy:            req.Strategy,
		StrategyDescription: req.StrategyDescription,
		TriggerType:         req.TriggerType,
		TriggerValue:        req.TriggerValue,
		TriggerThreshold:    req.TriggerThreshold,
		PredictedImpact:     req.PredictedImpact,
		RiskAssessment:      req.RiskAssessment,
		Priority:            req.Priority,
		AutoApproveAfter:    autoApprove,
	})
	if err != nil {
		s.respondDecisionError(c, err)
		return
	}

	sessionData, _ := GetSessionData(c)
	entry := s.auditEntry(c, audit.ActionDecisionCreate, sessionData.UserID)
	entry.ResourceType, entry.ResourceID, entry.Details = "decision", d.ID, d.Strategy
	s.audit.Record(c.Request.Context(), entry)

	c.JSON(http.StatusCreated, DecisionResponse{
		Message:  "Decision created",
		Decision: decisions.NewView(*d, s.now()),
	})
}

// @Summary Approve decision
// @Tags decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Decision ID"
// @Param request body ReviewRequest false "Comment"
// @Success 200 {object} DecisionResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/decisions/{id}/approve [post]
func (s *Server) approveDecision(c *gin.Context) {
	s.reviewDecision(c, models.DecisionApproved)
}

// @Summary Reject decision
// @Tags decisions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Decision ID"
// @Param request body ReviewRequest false "Comment"
// @Success 200 {object} DecisionResponse
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/decisions/{id}/reject [post]
func (s *Server) rejectDecision(c *gin.Context) {
	s.reviewDecision(c, models.DecisionRejected)
}

func (s *Server) reviewDecision(c *gin.Context, verdict string) {
	var req ReviewRequest
	// The body is optional
	if c.Request.ContentLength != 0 && !s.bindJSON(c, &req) {
		return
	}

	sessionData, _ := GetSessionData(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		d   *models.Decision
		err error
	)
	action := audit.ActionDecisionApprove
	if verdict == models.DecisionApproved {
		d, err = s.decisions.Approve(ctx, id, sessionData.UserID, req.Comment)
	} else {
		action = audit.ActionDecisionReject
		d, err = s.decisions.Reject(ctx, id, sessionData.UserID, req.Comment)
	}
	if err != nil {
		s.respondDecisionError(c, err)
		return
	}

	s.metrics.DecisionsReviewed.WithLabelValues(verdict).Inc()
	entry := s.auditEntry(c, action, sessionData.UserID)
	entry.ResourceType, entry.ResourceID, entry.Details = "decision", d.ID, req.Comment
	s.audit.Record(ctx, entry)

	c.JSON(http.StatusOK, DecisionResponse{
		Message:  "Decision " + verdict,
		Decision: decisions.NewView(*d, s.now()),
	})
}
