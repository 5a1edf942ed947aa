package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
	"github.com/pro-outcomes-server/internal/review"
)

// submitRequest is the intake payload: one submission plus optional lab
// values drawn at the same timepoint.
type submitRequest struct {
	Submission domain.Submission `json:"submission" binding:"required"`
	Labs       domain.LabValues  `json:"labs,omitempty"`
}

// handleProcessSubmission runs one submission through validation, scoring,
// and safety evaluation. A rejected submission is a 422 carrying the full
// failure list; only configuration and consistency failures are 5xx.
func (s *Server) handleProcessSubmission(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "Malformed submission payload", err.Error(), requestID))
		return
	}

	submission := &req.Submission
	if submission.ID == "" {
		submission.ID = uuid.New().String()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	if submission.StudyID == "" || submission.ParticipantID == "" || submission.InstrumentID == "" {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "study_id, participant_id and instrument_id are required", "", requestID))
		return
	}

	ctx := c.Request.Context()

	instrument, err := s.configs.Instrument(ctx, submission.StudyID, submission.InstrumentID)
	if err != nil {
		s.respondError(c, requestID, err)
		return
	}

	rules, err := s.configs.SafetyRules(ctx, submission.StudyID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.respondError(c, requestID, err)
			return
		}
		// A study without safety rules evaluates against an empty set
		rules = &domain.SafetyRuleSet{StudyID: submission.StudyID}
	}

	result, err := s.orchestrator.Process(ctx, instrument, rules, submission, req.Labs)
	if err != nil {
		if result != nil && result.State.IsTerminal() {
			// Processing finished but alert delivery failed; the result is
			// persisted and delivery will be retried out of band.
			s.logger.WithFields(logrus.Fields{
				"submission_id": submission.ID,
				"error":         err,
			}).Error("Alert delivery failed after processing")

			c.JSON(http.StatusOK, gin.H{
				"result":         result,
				"alert_delivery": "failed",
			})
			return
		}
		s.respondError(c, requestID, err)
		return
	}

	if result.State == domain.StateRejected {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"result": result})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// handleGetResult returns the terminal result for a submission
func (s *Server) handleGetResult(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	result, err := s.submissions.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// handleGetInstrument returns the latest instrument definition for a study
func (s *Server) handleGetInstrument(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	instrument, err := s.configs.Instrument(c.Request.Context(), c.Param("study"), c.Param("id"))
	if err != nil {
		s.respondError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"instrument": instrument})
}

// handleGetSafetyRules returns the latest safety rule set for a study
func (s *Server) handleGetSafetyRules(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	rules, err := s.configs.SafetyRules(c.Request.Context(), c.Param("study"))
	if err != nil {
		s.respondError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"safety_rules": rules})
}

// handleListReviews lists alert reviews, optionally filtered by status
func (s *Server) handleListReviews(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	var (
		reviews []*review.AlertReview
		listErr error
	)
	if status := c.Query("status"); status != "" {
		reviews, listErr = s.reviews.ListByStatus(c.Request.Context(), review.Status(status), limit, offset)
	} else {
		reviews, listErr = s.reviews.List(c.Request.Context(), limit, offset)
	}
	if listErr != nil {
		s.respondError(c, requestID, listErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleSaveReview records a clinician's review of a triggered alert
func (s *Server) handleSaveReview(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var body review.AlertReview
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "Malformed review payload", err.Error(), requestID))
		return
	}

	body.SubmissionID = c.Param("submission")
	body.RuleID = c.Param("rule")

	if err := s.reviews.Save(c.Request.Context(), &body); err != nil {
		s.respondError(c, requestID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"review": body})
}

// respondError maps domain errors onto HTTP status codes
func (s *Server) respondError(c *gin.Context, requestID string, err error) {
	var (
		configErr      *domain.ConfigurationError
		consistencyErr *domain.InternalConsistencyError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrCodeNotFoundAPI, "Resource not found", err.Error(), requestID))
	case errors.As(err, &configErr):
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeConfiguration, "Study configuration is invalid", configErr.Error(), requestID))
	case errors.As(err, &consistencyErr):
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeInternal, "Internal consistency check failed", consistencyErr.Error(), requestID))
	default:
		s.logger.WithError(err).Error("Unhandled error in request")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(
			domain.ErrCodeInternal, "Internal server error", "", requestID))
	}
}
