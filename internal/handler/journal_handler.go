package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scholarhub/journal-req-api/internal/models"
	"github.com/scholarhub/journal-req-api/internal/service"
	appErrors "github.com/scholarhub/journal-req-api/pkg/errors"
	"github.com/scholarhub/journal-req-api/pkg/response"
)

// JournalHandler handles journal record endpoints.
type JournalHandler struct {
	service  *service.JournalService
	exporter *service.ExportService
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(svc *service.JournalService, exporter *service.ExportService) *JournalHandler {
	return &JournalHandler{service: svc, exporter: exporter}
}

// List godoc
// @Summary List journals
// @Description List journal summaries, optionally filtered by name substring and minimum impact factor
// @Tags Journals
// @Produce json
// @Param name query string false "Case-insensitive name substring"
// @Param min_impact_factor query number false "Minimum impact factor; malformed or negative values are ignored"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /journals [get]
func (h *JournalHandler) List(c *gin.Context) {
	var filter models.JournalFilter
	filter.Name = c.Query("name")

	// An unparsable or negative minimum is dropped rather than rejected.
	if raw := c.Query("min_impact_factor"); raw != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil && min >= 0 {
			filter.MinImpactFactor = &min
		}
	}

	summaries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summaries, nil)
}

// Create godoc
// @Summary Submit journal
// @Description Submit a new journal record; history is seeded with the creation entry
// @Tags Journals
// @Accept json
// @Produce json
// @Param payload body service.CreateJournalRequest true "Journal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /journals [post]
func (h *JournalHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid journal payload"))
		return
	}

	meta := models.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	detail, err := h.service.Create(c.Request.Context(), req, claims, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, detail)
}

// Get godoc
// @Summary Get journal
// @Description Get the full journal record with decoded history and comments
// @Tags Journals
// @Produce json
// @Param id path string true "Journal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /journals/{id} [get]
func (h *JournalHandler) Get(c *gin.Context) {
	id := c.Param("id")

	detail, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update journal
// @Description Apply a partial edit; changed fields are recorded in the update history
// @Tags Journals
// @Accept json
// @Produce json
// @Param id path string true "Journal ID"
// @Param payload body service.UpdateJournalRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /journals/{id} [put]
func (h *JournalHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid journal payload"))
		return
	}

	meta := models.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims, meta)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete journal
// @Description Delete a journal record; restricted to admins
// @Tags Journals
// @Produce json
// @Param id path string true "Journal ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /journals/{id} [delete]
func (h *JournalHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	meta := models.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims, meta); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Flag godoc
// @Summary Flag journal
// @Description Mark a journal for review; increments its flag counter
// @Tags Journals
// @Produce json
// @Param id path string true "Journal ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /journals/{id}/flag [post]
func (h *JournalHandler) Flag(c *gin.Context) {
	if err := h.service.Flag(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// AddComment godoc
// @Summary Comment on journal
// @Description Append a comment to the journal; empty text is accepted and ignored
// @Tags Journals
// @Accept json
// @Produce json
// @Param id path string true "Journal ID"
// @Param payload body service.AddCommentRequest true "Comment payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /journals/{id}/comments [post]
func (h *JournalHandler) AddComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	// An absent body is the same as absent text, which the service treats
	// as a no-op.
	var req service.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	if err := h.service.AddComment(c.Request.Context(), c.Param("id"), claims, req.Text); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export journal requirements
// @Description Download the journal's requirement sheet as CSV or PDF
// @Tags Journals
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Journal ID"
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /journals/{id}/export [get]
func (h *JournalHandler) Export(c *gin.Context) {
	result, err := h.exporter.Export(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
