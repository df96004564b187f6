package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scholarhub/journal-req-api/internal/models"
	appErrors "github.com/scholarhub/journal-req-api/pkg/errors"
)

type journalRepository interface {
	Create(ctx context.Context, journal *models.Journal) error
	FindByID(ctx context.Context, id string) (*models.Journal, error)
	List(ctx context.Context, filter models.JournalFilter) ([]models.JournalSummary, error)
	UpdateWithHistory(ctx context.Context, journal *models.Journal, entry models.HistoryEntry) error
	Delete(ctx context.Context, id string) error
	IncrementFlags(ctx context.Context, id string) error
	AppendComment(ctx context.Context, id string, comment models.Comment) error
}

type journalAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateJournalRequest represents the payload for submitting a journal.
// Absent optional numeric fields stay nil and are stored as NULL.
type CreateJournalRequest struct {
	JournalName            string   `json:"journal_name" validate:"required,max=200"`
	ISSN                   *string  `json:"issn" validate:"omitempty,max=50"`
	Publisher              *string  `json:"publisher" validate:"omitempty,max=150"`
	ImpactFactor           *float64 `json:"impact_factor" validate:"omitempty,gte=0"`
	FormattingRequirements *string  `json:"formatting_requirements"`
	FontSpecifications     *string  `json:"font_specifications"`
	WordCountLimit         *int     `json:"word_count_limit" validate:"omitempty,gte=0"`
	ReferenceStyle         *string  `json:"reference_style" validate:"omitempty,max=100"`
	ReferenceCountLimit    *int     `json:"reference_count_limit" validate:"omitempty,gte=0"`
	SubmissionURL          *string  `json:"submission_url" validate:"omitempty,max=500"`
	OfficialGuidelinesURL  string   `json:"official_guidelines_url" validate:"required,max=500"`
	Notes                  *string  `json:"notes"`
}

// UpdateJournalRequest carries a partial edit. Only fields present in the
// payload are applied.
type UpdateJournalRequest struct {
	JournalName            *string  `json:"journal_name" validate:"omitempty,max=200"`
	ISSN                   *string  `json:"issn" validate:"omitempty,max=50"`
	Publisher              *string  `json:"publisher" validate:"omitempty,max=150"`
	ImpactFactor           *float64 `json:"impact_factor" validate:"omitempty,gte=0"`
	FormattingRequirements *string  `json:"formatting_requirements"`
	FontSpecifications     *string  `json:"font_specifications"`
	WordCountLimit         *int     `json:"word_count_limit" validate:"omitempty,gte=0"`
	ReferenceStyle         *string  `json:"reference_style" validate:"omitempty,max=100"`
	ReferenceCountLimit    *int     `json:"reference_count_limit" validate:"omitempty,gte=0"`
	SubmissionURL          *string  `json:"submission_url" validate:"omitempty,max=500"`
	OfficialGuidelinesURL  *string  `json:"official_guidelines_url" validate:"omitempty,max=500"`
	Notes                  *string  `json:"notes"`
}

// AddCommentRequest carries a comment submission.
type AddCommentRequest struct {
	Text string `json:"text"`
}

// JournalService handles the journal record lifecycle.
type JournalService struct {
	repo      journalRepository
	auditor   journalAuditor
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJournalService creates an instance of JournalService.
func NewJournalService(repo journalRepository, auditor journalAuditor, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &JournalService{repo: repo, auditor: auditor, cache: cache, validator: validate, logger: logger}
}

// Create validates and stores a new journal record. The history is seeded
// with a single creation entry authored by the submitting user and comments
// start empty.
func (s *JournalService) Create(ctx context.Context, req CreateJournalRequest, actor *models.JWTClaims, meta models.ClientMeta) (*models.JournalDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid journal payload")
	}

	now := time.Now().UTC()
	seed := []models.HistoryEntry{{Timestamp: now, Author: actor.Username, Changes: "Initial creation."}}
	encodedHistory, err := models.EncodeHistory(seed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode history")
	}
	encodedComments, err := models.EncodeComments(nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode comments")
	}

	journal := &models.Journal{
		ID:                     uuid.NewString(),
		JournalName:            req.JournalName,
		ISSN:                   req.ISSN,
		Publisher:              req.Publisher,
		ImpactFactor:           req.ImpactFactor,
		FormattingRequirements: req.FormattingRequirements,
		FontSpecifications:     req.FontSpecifications,
		WordCountLimit:         req.WordCountLimit,
		ReferenceStyle:         req.ReferenceStyle,
		ReferenceCountLimit:    req.ReferenceCountLimit,
		SubmissionURL:          req.SubmissionURL,
		OfficialGuidelinesURL:  req.OfficialGuidelinesURL,
		Notes:                  req.Notes,
		CreatedAt:              now,
		LastUpdated:            now,
		FlagsCount:             0,
		UpdateHistory:          encodedHistory,
		EncodedComments:        encodedComments,
	}

	if err := s.repo.Create(ctx, journal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create journal")
	}

	s.recordAudit(ctx, actor, models.AuditActionJournalCreate, journal.ID, nil, map[string]interface{}{"journal_name": journal.JournalName}, meta)
	s.invalidateListings(ctx)

	return &models.JournalDetail{Journal: *journal, History: seed, Comments: []models.Comment{}}, nil
}

// Get returns the full journal projection with decoded history and comments.
func (s *JournalService) Get(ctx context.Context, id string) (*models.JournalDetail, error) {
	journal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journal")
	}

	history, err := models.DecodeHistory(journal.UpdateHistory)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode history")
	}
	comments, err := models.DecodeComments(journal.EncodedComments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode comments")
	}

	return &models.JournalDetail{Journal: *journal, History: history, Comments: comments}, nil
}

// List returns journal summaries matching the filter, most recently updated
// first. Results are cached per filter when caching is enabled.
func (s *JournalService) List(ctx context.Context, filter models.JournalFilter) ([]models.JournalSummary, error) {
	key := listCacheKey(filter)

	var cached []models.JournalSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	summaries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list journals")
	}

	if err := s.cache.Set(ctx, key, summaries, 0); err != nil {
		s.logger.Warn("failed to cache journal listing", zap.Error(err))
	}

	return summaries, nil
}

// Update applies a partial edit and appends a history entry naming the
// changed fields. A payload that changes nothing leaves the record alone.
func (s *JournalService) Update(ctx context.Context, id string, req UpdateJournalRequest, actor *models.JWTClaims, meta models.ClientMeta) (*models.JournalDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid journal payload")
	}

	journal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journal")
	}

	changed := applyJournalUpdates(journal, req)
	if len(changed) == 0 {
		return s.Get(ctx, id)
	}

	entry := models.HistoryEntry{
		Timestamp: time.Now().UTC(),
		Author:    actor.Username,
		Changes:   "Updated " + strings.Join(changed, ", ") + ".",
	}
	if err := s.repo.UpdateWithHistory(ctx, journal, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update journal")
	}

	s.recordAudit(ctx, actor, models.AuditActionJournalUpdate, id, nil, map[string]interface{}{"changed": changed}, meta)
	s.invalidateListings(ctx)

	return s.Get(ctx, id)
}

func applyJournalUpdates(journal *models.Journal, req UpdateJournalRequest) []string {
	var changed []string

	if req.JournalName != nil && *req.JournalName != journal.JournalName {
		journal.JournalName = *req.JournalName
		changed = append(changed, "journal_name")
	}
	if req.ISSN != nil && !equalStringPtr(req.ISSN, journal.ISSN) {
		journal.ISSN = req.ISSN
		changed = append(changed, "issn")
	}
	if req.Publisher != nil && !equalStringPtr(req.Publisher, journal.Publisher) {
		journal.Publisher = req.Publisher
		changed = append(changed, "publisher")
	}
	if req.ImpactFactor != nil && (journal.ImpactFactor == nil || *req.ImpactFactor != *journal.ImpactFactor) {
		journal.ImpactFactor = req.ImpactFactor
		changed = append(changed, "impact_factor")
	}
	if req.FormattingRequirements != nil && !equalStringPtr(req.FormattingRequirements, journal.FormattingRequirements) {
		journal.FormattingRequirements = req.FormattingRequirements
		changed = append(changed, "formatting_requirements")
	}
	if req.FontSpecifications != nil && !equalStringPtr(req.FontSpecifications, journal.FontSpecifications) {
		journal.FontSpecifications = req.FontSpecifications
		changed = append(changed, "font_specifications")
	}
	if req.WordCountLimit != nil && (journal.WordCountLimit == nil || *req.WordCountLimit != *journal.WordCountLimit) {
		journal.WordCountLimit = req.WordCountLimit
		changed = append(changed, "word_count_limit")
	}
	if req.ReferenceStyle != nil && !equalStringPtr(req.ReferenceStyle, journal.ReferenceStyle) {
		journal.ReferenceStyle = req.ReferenceStyle
		changed = append(changed, "reference_style")
	}
	if req.ReferenceCountLimit != nil && (journal.ReferenceCountLimit == nil || *req.ReferenceCountLimit != *journal.ReferenceCountLimit) {
		journal.ReferenceCountLimit = req.ReferenceCountLimit
		changed = append(changed, "reference_count_limit")
	}
	if req.SubmissionURL != nil && !equalStringPtr(req.SubmissionURL, journal.SubmissionURL) {
		journal.SubmissionURL = req.SubmissionURL
		changed = append(changed, "submission_url")
	}
	if req.OfficialGuidelinesURL != nil && *req.OfficialGuidelinesURL != journal.OfficialGuidelinesURL {
		journal.OfficialGuidelinesURL = *req.OfficialGuidelinesURL
		changed = append(changed, "official_guidelines_url")
	}
	if req.Notes != nil && !equalStringPtr(req.Notes, journal.Notes) {
		journal.Notes = req.Notes
		changed = append(changed, "notes")
	}

	return changed
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete removes a journal record. Only admins may delete; everyone else gets
// a permission error and the record is left untouched.
func (s *JournalService) Delete(ctx context.Context, id string, actor *models.JWTClaims, meta models.ClientMeta) error {
	if actor == nil || actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have permission to delete")
	}

	journal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load journal")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete journal")
	}

	s.recordAudit(ctx, actor, models.AuditActionJournalDelete, id, map[string]interface{}{"journal_name": journal.JournalName, "flags_count": journal.FlagsCount}, nil, meta)
	s.invalidateListings(ctx)

	return nil
}

// Flag increments the journal's flags count by exactly one. It deliberately
// leaves last_updated alone, unlike commenting.
func (s *JournalService) Flag(ctx context.Context, id string) error {
	if err := s.repo.IncrementFlags(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag journal")
	}

	s.invalidateListings(ctx)
	return nil
}

// AddComment appends a comment authored by the caller and bumps last_updated.
// Empty or whitespace-only text is accepted as a no-op.
func (s *JournalService) AddComment(ctx context.Context, id string, actor *models.JWTClaims, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	comment := models.Comment{Timestamp: time.Now().UTC(), Author: actor.Username, Text: text}
	if err := s.repo.AppendComment(ctx, id, comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "journal not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}

	s.invalidateListings(ctx)
	return nil
}

func (s *JournalService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValues, newValues map[string]interface{}, meta models.ClientMeta) {
	if s.auditor == nil {
		return
	}

	log := &models.AuditLog{
		Action:     action,
		Resource:   "journals",
		ResourceID: &resourceID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if actor != nil {
		userID := actor.UserID
		log.UserID = &userID
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}

	if err := s.auditor.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record journal audit log", zap.Error(err))
	}
}

func (s *JournalService) invalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "journals:list:*"); err != nil {
		s.logger.Warn("failed to invalidate journal listings cache", zap.Error(err))
	}
}

func listCacheKey(filter models.JournalFilter) string {
	minIF := "-"
	if filter.MinImpactFactor != nil {
		minIF = fmt.Sprintf("%g", *filter.MinImpactFactor)
	}
	name := "-"
	if filter.Name != "" {
		name = strings.ToLower(filter.Name)
	}
	return fmt.Sprintf("journals:list:%s:%s", name, minIF)
}
