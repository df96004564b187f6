package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scholarhub/journal-req-api/internal/models"
	appErrors "github.com/scholarhub/journal-req-api/pkg/errors"
)

type mockJournalRepo struct {
	journals     map[string]*models.Journal
	createErr    error
	updateErr    error
	listResult   []models.JournalSummary
	listErr      error
	lastFilter   models.JournalFilter
	deleteCalled bool
}

func newMockJournalRepo() *mockJournalRepo {
	return &mockJournalRepo{journals: make(map[string]*models.Journal)}
}

func (m *mockJournalRepo) Create(ctx context.Context, journal *models.Journal) error {
	if m.createErr != nil {
		return m.createErr
	}
	stored := *journal
	m.journals[journal.ID] = &stored
	return nil
}

func (m *mockJournalRepo) FindByID(ctx context.Context, id string) (*models.Journal, error) {
	j, ok := m.journals[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *j
	return &copied, nil
}

func (m *mockJournalRepo) List(ctx context.Context, filter models.JournalFilter) ([]models.JournalSummary, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockJournalRepo) UpdateWithHistory(ctx context.Context, journal *models.Journal, entry models.HistoryEntry) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.journals[journal.ID]
	if !ok {
		return sql.ErrNoRows
	}
	entries, err := models.DecodeHistory(stored.UpdateHistory)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	encoded, err := models.EncodeHistory(entries)
	if err != nil {
		return err
	}
	updated := *journal
	updated.EncodedComments = stored.EncodedComments
	updated.UpdateHistory = encoded
	updated.LastUpdated = entry.Timestamp
	m.journals[journal.ID] = &updated
	return nil
}

func (m *mockJournalRepo) Delete(ctx context.Context, id string) error {
	m.deleteCalled = true
	if _, ok := m.journals[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.journals, id)
	return nil
}

func (m *mockJournalRepo) IncrementFlags(ctx context.Context, id string) error {
	j, ok := m.journals[id]
	if !ok {
		return sql.ErrNoRows
	}
	j.FlagsCount++
	return nil
}

func (m *mockJournalRepo) AppendComment(ctx context.Context, id string, comment models.Comment) error {
	j, ok := m.journals[id]
	if !ok {
		return sql.ErrNoRows
	}
	comments, err := models.DecodeComments(j.EncodedComments)
	if err != nil {
		return err
	}
	comments = append(comments, comment)
	encoded, err := models.EncodeComments(comments)
	if err != nil {
		return err
	}
	j.EncodedComments = encoded
	j.LastUpdated = comment.Timestamp
	return nil
}

type mockJournalAuditor struct {
	logs []*models.AuditLog
}

func (m *mockJournalAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newJournalService(repo *mockJournalRepo, auditor *mockJournalAuditor) *JournalService {
	return NewJournalService(repo, auditor, nil, validator.New(), zap.NewNop())
}

func userClaims(username string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-" + username, Username: username, Role: models.RoleUser}
}

func adminClaims(username string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-" + username, Username: username, Role: models.RoleAdmin}
}

func validCreateRequest() CreateJournalRequest {
	return CreateJournalRequest{
		JournalName:           "Nature Methods",
		OfficialGuidelinesURL: "https://www.nature.com/nmeth/submission-guidelines",
	}
}

func TestJournalServiceCreateSeedsHistory(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	assert.Equal(t, 0, detail.FlagsCount)
	assert.Empty(t, detail.Comments)
	require.Len(t, detail.History, 1)
	assert.Equal(t, "alice", detail.History[0].Author)
	assert.Equal(t, "Initial creation.", detail.History[0].Changes)
	assert.Equal(t, detail.CreatedAt, detail.LastUpdated)

	stored, err := repo.FindByID(context.Background(), detail.ID)
	require.NoError(t, err)
	history, err := models.DecodeHistory(stored.UpdateHistory)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Initial creation.", history[0].Changes)
}

func TestJournalServiceCreateRejectsMissingName(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	req := validCreateRequest()
	req.JournalName = ""
	_, err := svc.Create(context.Background(), req, userClaims("alice"), models.ClientMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestJournalServiceCreateRejectsNegativeImpactFactor(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	req := validCreateRequest()
	negative := -1.5
	req.ImpactFactor = &negative
	_, err := svc.Create(context.Background(), req, userClaims("alice"), models.ClientMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestJournalServiceGetNotFound(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestJournalServiceGetDecodesHistoryAndComments(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)
	require.NoError(t, svc.AddComment(context.Background(), detail.ID, userClaims("bob"), "check word limits"))

	fetched, err := svc.Get(context.Background(), detail.ID)
	require.NoError(t, err)
	require.Len(t, fetched.History, 1)
	require.Len(t, fetched.Comments, 1)
	assert.Equal(t, "bob", fetched.Comments[0].Author)
	assert.Equal(t, "check word limits", fetched.Comments[0].Text)
}

func TestJournalServiceUpdateAppendsHistory(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	newName := "Nature Protocols"
	impact := 13.1
	updated, err := svc.Update(context.Background(), detail.ID, UpdateJournalRequest{JournalName: &newName, ImpactFactor: &impact}, userClaims("bob"), models.ClientMeta{})
	require.NoError(t, err)

	assert.Equal(t, "Nature Protocols", updated.JournalName)
	require.NotNil(t, updated.ImpactFactor)
	assert.Equal(t, impact, *updated.ImpactFactor)

	require.Len(t, updated.History, 2)
	assert.Equal(t, "Initial creation.", updated.History[0].Changes)
	assert.Equal(t, "bob", updated.History[1].Author)
	assert.Equal(t, "Updated journal_name, impact_factor.", updated.History[1].Changes)
	assert.True(t, updated.LastUpdated.After(detail.LastUpdated) || updated.LastUpdated.Equal(updated.History[1].Timestamp))
}

func TestJournalServiceUpdateNoChangesIsNoop(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	sameName := detail.JournalName
	updated, err := svc.Update(context.Background(), detail.ID, UpdateJournalRequest{JournalName: &sameName}, userClaims("bob"), models.ClientMeta{})
	require.NoError(t, err)

	require.Len(t, updated.History, 1)
	assert.True(t, updated.LastUpdated.Equal(detail.LastUpdated))
}

func TestJournalServiceUpdateFailureLeavesRecordUntouched(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	repo.updateErr = errors.New("connection reset")

	newName := "Renamed Journal"
	_, err = svc.Update(context.Background(), detail.ID, UpdateJournalRequest{JournalName: &newName}, userClaims("bob"), models.ClientMeta{})
	require.Error(t, err)

	fetched, err := svc.Get(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.JournalName, fetched.JournalName)
	require.Len(t, fetched.History, 1)
	assert.True(t, fetched.LastUpdated.Equal(detail.LastUpdated))
}

func TestJournalServiceUpdateNotFound(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	name := "Anything"
	_, err := svc.Update(context.Background(), "missing", UpdateJournalRequest{JournalName: &name}, userClaims("bob"), models.ClientMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestJournalServiceUpdateRejectsNegativeImpactFactor(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	negative := -0.1
	_, err = svc.Update(context.Background(), detail.ID, UpdateJournalRequest{ImpactFactor: &negative}, userClaims("bob"), models.ClientMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestJournalServiceFlagIncrements(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, svc.Flag(context.Background(), detail.ID))
	require.NoError(t, svc.Flag(context.Background(), detail.ID))

	stored, err := repo.FindByID(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.FlagsCount)
}

func TestJournalServiceFlagDoesNotTouchLastUpdated(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)
	before := detail.LastUpdated

	require.NoError(t, svc.Flag(context.Background(), detail.ID))

	stored, err := repo.FindByID(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FlagsCount)
	assert.True(t, stored.LastUpdated.Equal(before))
}

func TestJournalServiceFlagNotFound(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	err := svc.Flag(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestJournalServiceAddCommentBumpsLastUpdated(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)
	before := detail.LastUpdated

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, svc.AddComment(context.Background(), detail.ID, userClaims("bob"), "uses Vancouver references"))

	stored, err := repo.FindByID(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastUpdated.After(before))

	comments, err := models.DecodeComments(stored.EncodedComments)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "bob", comments[0].Author)
}

func TestJournalServiceAddCommentPreservesOrder(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		require.NoError(t, svc.AddComment(context.Background(), detail.ID, userClaims("bob"), text))
	}

	stored, err := repo.FindByID(context.Background(), detail.ID)
	require.NoError(t, err)
	comments, err := models.DecodeComments(stored.EncodedComments)
	require.NoError(t, err)
	require.Len(t, comments, len(texts))
	for i, text := range texts {
		assert.Equal(t, text, comments[i].Text)
	}
}

func TestJournalServiceAddCommentEmptyTextIsNoop(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)
	before := detail.LastUpdated

	require.NoError(t, svc.AddComment(context.Background(), detail.ID, userClaims("bob"), "   "))

	stored, err := repo.FindByID(context.Background(), detail.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastUpdated.Equal(before))
	comments, err := models.DecodeComments(stored.EncodedComments)
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestJournalServiceAddCommentNotFound(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	err := svc.AddComment(context.Background(), "missing", userClaims("bob"), "hello")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestJournalServiceDeleteRequiresAdmin(t *testing.T) {
	repo := newMockJournalRepo()
	svc := newJournalService(repo, &mockJournalAuditor{})

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), detail.ID, userClaims("bob"), models.ClientMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	assert.False(t, repo.deleteCalled)
	_, err = repo.FindByID(context.Background(), detail.ID)
	assert.NoError(t, err)
}

func TestJournalServiceDeleteAsAdmin(t *testing.T) {
	repo := newMockJournalRepo()
	auditor := &mockJournalAuditor{}
	svc := newJournalService(repo, auditor)

	detail, err := svc.Create(context.Background(), validCreateRequest(), userClaims("alice"), models.ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), detail.ID, adminClaims("root"), models.ClientMeta{}))

	_, err = repo.FindByID(context.Background(), detail.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	var actions []string
	for _, log := range auditor.logs {
		actions = append(actions, log.Action)
	}
	assert.Contains(t, actions, models.AuditActionJournalDelete)
}

func TestJournalServiceDeleteNotFound(t *testing.T) {
	svc := newJournalService(newMockJournalRepo(), &mockJournalAuditor{})

	err := svc.Delete(context.Background(), "missing", adminClaims("root"), models.ClientMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestJournalServiceListPassesFilter(t *testing.T) {
	repo := newMockJournalRepo()
	repo.listResult = []models.JournalSummary{{ID: "j1", JournalName: "Nature Methods"}}
	svc := newJournalService(repo, &mockJournalAuditor{})

	min := 2.5
	got, err := svc.List(context.Background(), models.JournalFilter{Name: "nature", MinImpactFactor: &min})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nature", repo.lastFilter.Name)
	require.NotNil(t, repo.lastFilter.MinImpactFactor)
	assert.Equal(t, min, *repo.lastFilter.MinImpactFactor)
}

func TestListCacheKeyDistinguishesFilters(t *testing.T) {
	min := 3.0
	keys := map[string]bool{}
	keys[listCacheKey(models.JournalFilter{})] = true
	keys[listCacheKey(models.JournalFilter{Name: "Nature"})] = true
	keys[listCacheKey(models.JournalFilter{MinImpactFactor: &min})] = true
	keys[listCacheKey(models.JournalFilter{Name: "Nature", MinImpactFactor: &min})] = true
	assert.Len(t, keys, 4)

	assert.Equal(t, listCacheKey(models.JournalFilter{Name: "NATURE"}), listCacheKey(models.JournalFilter{Name: "nature"}))
}
