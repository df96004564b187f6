package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/scholarhub/journal-req-api/internal/models"
	appErrors "github.com/scholarhub/journal-req-api/pkg/errors"
)

type mockUserRepo struct {
	users             map[string]*models.User
	findByUsernameErr error
	createErr         error
	createdUsers      []*models.User
	refreshTokens     map[string]*models.RefreshToken
	passwordUpdates   map[string]string
	auditLogs         []*models.AuditLog
	lastLoginUpdated  bool
	revokedUserIDs    []string
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:           make(map[string]*models.User),
		refreshTokens:   make(map[string]*models.RefreshToken),
		passwordUpdates: make(map[string]string),
	}
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findByUsernameErr != nil {
		return nil, m.findByUsernameErr
	}
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.users[user.ID] = user
	m.createdUsers = append(m.createdUsers, user)
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordUpdates[id] = passwordHash
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUserIDs = append(m.revokedUserIDs, userID)
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func newAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour * 24,
	})
}

func TestAuthServiceRegisterSuccess(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "wonderland"})
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, models.RoleUser, info.Role)

	require.Len(t, repo.createdUsers, 1)
	stored := repo.createdUsers[0]
	assert.NotEqual(t, "wonderland", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("wonderland")))
	assert.True(t, stored.Active)
}

func TestAuthServiceRegisterDuplicateUsername(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", Active: true}
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice", Password: "wonderland"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.createdUsers)
}

func TestAuthServiceRegisterMissingPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "alice"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", PasswordHash: string(password), Active: true, Role: models.RoleUser}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "alice", res.User.Username)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", PasswordHash: string(password), Active: true}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "nope"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", PasswordHash: string(password), Active: false}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", PasswordHash: "hash", Active: true, Role: models.RoleUser}
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthService(repo)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", Active: true}
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := newAuthService(repo)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceLogoutRevokesToken(t *testing.T) {
	repo := newMockUserRepo()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "token", "u1", models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := newMockUserRepo()
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "someone-else", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthService(repo)

	err := svc.Logout(context.Background(), "token", "u1", models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.False(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", PasswordHash: string(oldHash), Active: true}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpassword"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u1"].PasswordHash), []byte("newpassword")))
	assert.Contains(t, repo.revokedUserIDs, "u1")
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpass"), bcrypt.DefaultCost)
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "alice", PasswordHash: string(oldHash), Active: true}
	svc := newAuthService(repo)

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpassword"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.passwordUpdates)
}

func TestAuthServiceValidateTokenRoundTrip(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	token, _, err := svc.generateAccessToken(&models.User{ID: "u1", Username: "alice", Role: models.RoleAdmin})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthServiceValidateTokenBadSecret(t *testing.T) {
	repo := newMockUserRepo()
	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "other", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour})
	token, _, err := other.generateAccessToken(&models.User{ID: "u1", Username: "alice", Role: models.RoleUser})
	require.NoError(t, err)

	svc := newAuthService(repo)
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestAuthServiceSeedAdminCreatesAccount(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	err := svc.SeedAdmin(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.Len(t, repo.createdUsers, 1)
	assert.Equal(t, models.RoleAdmin, repo.createdUsers[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.createdUsers[0].PasswordHash), []byte("admin123")))
}

func TestAuthServiceSeedAdminSkipsExisting(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["u1"] = &models.User{ID: "u1", Username: "admin", Role: models.RoleUser, Active: true}
	svc := newAuthService(repo)

	err := svc.SeedAdmin(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.Empty(t, repo.createdUsers)
	assert.Equal(t, models.RoleUser, repo.users["u1"].Role)
}

func TestAuthServiceSeedAdminSkipsWhenUnconfigured(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo)

	require.NoError(t, svc.SeedAdmin(context.Background(), "", ""))
	assert.Empty(t, repo.createdUsers)
}
