package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail         *models.User
	userByID            *models.User
	findByEmailErr      error
	findByIDErr         error
	refreshTokens       map[string]*models.RefreshToken
	createRefreshErr    error
	revokeRefreshErr    error
	revokeUserTokensErr error
	updatePasswordErr   error
	revokedAllFor       []string
	lastLoginUpdated    bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAllFor = append(m.revokedAllFor, userID)
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.TokenHash] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditStub) actions() []string {
	out := make([]string, len(a.logs))
	for i, l := range a.logs {
		out[i] = l.Action
	}
	return out
}

func testAuthConfig() AuthConfig {
	return AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: 24 * time.Hour, Issuer: "college-scheduling-api"}
}

func hashPassword(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: hashPassword(t, "password"), Active: true, Role: models.RoleAdmin}}
	audit := &auditStub{}
	svc := NewAuthService(repo, audit, nil, zap.NewNop(), testAuthConfig())

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	stored, ok := repo.refreshTokens[HashRefreshToken(res.RefreshToken)]
	require.True(t, ok, "refresh token must be stored by hash")
	assert.NotEqual(t, res.RefreshToken, stored.TokenHash)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
	assert.Equal(t, []string{models.AuditActionLogin}, audit.actions())
}

func TestAuthServiceLoginFailures(t *testing.T) {
	hash := hashPassword(t, "password")
	tests := []struct {
		name string
		user *models.User
		req  models.LoginRequest
		code string
	}{
		{"unknown email", nil, models.LoginRequest{Email: "nobody@example.com", Password: "password"}, appErrors.ErrInvalidCredentials.Code},
		{"wrong password", &models.User{ID: "1", PasswordHash: hash, Active: true}, models.LoginRequest{Email: "user@example.com", Password: "nope"}, appErrors.ErrInvalidCredentials.Code},
		{"inactive", &models.User{ID: "1", PasswordHash: hash, Active: false}, models.LoginRequest{Email: "user@example.com", Password: "password"}, appErrors.ErrInactiveAccount.Code},
		{"invalid payload", nil, models.LoginRequest{Email: "not-an-email"}, appErrors.ErrValidation.Code},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewAuthService(&mockAuthRepo{userByEmail: tc.user}, nil, nil, nil, testAuthConfig())
			_, err := svc.Login(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceSingleSessionRevokesPrevious(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hashPassword(t, "password"), Active: true}}
	cfg := testAuthConfig()
	cfg.SingleSession = true
	svc := NewAuthService(repo, nil, nil, nil, cfg)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", Active: true, Role: models.RoleStaff}
	repo.userByID = user
	old := &models.RefreshToken{ID: "rt1", UserID: user.ID, TokenHash: HashRefreshToken("token"), ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[old.TokenHash] = old
	audit := &auditStub{}
	svc := NewAuthService(repo, audit, nil, nil, testAuthConfig())

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, old.Revoked)
	assert.Contains(t, repo.refreshTokens, HashRefreshToken(res.RefreshToken))
	assert.Equal(t, []string{models.AuditActionTokenRefresh}, audit.actions())

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		HashRefreshToken("stale"): {ID: "rt1", UserID: "u1", TokenHash: HashRefreshToken("stale"), ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutChecksOwner(t *testing.T) {
	token := &models.RefreshToken{ID: "rt1", UserID: "u1", TokenHash: HashRefreshToken("token"), ExpiresAt: time.Now().Add(time.Hour)}
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{token.TokenHash: token}}
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	err := svc.Logout(context.Background(), "token", "someone-else", models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, token.Revoked)

	require.NoError(t, svc.Logout(context.Background(), "token", "u1", models.RequestMeta{}))
	assert.True(t, token.Revoked)
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashPassword(t, "old-password")
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: oldHash, Active: true}}
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong-password", NewPassword: "newpassword"}, models.RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old-password", NewPassword: "newpassword"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, oldHash, repo.userByEmail.PasswordHash)
	assert.Equal(t, []string{"u1"}, repo.revokedAllFor)
}

func TestAuthServiceChangePasswordRejectsReuse(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "samepassword", NewPassword: "samepassword"}, models.RequestMeta{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Details, "new_password")
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, nil, testAuthConfig())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenRejectsForeignIssuerAndSecret(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, nil, testAuthConfig())
	user := &models.User{ID: "u1", Role: models.RoleAdmin}

	other := NewAuthService(&mockAuthRepo{}, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "someone-else"})
	foreign, _, err := other.generateAccessToken(user)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "college-scheduling-api"}})
	signed, err := forged.SignedString([]byte("wrong"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}
