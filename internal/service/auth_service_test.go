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

	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	refreshTokens    map[string]*models.RefreshToken
	createRefreshErr error
	lastLoginUpdated bool
	revokedAllFor    string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.User), refreshTokens: make(map[string]*models.RefreshToken)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if rt, ok := m.refreshTokens[token]; ok {
		return rt, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string, revokedAt time.Time) error {
	m.revokedAllFor = userID
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthTestService(repo authUserRepository, cfg AuthConfig) *AuthService {
	if cfg.AccessTokenSecret == "" {
		cfg.AccessTokenSecret = "secret"
	}
	if cfg.AccessTokenExpiry == 0 {
		cfg.AccessTokenExpiry = time.Hour
	}
	if cfg.RefreshTokenExpiry == 0 {
		cfg.RefreshTokenExpiry = 24 * time.Hour
	}
	return NewAuthService(repo, validator.New(), zap.NewNop(), cfg)
}

func adminUser(t *testing.T, active bool) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{ID: "u1", Email: "admin@example.com", PasswordHash: string(hash), FullName: "Admin", Role: models.RoleAdmin, Active: active}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo(adminUser(t, true))
	svc := newAuthTestService(repo, AuthConfig{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)

	stored, ok := repo.refreshTokens[res.RefreshToken]
	require.True(t, ok)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "10.0.0.1", stored.IPAddress)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	cases := map[string]struct {
		user *models.User
		req  models.LoginRequest
		code string
	}{
		"invalid payload": {user: adminUser(t, true), req: models.LoginRequest{Email: "not-an-email"}, code: appErrors.ErrValidation.Code},
		"unknown email":   {user: adminUser(t, true), req: models.LoginRequest{Email: "other@example.com", Password: "password"}, code: appErrors.ErrInvalidCredentials.Code},
		"wrong password":  {user: adminUser(t, true), req: models.LoginRequest{Email: "admin@example.com", Password: "nope"}, code: appErrors.ErrInvalidCredentials.Code},
		"inactive":        {user: adminUser(t, false), req: models.LoginRequest{Email: "admin@example.com", Password: "password"}, code: appErrors.ErrInactiveAccount.Code},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newAuthTestService(newMockAuthRepo(tc.user), AuthConfig{})
			_, err := svc.Login(context.Background(), tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAuthServiceSingleSessionRevokesPrevious(t *testing.T) {
	repo := newMockAuthRepo(adminUser(t, true))
	repo.refreshTokens["old"] = &models.RefreshToken{ID: "rt-old", UserID: "u1", Token: "old", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthTestService(repo, AuthConfig{SingleSession: true})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.revokedAllFor)
	assert.True(t, repo.refreshTokens["old"].Revoked)
}

func TestAuthServiceRefreshTokenRotates(t *testing.T) {
	repo := newMockAuthRepo(adminUser(t, true))
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthTestService(repo, AuthConfig{})

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := newMockAuthRepo(adminUser(t, true))
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(-time.Minute)}
	svc := newAuthTestService(repo, AuthConfig{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := newMockAuthRepo(adminUser(t, true))
	repo.refreshTokens["token"] = &models.RefreshToken{ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	svc := newAuthTestService(repo, AuthConfig{})

	err := svc.Logout(context.Background(), "someone-else", models.LogoutRequest{RefreshToken: "token"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.refreshTokens["token"].Revoked)

	require.NoError(t, svc.Logout(context.Background(), "u1", models.LogoutRequest{RefreshToken: "token"}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthTestService(newMockAuthRepo(), AuthConfig{Issuer: "goal-tracker"})
	user := &models.User{ID: "u1", Email: "admin@example.com", Role: models.RoleAdmin}
	token, err := svc.signAccessToken(user, time.Now().UTC())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := newAuthTestService(newMockAuthRepo(), AuthConfig{AccessTokenSecret: "different", Issuer: "goal-tracker"})
	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newAuthTestService(newMockAuthRepo(), AuthConfig{})
	token, err := svc.signAccessToken(&models.User{ID: "u1"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}
