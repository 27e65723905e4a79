package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/uni-course-api/internal/models"
	appErrors "github.com/noah-isme/uni-course-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	lastLogin []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogin = append(m.lastLogin, id)
	return nil
}

func authTestConfig() AuthConfig {
	return AuthConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "uni-course-api"}
}

func authTestUser(t *testing.T) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "staff@example.edu",
		PasswordHash: string(hash),
		Role:         models.RoleStaff,
		Active:       true,
	}
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]*models.User{"user-1": authTestUser(t)}}
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.edu", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Contains(t, repo.lastLogin, "user-1")

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStaff, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]*models.User{"user-1": authTestUser(t)}}
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.edu", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.edu", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := authTestUser(t)
	user.Active = false
	repo := &mockAuthRepo{users: map[string]*models.User{"user-1": user}}
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "staff@example.edu", Password: "password123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewAuthService(&mockAuthRepo{}, nil, nil, authTestConfig())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceMe(t *testing.T) {
	repo := &mockAuthRepo{users: map[string]*models.User{"user-1": authTestUser(t)}}
	svc := NewAuthService(repo, nil, nil, authTestConfig())

	user, err := svc.Me(context.Background(), &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "staff@example.edu", user.Email)

	_, err = svc.Me(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
