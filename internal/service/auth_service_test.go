package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type countingProfiles struct {
	users map[string]*models.User
	calls int
}

func (c *countingProfiles) FindByID(ctx context.Context, id string) (*models.User, error) {
	c.calls++
	u, ok := c.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *u
	return &copy, nil
}

func signToken(t *testing.T, secret, subject string, mutate func(*models.SupabaseClaims)) string {
	t.Helper()
	now := time.Now()
	claims := &models.SupabaseClaims{
		Email: subject + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "https://project.supabase.co/auth/v1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthFixture(t *testing.T) (*AuthService, *countingProfiles, *memoryCacheRepo) {
	t.Helper()
	profiles := &countingProfiles{users: map[string]*models.User{
		"user-1": {ID: "user-1", Name: "Ada", Email: "ada@example.com", Role: models.RoleTeacher},
		"user-2": {ID: "user-2", Name: "Odd", Role: models.UserRole("authenticated")},
	}}
	repo := newMemoryCacheRepo()
	svc, err := NewAuthService(profiles, NewCacheService(repo, nil, time.Minute, nil, true), nil, AuthConfig{
		JWTSecret: testSecret,
		Issuer:    "https://project.supabase.co/auth/v1",
		Audience:  "authenticated",
		Leeway:    time.Second,
	})
	require.NoError(t, err)
	return svc, profiles, repo
}

func TestValidateTokenResolvesProfileRole(t *testing.T) {
	svc, profiles, _ := newAuthFixture(t)
	ctx := context.Background()
	token := signToken(t, testSecret, "user-1", nil)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.False(t, claims.ExpiresAt.IsZero())

	_, err = svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, 1, profiles.calls)
}

func TestValidateTokenRejectsBadTokens(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	cases := map[string]string{
		"wrong secret": signToken(t, "another-secret-of-sufficient-length-123", "user-1", nil),
		"expired": signToken(t, testSecret, "user-1", func(c *models.SupabaseClaims) {
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		}),
		"wrong issuer": signToken(t, testSecret, "user-1", func(c *models.SupabaseClaims) {
			c.Issuer = "https://elsewhere.example.com"
		}),
		"wrong audience": signToken(t, testSecret, "user-1", func(c *models.SupabaseClaims) {
			c.Audience = jwt.ClaimStrings{"service_role"}
		}),
		"no expiry": signToken(t, testSecret, "user-1", func(c *models.SupabaseClaims) {
			c.ExpiresAt = nil
		}),
		"unknown subject": signToken(t, testSecret, "ghost", nil),
		"garbage":         "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(ctx, token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}

func TestValidateTokenRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.ValidateToken(context.Background(), signToken(t, testSecret, "user-2", nil))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestInvalidateProfileForcesReload(t *testing.T) {
	svc, profiles, cache := newAuthFixture(t)
	ctx := context.Background()
	token := signToken(t, testSecret, "user-1", nil)

	_, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	require.Contains(t, cache.items, "profile:user-1")

	profiles.users["user-1"].Role = models.RoleAdmin
	svc.InvalidateProfile(ctx, "user-1")

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.Equal(t, 2, profiles.calls)
}

func TestNewAuthServiceRequiresKeyMaterial(t *testing.T) {
	_, err := NewAuthService(&countingProfiles{}, nil, nil, AuthConfig{})
	assert.Error(t, err)
}
