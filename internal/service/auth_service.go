package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const profilePrefix = "profile:"

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthConfig defines how access tokens are verified.
type AuthConfig struct {
	JWTSecret  string
	JWKSURL    string
	Issuer     string
	Audience   string
	ProfileTTL time.Duration
	Leeway     time.Duration
}

// AuthService verifies Supabase access tokens and resolves the caller's
// profile role.
type AuthService struct {
	users  profileRepository
	cache  *CacheService
	logger *zap.Logger
	config AuthConfig
	jwks   *keyfunc.JWKS
	parser *jwt.Parser
}

// NewAuthService constructs an AuthService. When a JWKS URL is configured the
// key set is fetched up front and refreshed in the background.
func NewAuthService(users profileRepository, cache *CacheService, logger *zap.Logger, config AuthConfig) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.JWTSecret == "" && config.JWKSURL == "" {
		return nil, errors.New("auth: either a JWT secret or a JWKS URL is required")
	}
	if config.ProfileTTL <= 0 {
		config.ProfileTTL = 5 * time.Minute
	}

	s := &AuthService{users: users, cache: cache, logger: logger, config: config}

	var methods []string
	if config.JWTSecret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if config.JWKSURL != "" {
		jwks, err := keyfunc.Get(config.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshTimeout:    10 * time.Second,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.Warn("jwks refresh failed", zap.Error(err))
			},
		})
		if err != nil {
			return nil, fmt.Errorf("auth: load jwks: %w", err)
		}
		s.jwks = jwks
		methods = append(methods, "RS256", "ES256")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithLeeway(config.Leeway),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	s.parser = jwt.NewParser(opts...)
	return s, nil
}

// Close stops the background JWKS refresh.
func (s *AuthService) Close() {
	if s != nil && s.jwks != nil {
		s.jwks.EndBackground()
	}
}

// ValidateToken verifies the token signature and registered claims, then
// joins the subject with the role stored on the user's profile.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &models.SupabaseClaims{}, s.key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	claims, ok := token.Claims.(*models.SupabaseClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	profile, err := s.profile(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	out := &models.JWTClaims{
		UserID: profile.ID,
		Role:   profile.Role,
		Email:  profile.Email,
		Name:   profile.Name,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// InvalidateProfile drops the cached profile so the next request reloads the role.
func (s *AuthService) InvalidateProfile(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, profilePrefix+userID)
}

func (s *AuthService) key(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() == jwt.SigningMethodHS256.Alg() {
		if s.config.JWTSecret == "" {
			return nil, errors.New("hs256 tokens are not accepted")
		}
		return []byte(s.config.JWTSecret), nil
	}
	if s.jwks == nil {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.jwks.Keyfunc(token)
}

func (s *AuthService) profile(ctx context.Context, userID string) (*models.User, error) {
	key := profilePrefix + userID
	var cached models.User
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no profile for this account")
		}
		return nil, appErrors.Internal(err, "failed to load profile")
	}
	if !user.Role.Valid() {
		s.logger.Warn("profile has unknown role", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "profile role is not recognised")
	}
	s.cache.Set(ctx, key, user, s.config.ProfileTTL)
	return user, nil
}
