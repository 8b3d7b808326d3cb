package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-cafe/internal/common"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// Service mints and validates session tokens for storefront customers.
// Identity comes from the chat platform hosting the mini app; there are
// no passwords here, the platform already authenticated the user.
type Service struct {
	secret       []byte
	sessionTTL   time.Duration
	now          func() time.Time
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	issuer       string
	audience     string
	clockSkew    time.Duration
	adminKeyHash string
}

// Config configures the auth service.
type Config struct {
	Secret          string
	SessionTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
	AdminKeyHash    string
}

// Session bundles the token material returned after a session exchange.
type Session struct {
	UserID      string    `json:"userId"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	sessionTTL := cfg.SessionTokenTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-cafe"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "cafe-miniapp"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		now:        time.Now,
		signer:     jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:       issuer,
		audience:     audience,
		clockSkew:    clockSkew,
		adminKeyHash: strings.TrimSpace(cfg.AdminKeyHash),
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// IssueSession exchanges a platform user id for a signed session token.
func (s *Service) IssueSession(platformUserID string) (Session, error) {
	userID := strings.TrimSpace(platformUserID)
	if userID == "" {
		return Session{}, common.NewAppError("VALIDATION_ERROR", "platform user id is required", httpStatusBadRequest, nil)
	}

	now := s.now()
	expiresAt := now.Add(s.sessionTTL)
	builder := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt)
	token, err := builder.Build()
	if err != nil {
		return Session{}, fmt.Errorf("build session token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return Session{}, fmt.Errorf("sign session token: %w", err)
	}

	return Session{
		UserID:      userID,
		AccessToken: string(signed),
		ExpiresAt:   expiresAt,
	}, nil
}

// ParseAccessToken validates a session token and returns the subject (user ID).
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", httpStatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	return parsed.Subject(), nil
}

// VerifyAdminKey compares a presented admin key against the configured
// argon2id hash. An empty configured hash disables all admin access.
func (s *Service) VerifyAdminKey(key string) error {
	if s.adminKeyHash == "" {
		return common.NewAppError("FORBIDDEN", "admin access is not configured", httpStatusForbidden, nil)
	}
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return common.NewAppError("UNAUTHORIZED", "missing admin key", httpStatusUnauthorized, nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(trimmed, s.adminKeyHash)
	if err != nil || !ok {
		return common.NewAppError("UNAUTHORIZED", "invalid admin key", httpStatusUnauthorized, err)
	}
	return nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

const httpStatusBadRequest = 400
const httpStatusUnauthorized = 401
const httpStatusForbidden = 403
