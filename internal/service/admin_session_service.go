package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/erikwilensky/codecheck/internal/dto"
)

var (
	// ErrInvalidAdminSecret indicates the shared admin secret did not match.
	ErrInvalidAdminSecret = errors.New("invalid admin password")
	// ErrInvalidAdminToken indicates a missing, expired or forged session token.
	ErrInvalidAdminToken = errors.New("invalid admin session token")
)

const (
	adminSubject      = "admin"
	adminTokenIssuer  = "codecheck"
	defaultSessionTTL = 12 * time.Hour
)

// AdminSessionConfig holds the admin gate secrets.
type AdminSessionConfig struct {
	Password     string
	PasswordHash string
	TokenSecret  string
	TokenTTL     time.Duration
}

// AdminSessionService guards the admin surface with a single shared secret and
// short-lived HS256 session tokens.
type AdminSessionService interface {
	VerifySecret(secret string) bool
	CreateSession(ctx context.Context, req dto.AdminSessionRequest) (dto.AdminSessionResponse, error)
	ParseToken(token string) (string, error)
}

type adminSessionService struct {
	password  []byte
	hash      []byte
	secret    []byte
	ttl       time.Duration
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAdminSessionService constructs the admin gate. Without a token secret a random
// one is generated, so sessions do not survive a restart.
func NewAdminSessionService(cfg AdminSessionConfig, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) (AdminSessionService, error) {
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate admin token secret: %w", err)
		}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	return &adminSessionService{
		password:  []byte(cfg.Password),
		hash:      []byte(cfg.PasswordHash),
		secret:    secret,
		ttl:       ttl,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "admin_session_service").Logger(),
		now:       time.Now,
	}, nil
}

func (s *adminSessionService) VerifySecret(secret string) bool {
	if secret == "" {
		return false
	}
	if len(s.hash) > 0 {
		return bcrypt.CompareHashAndPassword(s.hash, []byte(secret)) == nil
	}
	if len(s.password) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(s.password, []byte(secret)) == 1
}

func (s *adminSessionService) CreateSession(ctx context.Context, req dto.AdminSessionRequest) (dto.AdminSessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AdminSessionResponse{}, err
	}
	if !s.VerifySecret(req.Password) {
		s.logger.Warn().Msg("rejected admin session request")
		return dto.AdminSessionResponse{}, ErrInvalidAdminSecret
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    adminTokenIssuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return dto.AdminSessionResponse{}, fmt.Errorf("sign admin token: %w", err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      ActivityActor{Name: adminSubject},
		Action:     "admin.session",
		EntityType: "session",
		Metadata:   map[string]interface{}{"session_id": claims.ID, "expires_at": expiresAt},
	})
	return dto.AdminSessionResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// ParseToken validates a session token and returns its subject.
func (s *adminSessionService) ParseToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidAdminToken
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithIssuer(adminTokenIssuer), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidAdminToken
	}
	if claims.Subject != adminSubject {
		return "", ErrInvalidAdminToken
	}
	return claims.Subject, nil
}
