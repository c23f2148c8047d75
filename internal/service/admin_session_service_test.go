package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erikwilensky/codecheck/internal/dto"
)

func TestAdminSessionVerifySecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	plain, err := NewAdminSessionService(AdminSessionConfig{Password: "letmein"}, newValidator(), nil, testLogger())
	require.NoError(t, err)
	hashed, err := NewAdminSessionService(AdminSessionConfig{Password: "ignored", PasswordHash: string(hash)}, newValidator(), nil, testLogger())
	require.NoError(t, err)
	empty, err := NewAdminSessionService(AdminSessionConfig{}, newValidator(), nil, testLogger())
	require.NoError(t, err)

	require.True(t, plain.VerifySecret("letmein"))
	require.False(t, plain.VerifySecret("letmein "))
	require.False(t, plain.VerifySecret(""))
	require.True(t, hashed.VerifySecret("hashed-secret"))
	require.False(t, hashed.VerifySecret("ignored"))
	require.False(t, empty.VerifySecret("anything"))
}

func TestAdminSessionIssuesAndParsesTokens(t *testing.T) {
	f := newFixture(t)
	svc, err := NewAdminSessionService(AdminSessionConfig{Password: "letmein", TokenSecret: "signing-key", TokenTTL: time.Hour}, newValidator(), f.activityService(), testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.CreateSession(ctx, dto.AdminSessionRequest{Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidAdminSecret)
	_, err = svc.CreateSession(ctx, dto.AdminSessionRequest{})
	require.Error(t, err)

	session, err := svc.CreateSession(ctx, dto.AdminSessionRequest{Password: "letmein"})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	subject, err := svc.ParseToken(" " + session.Token + " ")
	require.NoError(t, err)
	require.Equal(t, "admin", subject)

	var count int64
	require.NoError(t, f.db.Table("activity_logs").Where("action = ?", "admin.session").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestAdminSessionRejectsBadTokens(t *testing.T) {
	svc, err := NewAdminSessionService(AdminSessionConfig{Password: "letmein", TokenSecret: "signing-key", TokenTTL: time.Minute}, newValidator(), nil, testLogger())
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    "codecheck",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other-key"))
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    "codecheck",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("signing-key"))
	require.NoError(t, err)

	wrongSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "student",
		Issuer:    "codecheck",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("signing-key"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":         "",
		"garbage":       "not-a-token",
		"forged":        forged,
		"expired":       expired,
		"wrong subject": wrongSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ParseToken(token)
			require.ErrorIs(t, err, ErrInvalidAdminToken)
		})
	}
}
