package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/surprisebag/internal/identity"
)

func newTestJWTService() *JWTService {
	return NewJWTService(
		"test-secret-key-for-testing-purposes",
		"test-service-secret",
		15*time.Minute,
		time.Minute,
	)
}

func TestJWTService_GenerateAccessToken_Success(t *testing.T) {
	service := newTestJWTService()

	token, tokenID, expiresAt, err := service.GenerateAccessToken(42, identity.RoleMerchant)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, tokenID)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	service := newTestJWTService()

	token, tokenID, _, err := service.GenerateAccessToken(42, identity.RoleAdmin)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, tokenID, claims.ID)

	caller, err := claims.Caller()
	require.NoError(t, err)
	assert.Equal(t, identity.Caller{UserID: 42, Role: identity.RoleAdmin}, caller)
}

func TestClaims_Caller_UnknownRole(t *testing.T) {
	claims := &Claims{UserID: 1, Role: "customer"}

	_, err := claims.Caller()

	assert.ErrorIs(t, err, identity.ErrUnknownRole)
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := NewJWTService("test-secret", "svc", 1*time.Millisecond, time.Minute)

	token, _, _, err := service.GenerateAccessToken(1, identity.RoleUser)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_Invalid(t *testing.T) {
	service := newTestJWTService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTService_ValidateAccessToken_WrongAlgorithm(t *testing.T) {
	service := newTestJWTService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Role: "admin"})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

// ============================================
// Service Token Tests
// ============================================

func TestJWTService_ServiceToken_RoundTrip(t *testing.T) {
	service := newTestJWTService()

	token, err := service.GenerateServiceToken("payment-service")
	require.NoError(t, err)

	name, err := service.ValidateServiceToken(token)

	require.NoError(t, err)
	assert.Equal(t, "payment-service", name)
}

func TestJWTService_AccessTokenIsNotServiceToken(t *testing.T) {
	service := newTestJWTService()

	token, _, _, err := service.GenerateAccessToken(1, identity.RoleSuperAdmin)
	require.NoError(t, err)

	name, err := service.ValidateServiceToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Empty(t, name)
}

func TestJWTService_ServiceToken_WrongSecret(t *testing.T) {
	issuer := NewJWTService("a", "secret-1", time.Minute, time.Minute)
	verifier := NewJWTService("a", "secret-2", time.Minute, time.Minute)

	token, err := issuer.GenerateServiceToken("payment-service")
	require.NoError(t, err)

	_, err = verifier.ValidateServiceToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestServiceTokenSource_Token(t *testing.T) {
	service := newTestJWTService()
	source := NewServiceTokenSource(service, "order-service")

	token, err := source.Token()
	require.NoError(t, err)

	name, err := service.ValidateServiceToken(token)
	require.NoError(t, err)
	assert.Equal(t, "order-service", name)
}
