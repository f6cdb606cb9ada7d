package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/surprisebag/internal/identity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents access token claims
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Caller converts the claims into a request caller.
func (c *Claims) Caller() (identity.Caller, error) {
	role, err := identity.ParseRole(c.Role)
	if err != nil {
		return identity.Caller{}, err
	}
	return identity.Caller{UserID: c.UserID, Role: role}, nil
}

// ServiceClaims identify a calling service on internal routes
type ServiceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token operations
type JWTService struct {
	secretKey          []byte
	serviceKey         []byte
	accessTokenExpiry  time.Duration
	serviceTokenExpiry time.Duration
}

// NewJWTService creates a new JWT service
func NewJWTService(secretKey, serviceKey string, accessExpiry, serviceExpiry time.Duration) *JWTService {
	return &JWTService{
		secretKey:          []byte(secretKey),
		serviceKey:         []byte(serviceKey),
		accessTokenExpiry:  accessExpiry,
		serviceTokenExpiry: serviceExpiry,
	}
}

// GenerateAccessToken creates a new access token. The returned id is the
// token's jti, used as the session cache key.
func (s *JWTService) GenerateAccessToken(userID int64, role identity.Role) (string, string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTokenExpiry)
	tokenID := uuid.NewString()

	claims := Claims{
		UserID: userID,
		Role:   role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return tokenString, tokenID, expiresAt, nil
}

// ValidateAccessToken validates an access token and returns claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := parse(tokenString, claims, s.secretKey); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateServiceToken creates a short-lived token for service-to-service calls
func (s *JWTService) GenerateServiceToken(service string) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.serviceTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   service,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.serviceKey)
}

// ValidateServiceToken validates a service token and returns the service name
func (s *JWTService) ValidateServiceToken(tokenString string) (string, error) {
	claims := &ServiceClaims{}
	if err := parse(tokenString, claims, s.serviceKey); err != nil {
		return "", err
	}
	if claims.Service == "" {
		return "", ErrInvalidToken
	}
	return claims.Service, nil
}

func parse(tokenString string, claims jwt.Claims, key []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return key, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ServiceTokenSource mints service tokens for one calling service.
type ServiceTokenSource struct {
	jwt     *JWTService
	service string
}

func NewServiceTokenSource(jwt *JWTService, service string) *ServiceTokenSource {
	return &ServiceTokenSource{jwt: jwt, service: service}
}

func (s *ServiceTokenSource) Token() (string, error) {
	return s.jwt.GenerateServiceToken(s.service)
}
