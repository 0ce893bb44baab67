package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "casedocs/pkg/domain-errors"
)

const fileAudienceSuffix = "/files"

// Claims represents the JWT claims for bearer access tokens.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 tokens for API callers and for
// signed file retrieval URLs. The two use distinct audiences.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// GenerateAccessToken issues a bearer token. The service never logs callers in;
// this exists for operators and tests.
func (s *JWTService) GenerateAccessToken(subject string, roles []string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{
		Roles:            roles,
		RegisteredClaims: s.registered(subject, s.audience, expiresIn),
	})
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, s.audience)
}

// SignFile issues a retrieval token bound to one object key.
func (s *JWTService) SignFile(key string, expiresIn time.Duration) (string, error) {
	return s.sign(Claims{RegisteredClaims: s.registered(key, s.audience+fileAudienceSuffix, expiresIn)})
}

// VerifyFile checks that tokenString is a live retrieval token for key.
func (s *JWTService) VerifyFile(tokenString, key string) error {
	claims, err := s.parse(tokenString, s.audience+fileAudienceSuffix)
	if err != nil {
		return err
	}
	if claims.Subject != key {
		return dErrors.New(dErrors.CodeForbidden, "token does not grant this file")
	}
	return nil
}

func (s *JWTService) registered(subject, audience string, expiresIn time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		Audience:  []string{audience},
		ID:        uuid.NewString(),
	}
}

func (s *JWTService) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (s *JWTService) parse(tokenString, audience string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
