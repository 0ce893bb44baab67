package jwttoken

import (
	"casedocs/pkg/platform/strings"
	"casedocs/pkg/requestcontext"
)

func ToPrincipal(claims *Claims) requestcontext.Principal {
	return requestcontext.Principal{
		ID:    claims.Subject,
		Roles: strings.DedupeAndTrimLower(claims.Roles),
	}
}

// PrincipalValidator adapts JWTService to the auth middleware.
type PrincipalValidator struct {
	service *JWTService
}

func NewPrincipalValidator(service *JWTService) *PrincipalValidator {
	return &PrincipalValidator{service: service}
}

func (a *PrincipalValidator) ValidateToken(tokenString string) (requestcontext.Principal, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return requestcontext.Principal{}, err
	}
	return ToPrincipal(claims), nil
}
