package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type reviewerClaims struct {
	jwt.RegisteredClaims
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// TokenService issues and validates HS256 reviewer tokens.
type TokenService struct {
	signingKey  []byte
	issuer      string
	expiryHours int
}

func NewTokenService(signingKey, issuer string, expiryHours int) *TokenService {
	return &TokenService{
		signingKey:  []byte(signingKey),
		issuer:      issuer,
		expiryHours: expiryHours,
	}
}

func (s *TokenService) CreateToken(identity *Identity) (string, error) {
	if identity == nil || identity.Subject == "" {
		return "", ErrSubjectEmpty
	}

	now := time.Now()
	claims := reviewerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expiryHours) * time.Hour)),
		},
		Name:  identity.Name,
		Roles: identity.Roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

func (s *TokenService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &reviewerClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*reviewerClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		Subject: claims.Subject,
		Name:    claims.Name,
		Roles:   claims.Roles,
	}, nil
}
