package room

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type IssueGuestTokenParams struct {
	Username string
}

type IssueGuestTokenResponse struct {
	Token  string
	UserId string
}

// IssueGuestToken signs a short-lived token for an anonymous viewer. Stands
// in for an external identity provider; the gatekeeper only ever verifies.
func (s service) IssueGuestToken(ctx context.Context, params *IssueGuestTokenParams) (IssueGuestTokenResponse, error) {
	userId := uuid.NewString()
	now := time.Now()

	claims := Claims{
		Username: params.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssueGuestTokenResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return IssueGuestTokenResponse{
		Token:  token,
		UserId: userId,
	}, nil
}

// ParseToken verifies signature and expiry and returns the identity claims.
func (s service) ParseToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}
