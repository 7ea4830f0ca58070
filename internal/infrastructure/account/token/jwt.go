package token

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/proofofputt/putt-api/internal/domain/user"
	"github.com/proofofputt/putt-api/internal/usecase"
)

const defaultTTL = 24 * time.Hour

type claims struct {
	PlayerID int64  `json:"player_id"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 bearer tokens carrying player_id and email claims.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret, issuer string, ttl time.Duration) (*JWT, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &JWT{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

func (j *JWT) Issue(p user.Principal) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		PlayerID: p.PlayerID,
		Email:    p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.PlayerID, 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (j *JWT) VerifyAccessToken(_ context.Context, raw string) (user.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}

	var c claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		return user.Principal{}, fmt.Errorf("%w: %v", usecase.ErrUnauthorized, err)
	}
	if j.issuer != "" && c.Issuer != j.issuer {
		return user.Principal{}, fmt.Errorf("%w: unexpected issuer", usecase.ErrUnauthorized)
	}
	if c.ExpiresAt == nil || !c.ExpiresAt.After(j.now()) {
		return user.Principal{}, fmt.Errorf("%w: token expired", usecase.ErrUnauthorized)
	}

	if c.PlayerID <= 0 {
		return user.Principal{}, fmt.Errorf("%w: player_id claim is missing", usecase.ErrUnauthorized)
	}
	return user.Principal{PlayerID: c.PlayerID, Email: c.Email}, nil
}
