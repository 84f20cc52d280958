// Package utils provides helpers for issuing and reading actor tokens.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// ActorClaims is the payload of an actor token. sub is the actor id.
type ActorClaims struct {
	Role         model.Role `json:"role"`
	RestaurantID string     `json:"restaurant_id"`
	TableID      string     `json:"table_id,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessToken builds and signs an HS256 JWT for actor, valid for ttl.
func NewAccessToken(secret string, actor model.Actor, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := ActorClaims{
		Role:         actor.Role,
		RestaurantID: actor.RestaurantID,
		TableID:      actor.TableID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// ParseAccessToken verifies raw and returns the actor it names.
func ParseAccessToken(secret, raw string) (model.Actor, error) {
	var claims ActorClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return model.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	actor := model.Actor{
		ID:           claims.Subject,
		Role:         claims.Role,
		RestaurantID: claims.RestaurantID,
		TableID:      claims.TableID,
	}
	if actor.ID == "" || !actor.Role.Valid() {
		return model.Actor{}, fmt.Errorf("%w: missing subject or unknown role", ErrInvalidToken)
	}
	if actor.Role == model.RoleGuest && actor.TableID == "" {
		return model.Actor{}, fmt.Errorf("%w: guest token without table", ErrInvalidToken)
	}
	return actor, nil
}
