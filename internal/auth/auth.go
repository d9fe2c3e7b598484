// Package auth implements the auth keystore from spec.md §4.N: signing and
// verifying a caller-identity claim stamped onto internal RPC calls, using
// golang-jwt/jwt/v5 HMAC-SHA256 with a single configured secret (rotation
// is out of scope). Grounded on the teacher's internal/api/server.go
// makeToken/authMiddleware pair, generalised from a user-session token to
// an inter-service caller claim.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ecommerce-core/internal/apperror"
)

// Keystore signs and verifies caller-identity claims with one HMAC secret.
type Keystore struct {
	secret []byte
}

func New(secret []byte) *Keystore {
	return &Keystore{secret: secret}
}

// Sign issues a token asserting callerID, valid for ttl, matching the
// teacher's jwt.MapClaims{"sub", "role", "exp"} shape but with a
// caller_id claim standing in for the RPC caller's service identity.
func (k *Keystore) Sign(callerID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"caller_id": callerID,
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(ttl).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", apperror.Wrap(apperror.PermissionDenied, "sign caller claim", err)
	}
	return tok, nil
}

// Verify parses and validates tokenStr, rejecting anything not signed with
// HMAC (the teacher's signing-method check in authMiddleware), and returns
// the caller_id claim.
func (k *Keystore) Verify(tokenStr string) (callerID string, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperror.New(apperror.PermissionDenied, "unexpected signing method")
		}
		return k.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperror.Wrap(apperror.PermissionDenied, "invalid caller token", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperror.New(apperror.PermissionDenied, "invalid caller claims")
	}
	callerID, _ = claims["caller_id"].(string)
	if callerID == "" {
		return "", apperror.New(apperror.PermissionDenied, "caller token missing caller_id")
	}
	return callerID, nil
}
