package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
	ErrRequestMismatch    = errors.New("token request id does not match")
)

// Claims embed the capability an action token grants: the right for one
// carrier to accept or reject one request, for a short window.
type Claims struct {
	RequestID string `json:"request_id"`
	CarrierID string `json:"carrier_id"`
	jwtlib.RegisteredClaims
}

// Manager issues and validates the signed tokens sent in accept/reject
// email links, so a carrier can act without an authenticated session.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	s := strings.TrimSpace(secret)
	if s == "" {
		panic("token: empty secret key")
	}
	return &Manager{secret: []byte(s), ttl: ttl}
}

// Issue returns a signed token binding requestID to carrierID.
func (m *Manager) Issue(requestID, carrierID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RequestID: requestID,
		CarrierID: carrierID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "RequestApproval",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(m.ttl)),
		},
	}
	tkn := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return tkn.SignedString(m.secret)
}

// Validate checks signature, expiry, and that the token was issued for
// requestID. On success it returns the embedded carrier id, which becomes
// the acting user for the normal authorization path.
func (m *Manager) Validate(tokenString, requestID string) (string, error) {
	parser := jwtlib.NewParser(jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	tkn, err := parser.ParseWithClaims(tokenString, claims, func(t *jwtlib.Token) (any, error) {
		if t.Method != jwtlib.SigningMethodHS256 {
			return nil, ErrInvalidSigningAlgo
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !tkn.Valid {
		return "", errors.New("invalid token")
	}
	if claims.RequestID != requestID {
		return "", ErrRequestMismatch
	}
	return claims.CarrierID, nil
}
