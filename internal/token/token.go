// Package token issues and verifies the signed access/refresh tokens used
// by the API.  Tokens are self-contained HS256 JWTs; verification never
// touches the database.  Revocation of refresh tokens happens through the
// sessions table, access tokens simply expire.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the two token flavours carried in the "kind" claim.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired is returned when the token's exp claim is in the past.
	ErrExpired = errors.New("token expired")
	// ErrWrongKind is returned when a valid token of the other kind is
	// presented (e.g. a refresh token on a protected route).
	ErrWrongKind = errors.New("wrong token kind")
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens.  The zero value is not usable; build
// one with New.  The clock is injectable so tests can move time forward.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// New builds a Service with the given signing secret and TTL policy.
func New(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the service clock.  Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueAccess signs a short-lived access token for the subject.
func (s *Service) IssueAccess(subject string) (string, Claims, error) {
	return s.issue(subject, KindAccess, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the subject.
func (s *Service) IssueRefresh(subject string) (string, Claims, error) {
	return s.issue(subject, KindRefresh, s.refreshTTL)
}

func (s *Service) issue(subject string, kind Kind, ttl time.Duration) (string, Claims, error) {
	now := s.now().UTC()
	exp := now.Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			// jti makes every token unique even within one clock second, so
			// rotated refresh tokens never collide in the sessions table.
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, Claims{Subject: subject, Kind: kind, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify recomputes the signature and validates expiry, then checks the
// token kind against expected.  The HMAC comparison inside the jwt library
// is constant time.  Expired tokens are rejected regardless of any other
// claim.
func (s *Service) Verify(raw string, expected Kind) (Claims, error) {
	var claims jwtClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	if expected != "" && Kind(claims.Kind) != expected {
		return Claims{}, ErrWrongKind
	}
	c := Claims{Subject: claims.Subject, Kind: Kind(claims.Kind)}
	if claims.IssuedAt != nil {
		c.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c, nil
}

// HashRefresh returns the SHA‑256 hash of a raw refresh token as a hex
// string.  Only the hash is stored in the sessions table so database leaks
// cannot be replayed as refresh tokens.
func HashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
