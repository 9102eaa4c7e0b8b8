package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret  = errors.New("jwt secret is empty")
	ErrEmptyIssuer  = errors.New("jwt issuer is empty")
	ErrBadTTL       = errors.New("jwt ttl must be > 0")
	ErrEmptySubject = errors.New("empty subject")
)

type jwtClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService 签发和校验管理接口用的 token。本服务没有账号体系，token 由 cmd/tools/tokengen 签发。
type TokenService interface {
	Sign(subject, role string) (string, error)
	// SignWithTTL ttl <= 0 时使用默认有效期
	SignWithTTL(subject, role string, ttl time.Duration) (string, error)
	Verify(token string) (Identity, error)
}

type hs256Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewHS256Service(secret, issuer string, ttl time.Duration) (TokenService, error) {
	switch {
	case secret == "":
		return nil, ErrEmptySecret
	case issuer == "":
		return nil, ErrEmptyIssuer
	case ttl <= 0:
		return nil, ErrBadTTL
	}
	return &hs256Service{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

func (h *hs256Service) Sign(subject, role string) (string, error) {
	return h.SignWithTTL(subject, role, 0)
}

func (h *hs256Service) SignWithTTL(subject, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = h.ttl
	}
	now := time.Now()
	claims := jwtClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    h.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *hs256Service) Verify(tokenString string) (Identity, error) {
	var parsed jwtClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
	)
	if _, err := parser.ParseWithClaims(tokenString, &parsed, func(*jwt.Token) (any, error) {
		return h.secret, nil
	}); err != nil {
		return Identity{}, err
	}
	return Identity{Subject: parsed.Subject, Role: parsed.Role}, nil
}
