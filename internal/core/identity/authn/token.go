package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/syntrixbase/daybook/internal/core/identity"
	"github.com/syntrixbase/daybook/internal/core/identity/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the profile claims carried by an owner token.
type Claims struct {
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService verifies owner tokens and, for development and tests,
// issues them.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

func NewTokenService(cfg config.AuthNConfig) (*TokenService, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("token secret is required")
	}
	return &TokenService{
		secret: []byte(cfg.TokenSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		leeway: cfg.Leeway,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the owner.
func (s *TokenService) Issue(o identity.Owner) (string, error) {
	if _, err := identity.RequireID(&o); err != nil {
		return "", err
	}
	now := s.now()
	claims := Claims{
		DisplayName: o.DisplayName,
		Email:       o.Email,
		PhotoURL:    o.PhotoURL,
		Role:        o.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   o.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken verifies the signature and time claims and returns the owner.
func (s *TokenService) ValidateToken(tokenString string) (*identity.Owner, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &identity.Owner{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		PhotoURL:    claims.PhotoURL,
		Role:        claims.Role,
	}, nil
}
