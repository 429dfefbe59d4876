package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintServiceToken issues a short-lived JWT naming the calling service.
func MintServiceToken(cfg config.JWTConfig, now time.Time, service string) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	service = strings.TrimSpace(service)
	if !config.IsValidServiceKind(service) {
		return "", fmt.Errorf("invalid service %q", service)
	}

	claims := ServiceTokenClaims{
		Service: strings.ToLower(service),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   strings.ToLower(service),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL())),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseServiceToken validates the JWT string and returns typed claims.
func ParseServiceToken(cfg config.JWTConfig, tokenString string) (*ServiceTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &ServiceTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !config.IsValidServiceKind(claims.Service) {
		return nil, fmt.Errorf("unknown service claim %q", claims.Service)
	}

	return claims, nil
}

// TokenSource mints bearer tokens for outgoing calls made by one service.
type TokenSource struct {
	cfg     config.JWTConfig
	service string
	now     func() time.Time
}

func NewTokenSource(cfg config.JWTConfig, service string) *TokenSource {
	return &TokenSource{cfg: cfg, service: service, now: time.Now}
}

// Token returns a freshly minted service token.
func (s *TokenSource) Token() (string, error) {
	return MintServiceToken(s.cfg, s.now().UTC(), s.service)
}
