package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// ServiceTokenClaims identifies the calling warehouse service.
type ServiceTokenClaims struct {
	Service string `json:"svc"`
	jwt.RegisteredClaims
}
