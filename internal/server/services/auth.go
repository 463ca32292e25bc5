package services

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/server/auth"
	sc "github.com/dmitrijs2005/gophsync/internal/server/config"
)

// AuthService issues access tokens to devices that know the shared device
// secret.
type AuthService struct {
	secretKey    []byte
	deviceSecret string
	validity     time.Duration
}

func NewAuthService(c *sc.Config) *AuthService {
	return &AuthService{
		secretKey:    []byte(c.SecretKey),
		deviceSecret: c.DeviceSecret,
		validity:     c.AccessTokenValidityDuration,
	}
}

// Authenticate returns a signed access token for deviceID. A wrong secret
// yields common.ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, deviceID, secret string) (string, error) {
	if deviceID == "" {
		return "", common.Invalid("device_id", "is required")
	}
	if s.deviceSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.deviceSecret)) != 1 {
		return "", common.ErrUnauthorized
	}
	return auth.GenerateToken(deviceID, s.secretKey, s.validity)
}
