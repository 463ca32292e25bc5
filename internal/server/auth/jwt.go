// Package auth issues and verifies the HS256 access tokens devices present
// to the replica server.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the authenticated device.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID string
}

func GenerateToken(deviceID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
			Subject:   deviceID,
		},
		DeviceID: deviceID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetDeviceIDFromToken validates tokenString and returns its device id.
// Expired tokens yield common.ErrTokenExpired, anything else that fails to
// verify matches common.ErrInvalidToken.
func GetDeviceIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.DeviceID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.DeviceID, nil
}
