package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in a device token issued by the server
type JWTClaims struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id,omitempty"`
	Role     string `json:"role"` // "device" or "user"
	jwt.RegisteredClaims
}

// ErrNotDeviceToken is returned for tokens not issued to a device
var ErrNotDeviceToken = errors.New("token is not a device token")

// ParseDeviceToken reads the claims of a device token without verifying the
// signature. The device cannot hold the server secret; it only needs the
// expiry to decide when to refresh.
func ParseDeviceToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse device token: %w", err)
	}
	if claims.Role != "" && claims.Role != "device" {
		return nil, fmt.Errorf("%w: role %q", ErrNotDeviceToken, claims.Role)
	}
	return claims, nil
}

// Expiry returns the token expiry, zero when the token carries none
func (c *JWTClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
