package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const deviceAuthPath = "/api/v1/device/auth"

// refreshMargin is how long before expiry a cached token is replaced
const refreshMargin = time.Minute

// ErrAuthenticationFailed is returned when the server rejects the device credentials
var ErrAuthenticationFailed = errors.New("device authentication failed")

// DeviceAuthRequest represents the request payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

// DeviceAuthResponse represents the response payload for device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// ErrorResponse represents an error response from the server
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TokenSource obtains device tokens from the server and caches them until
// shortly before they expire
type TokenSource struct {
	baseURL      string
	serialNumber string
	secretKey    string
	client       *http.Client
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	token    string
	expires  time.Time
	deviceID string
}

// NewTokenSource creates a token source for the server at baseURL
func NewTokenSource(baseURL, serialNumber, secretKey string, client *http.Client, logger *zap.Logger) *TokenSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serialNumber: serialNumber,
		secretKey:    secretKey,
		client:       client,
		logger:       logger,
		now:          time.Now,
	}
}

// Token returns a valid device token, authenticating when the cached one is
// missing or about to expire
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expires.IsZero() || s.now().Add(refreshMargin).Before(s.expires)) {
		return s.token, nil
	}

	resp, err := s.authenticate(ctx)
	if err != nil {
		return "", err
	}

	expires := resp.ExpiresAt
	deviceID := resp.DeviceID
	if claims, err := ParseDeviceToken(resp.Token); err != nil {
		s.logger.Warn("Device token is not a readable JWT", zap.Error(err))
	} else {
		if exp := claims.Expiry(); !exp.IsZero() {
			expires = exp
		}
		if deviceID == "" {
			deviceID = claims.DeviceID
		}
	}

	s.token = resp.Token
	s.expires = expires
	s.deviceID = deviceID

	s.logger.Info("Device authenticated",
		zap.String("deviceID", deviceID),
		zap.Time("expiresAt", expires))
	return s.token, nil
}

// Invalidate drops the cached token so the next call authenticates again
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expires = time.Time{}
}

// DeviceID returns the device ID from the last authentication
func (s *TokenSource) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *TokenSource) authenticate(ctx context.Context) (*DeviceAuthResponse, error) {
	body, err := json.Marshal(DeviceAuthRequest{SerialNumber: s.serialNumber, SecretKey: s.secretKey})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+deviceAuthPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach auth endpoint: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read auth response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrAuthenticationFailed, errResp.Error, errResp.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrAuthenticationFailed, httpResp.StatusCode)
	}

	var resp DeviceAuthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrAuthenticationFailed)
	}
	return &resp, nil
}
