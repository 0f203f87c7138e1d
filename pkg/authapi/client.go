// Package authapi is the HTTP client for the AgroiSync marketplace auth API.
// Every endpoint returns a {success, message, data} envelope; this client
// normalizes transport failures to ErrNetwork and business rejections to
// *APIError so callers never see a raw *url.Error.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the marketplace auth API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates an auth API client with a sane default timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// do performs one request. A non-empty token is attached as a Bearer
// Authorization header. The body, when non-nil, is JSON encoded.
func (c *Client) do(ctx context.Context, method, path, token string, body any) (*Envelope, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// A body that is not the expected envelope counts as a transport
		// failure: there is no server message worth surfacing.
		return nil, fmt.Errorf("%w: malformed response body", ErrNetwork)
	}

	if !env.Success {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	return &env, nil
}

// decode unmarshals the envelope's data payload into target.
func decode(env *Envelope, target any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: missing data payload", ErrNetwork)
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("%w: malformed data payload", ErrNetwork)
	}
	return nil
}

// Login submits credentials. The response either carries the session or a
// two-factor challenge (Requires2FA with TempToken/UserID).
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decode(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP completes a pending two-factor challenge.
func (c *Client) VerifyOTP(ctx context.Context, userID, tempToken, code string) (*SessionResponse, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"userId":    userID,
		"tempToken": tempToken,
		"otpCode":   code,
	})
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decode(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendOTP re-triggers delivery of a one-time code for a pending challenge.
func (c *Client) SendOTP(ctx context.Context, userID, tempToken string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/send-otp", "", map[string]string{
		"userId":    userID,
		"tempToken": tempToken,
	})
	return err
}

// Register creates an account and returns an established session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error) {
	env, err := c.do(ctx, http.MethodPost, "/api/auth/register", "", req)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decode(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/forgot-password", "", map[string]string{
		"email": email,
	})
	return err
}

// ResetPassword consumes a reset token and sets a new password.
func (c *Client) ResetPassword(ctx context.Context, token, password, confirmPassword string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/reset-password", "", map[string]string{
		"token":           token,
		"password":        password,
		"confirmPassword": confirmPassword,
	})
	return err
}

// VerifyEmail consumes an email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/verify-email", "", map[string]string{
		"token": token,
	})
	return err
}

// ResendVerification re-sends the verification email for an address.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/resend-verification", "", map[string]string{
		"email": email,
	})
	return err
}

// Profile fetches the account belonging to token. Used for silent
// re-authentication from a persisted token.
func (c *Client) Profile(ctx context.Context, token string) (*User, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/auth/profile", token, nil)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decode(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile applies a partial profile change and returns the updated record.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*User, error) {
	env, err := c.do(ctx, http.MethodPut, "/api/auth/profile", token, update)
	if err != nil {
		return nil, err
	}

	var out User
	if err := decode(env, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
