package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agroisync/gateway/pkg/authapi"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeEnvelope(w http.ResponseWriter, success bool, message string, data any) {
	var raw json.RawMessage
	if data != nil {
		raw, _ = json.Marshal(data)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(authapi.Envelope{
		Success: success,
		Message: message,
		Data:    raw,
	})
}

func newTestManager(t *testing.T, handler http.HandlerFunc) (*Manager, *MemoryStorage) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	storage := NewMemoryStorage()
	return NewManager(authapi.NewClient(server.URL), storage, discardLogger()), storage
}

func demoUser() *authapi.User {
	return &authapi.User{
		ID:    "u-1",
		Name:  "Demo User",
		Email: "demo@agroisync.com",
		Role:  "user",
	}
}

func TestLogin(t *testing.T) {
	t.Run("success establishes user and token together", func(t *testing.T) {
		m, storage := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/auth/login", r.URL.Path)
			writeEnvelope(w, true, "", authapi.LoginResponse{
				User:  demoUser(),
				Token: "tok-123",
			})
		})

		res := m.Login(context.Background(), "demo@agroisync.com", "demo123")
		require.True(t, res.Success)
		require.False(t, res.Requires2FA)

		require.True(t, m.IsAuthenticated())
		require.NotNil(t, m.User())
		require.Equal(t, "tok-123", m.Token())
		require.Nil(t, m.Pending())
		require.False(t, m.Loading())
		require.Empty(t, m.LastError())

		persisted, err := storage.Load()
		require.NoError(t, err)
		require.Equal(t, "tok-123", persisted)
	})

	t.Run("business rejection surfaces the server message verbatim", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			writeEnvelope(w, false, "Invalid email or password", nil)
		})

		res := m.Login(context.Background(), "demo@agroisync.com", "wrong")
		require.False(t, res.Success)
		require.Equal(t, "Invalid email or password", res.Message)
		require.Equal(t, "Invalid email or password", m.LastError())

		// Neither side of the pair may be set after a failure.
		require.Nil(t, m.User())
		require.Empty(t, m.Token())
		require.False(t, m.IsAuthenticated())
	})

	t.Run("network failure maps to the generic fallback", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		client := authapi.NewClient(server.URL)
		server.Close() // every request now fails at the transport level

		m := NewManager(client, NewMemoryStorage(), discardLogger())

		res := m.Login(context.Background(), "demo@agroisync.com", "demo123")
		require.False(t, res.Success)
		require.Equal(t, "Unable to sign in. Please try again.", res.Message)
		require.False(t, m.IsAuthenticated())
	})

	t.Run("a new attempt clears the previous error", func(t *testing.T) {
		fail := true
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			if fail {
				writeEnvelope(w, false, "Invalid email or password", nil)
				return
			}
			writeEnvelope(w, true, "", authapi.LoginResponse{User: demoUser(), Token: "tok-123"})
		})

		_ = m.Login(context.Background(), "demo@agroisync.com", "wrong")
		require.NotEmpty(t, m.LastError())

		fail = false
		res := m.Login(context.Background(), "demo@agroisync.com", "demo123")
		require.True(t, res.Success)
		require.Empty(t, m.LastError())
	})
}

func TestTwoFactorFlow(t *testing.T) {
	newChallengeServer := func(t *testing.T, acceptCode string) *Manager {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/api/auth/login":
				writeEnvelope(w, true, "", authapi.LoginResponse{
					Requires2FA: true,
					TempToken:   "temp-abc",
					UserID:      "u-1",
				})
			case "/api/auth/verify-otp":
				var req map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				require.Equal(t, "u-1", req["userId"])
				require.Equal(t, "temp-abc", req["tempToken"])

				if req["otpCode"] != acceptCode {
					w.WriteHeader(http.StatusUnauthorized)
					writeEnvelope(w, false, "Invalid verification code", nil)
					return
				}
				writeEnvelope(w, true, "", authapi.SessionResponse{
					User:  demoUser(),
					Token: "tok-2fa",
				})
			case "/api/auth/send-otp":
				writeEnvelope(w, true, "", map[string]string{"status": "sent"})
			default:
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
		})
		return m
	}

	t.Run("challenge holds the session back until verified", func(t *testing.T) {
		m := newChallengeServer(t, "123456")

		res := m.Login(context.Background(), "2fa@agroisync.com", "demo123")
		require.True(t, res.Success)
		require.True(t, res.Requires2FA)

		// Pending challenge and authenticated session are mutually exclusive.
		require.NotNil(t, m.Pending())
		require.False(t, m.IsAuthenticated())
		require.Nil(t, m.User())
		require.Empty(t, m.Token())

		res = m.Verify2FA(context.Background(), "123456")
		require.True(t, res.Success)
		require.True(t, m.IsAuthenticated())
		require.Nil(t, m.Pending())
	})

	t.Run("wrong code keeps the challenge for a retry", func(t *testing.T) {
		m := newChallengeServer(t, "123456")
		_ = m.Login(context.Background(), "2fa@agroisync.com", "demo123")

		res := m.Verify2FA(context.Background(), "000000")
		require.False(t, res.Success)
		require.Equal(t, "Invalid verification code", res.Message)
		require.NotNil(t, m.Pending())
		require.False(t, m.IsAuthenticated())

		res = m.Verify2FA(context.Background(), "123456")
		require.True(t, res.Success)
		require.True(t, m.IsAuthenticated())
	})

	t.Run("verify without a pending challenge fails locally", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})

		res := m.Verify2FA(context.Background(), "123456")
		require.False(t, res.Success)
		require.NotEmpty(t, res.Message)
	})

	t.Run("send otp leaves session state untouched", func(t *testing.T) {
		m := newChallengeServer(t, "123456")
		_ = m.Login(context.Background(), "2fa@agroisync.com", "demo123")

		res := m.SendOTP(context.Background())
		require.True(t, res.Success)
		require.NotNil(t, m.Pending())
		require.False(t, m.IsAuthenticated())
	})
}

func TestLogout(t *testing.T) {
	m, storage := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, true, "", authapi.LoginResponse{User: demoUser(), Token: "tok-123"})
	})

	_ = m.Login(context.Background(), "demo@agroisync.com", "demo123")
	require.True(t, m.IsAuthenticated())

	route := m.Logout()
	require.Equal(t, "/", route)
	require.False(t, m.IsAuthenticated())
	require.Nil(t, m.User())
	require.Empty(t, m.Token())
	require.Nil(t, m.Pending())

	persisted, err := storage.Load()
	require.NoError(t, err)
	require.Empty(t, persisted)

	// Logging out twice is a no-op with the same destination.
	require.Equal(t, "/", m.Logout())
}

func signedJWT(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestRestore(t *testing.T) {
	t.Run("valid persisted token re-authenticates silently", func(t *testing.T) {
		m, storage := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/auth/profile", r.URL.Path)
			require.Equal(t, "Bearer tok-restore", r.Header.Get("Authorization"))
			writeEnvelope(w, true, "", demoUser())
		})
		require.NoError(t, storage.Save("tok-restore"))

		m.Restore(context.Background())
		require.True(t, m.IsAuthenticated())
		require.Equal(t, "tok-restore", m.Token())
		require.Empty(t, m.LastError())
	})

	t.Run("rejected token clears the slot without surfacing an error", func(t *testing.T) {
		m, storage := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			writeEnvelope(w, false, "Invalid or expired token", nil)
		})
		require.NoError(t, storage.Save("tok-stale"))

		m.Restore(context.Background())
		require.False(t, m.IsAuthenticated())
		require.Empty(t, m.LastError())

		persisted, err := storage.Load()
		require.NoError(t, err)
		require.Empty(t, persisted)
	})

	t.Run("expired jwt is discarded without a network call", func(t *testing.T) {
		calls := 0
		m, storage := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeEnvelope(w, true, "", demoUser())
		})
		require.NoError(t, storage.Save(signedJWT(t, time.Now().Add(-time.Hour))))

		m.Restore(context.Background())
		require.False(t, m.IsAuthenticated())
		require.Zero(t, calls)

		persisted, err := storage.Load()
		require.NoError(t, err)
		require.Empty(t, persisted)
	})

	t.Run("unexpired jwt still goes through the profile check", func(t *testing.T) {
		calls := 0
		m, storage := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			writeEnvelope(w, true, "", demoUser())
		})
		require.NoError(t, storage.Save(signedJWT(t, time.Now().Add(time.Hour))))

		m.Restore(context.Background())
		require.True(t, m.IsAuthenticated())
		require.Equal(t, 1, calls)
	})

	t.Run("empty slot is a no-op", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		m.Restore(context.Background())
		require.False(t, m.IsAuthenticated())
	})
}

func TestRegister(t *testing.T) {
	t.Run("success commits the session and flags verification", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/auth/register", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			writeEnvelope(w, true, "", authapi.SessionResponse{
				User:                      demoUser(),
				Token:                     "tok-new",
				RequiresEmailVerification: true,
			})
		})

		res := m.Register(context.Background(), authapi.RegisterRequest{
			Name:     "Demo User",
			Email:    "demo@agroisync.com",
			Password: "Str0ng!Passw0rd",
			Role:     "buyer",
		})
		require.True(t, res.Success)
		require.True(t, res.RequiresEmailVerification)
		require.True(t, m.IsAuthenticated())
	})

	t.Run("rejection keeps the session empty", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			writeEnvelope(w, false, "An account with this email already exists", nil)
		})

		res := m.Register(context.Background(), authapi.RegisterRequest{Email: "demo@agroisync.com"})
		require.False(t, res.Success)
		require.Equal(t, "An account with this email already exists", res.Message)
		require.False(t, m.IsAuthenticated())
	})
}

func TestUpdateProfile(t *testing.T) {
	t.Run("replaces the stored user on success", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/api/auth/login":
				writeEnvelope(w, true, "", authapi.LoginResponse{User: demoUser(), Token: "tok-123"})
			case r.URL.Path == "/api/auth/profile" && r.Method == http.MethodPut:
				updated := demoUser()
				updated.Name = "Renamed"
				writeEnvelope(w, true, "", updated)
			default:
				t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
			}
		})

		_ = m.Login(context.Background(), "demo@agroisync.com", "demo123")

		name := "Renamed"
		res := m.UpdateProfile(context.Background(), authapi.ProfileUpdate{Name: &name})
		require.True(t, res.Success)
		require.Equal(t, "Renamed", m.User().Name)
		require.Equal(t, "tok-123", m.Token())
	})

	t.Run("requires an authenticated session", func(t *testing.T) {
		m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})

		name := "Renamed"
		res := m.UpdateProfile(context.Background(), authapi.ProfileUpdate{Name: &name})
		require.False(t, res.Success)
	})
}

func TestStatelessOperations(t *testing.T) {
	m, _ := newTestManager(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/forgot-password",
			"/api/auth/reset-password",
			"/api/auth/verify-email",
			"/api/auth/resend-verification":
			writeEnvelope(w, true, "", map[string]string{"status": "ok"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	require.True(t, m.ForgotPassword(context.Background(), "demo@agroisync.com").Success)
	require.True(t, m.ResetPassword(context.Background(), "tok", "Str0ng!Passw0rd", "Str0ng!Passw0rd").Success)
	require.True(t, m.VerifyEmail(context.Background(), "tok").Success)
	require.True(t, m.ResendVerification(context.Background(), "demo@agroisync.com").Success)

	// None of these touch the session pair.
	require.False(t, m.IsAuthenticated())
	require.Nil(t, m.Pending())
}
