package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testProject = "earnbuddy-test"

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims firebaseClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	raw, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return raw
}

func validClaims() firebaseClaims {
	now := time.Now()
	return firebaseClaims{
		Email:   "ada@example.com",
		Name:    "Ada",
		Picture: "https://example.com/ada.png",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "uid-ada",
			Issuer:    "https://securetoken.google.com/" + testProject,
			Audience:  jwt.ClaimStrings{testProject},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestFirebaseVerifier(t *testing.T) {
	key := newSigningKey(t)
	other := newSigningKey(t)
	v := newFirebaseVerifier(testProject, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	})

	user, err := v.Verify(context.Background(), signToken(t, key, validClaims()))
	if err != nil {
		t.Fatalf("Verify valid token: %v", err)
	}
	if user.UID != "uid-ada" || user.Email != "ada@example.com" || user.Name != "Ada" {
		t.Errorf("unexpected identity: %+v", user)
	}

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"someone-else"}

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://accounts.example.com"

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := validClaims()
	noSubject.Subject = ""

	cases := map[string]string{
		"wrong audience": signToken(t, key, wrongAudience),
		"wrong issuer":   signToken(t, key, wrongIssuer),
		"expired":        signToken(t, key, expired),
		"no subject":     signToken(t, key, noSubject),
		"foreign key":    signToken(t, other, validClaims()),
		"garbage":        "not-a-token",
	}
	for name, raw := range cases {
		if _, err := v.Verify(context.Background(), raw); !errors.Is(err, errInvalidToken) {
			t.Errorf("%s: got %v, want errInvalidToken", name, err)
		}
	}
}

type stubVerifier struct {
	user *response.AuthUser
	err  error
	got  string
}

func (s *stubVerifier) Verify(_ context.Context, raw string) (*response.AuthUser, error) {
	s.got = raw
	return s.user, s.err
}

func newAuthRouter(v TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", NewAuthMiddleware(v).RequireAuth(), func(c *gin.Context) {
		u, err := response.GetAuthUser(c)
		if err != nil {
			response.ResponseError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	})
	return r
}

func TestRequireAuth_MissingToken(t *testing.T) {
	r := newAuthRouter(&stubVerifier{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	r := newAuthRouter(&stubVerifier{err: errInvalidToken})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireAuth_AttachesIdentity(t *testing.T) {
	v := &stubVerifier{user: &response.AuthUser{UID: "uid-1"}}
	r := newAuthRouter(v)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if v.got != "good-token" {
		t.Errorf("verifier got %q, want %q", v.got, "good-token")
	}
}

func TestRequireAuth_QueryTokenFallback(t *testing.T) {
	v := &stubVerifier{user: &response.AuthUser{UID: "uid-1"}}
	r := newAuthRouter(v)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me?token=ws-token", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	if v.got != "ws-token" {
		t.Errorf("verifier got %q, want %q", v.got, "ws-token")
	}
}
