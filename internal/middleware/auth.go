package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/earnbuddy/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultFirebaseJWKSURL publishes the keys Firebase signs ID tokens with.
const DefaultFirebaseJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

var errInvalidToken = errors.New("invalid or expired token")

// TokenVerifier turns a raw bearer token into a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*response.AuthUser, error)
}

type firebaseClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

type firebaseVerifier struct {
	projectID string
	keyfunc   jwt.Keyfunc
}

// NewFirebaseVerifier verifies Firebase ID tokens against the JWKS at jwksURL.
// The key set is refreshed in the background until ctx is cancelled.
func NewFirebaseVerifier(ctx context.Context, projectID, jwksURL string) (TokenVerifier, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	if jwksURL == "" {
		jwksURL = DefaultFirebaseJWKSURL
	}

	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load firebase jwks: %w", err)
	}

	return newFirebaseVerifier(projectID, k.Keyfunc), nil
}

func newFirebaseVerifier(projectID string, kf jwt.Keyfunc) *firebaseVerifier {
	return &firebaseVerifier{projectID: projectID, keyfunc: kf}
}

func (v *firebaseVerifier) Verify(_ context.Context, raw string) (*response.AuthUser, error) {
	claims := &firebaseClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}

	return &response.AuthUser{
		UID:     claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}

		// browsers cannot set headers on websocket upgrades
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		user, err := m.verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errInvalidToken.Error()})
			return
		}

		c.Set(response.AuthUserKey, user)
		c.Next()
	}
}
