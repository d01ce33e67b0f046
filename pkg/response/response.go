package response

import (
	"net/http"

	"github.com/earnbuddy/backend/pkg/apperror"
	"github.com/earnbuddy/backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthUserKey is the gin context key holding the verified identity.
const AuthUserKey = "auth_user"

// AuthUser is the identity extracted from a verified Firebase ID token.
type AuthUser struct {
	UID     string `json:"uid"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// GetAuthUser retrieves the authenticated identity from the context
func GetAuthUser(c *gin.Context) (*AuthUser, error) {
	v, exists := c.Get(AuthUserKey)
	if !exists {
		return nil, apperror.ErrUnauthorized
	}

	user, ok := v.(*AuthUser)
	if !ok || user.UID == "" {
		return nil, apperror.ErrUnauthorized
	}

	return user, nil
}

// ResponseError writes the standardized {"error": ...} body for err.
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		zap.L().Error("internal error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}

	c.JSON(code, gin.H{"error": err.Error()})
}

// Message writes a {"message": ...} body merged with extra fields.
func Message(c *gin.Context, code int, message string, extra gin.H) {
	body := gin.H{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}

// BindError reports a request binding/validation failure as a 400.
func BindError(c *gin.Context, err error) {
	ResponseError(c, apperror.New(http.StatusBadRequest, validator.FormatValidationError(err), apperror.ErrBadRequest))
}
