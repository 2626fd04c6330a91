package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/riadtaziri/booking-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Roles  []string  `json:"roles"`
}

// IsAdmin reports whether the user holds the admin role
func (u UserContext) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == jwt.RoleAdmin {
			return true
		}
	}
	return false
}

type authFailure struct {
	status  int
	err     string
	message string
	code    string
}

// authenticate parses the bearer token. It returns nil, nil when no
// Authorization header is present.
func authenticate(c *gin.Context, jwtService *jwt.Service) (*UserContext, *authFailure) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, &authFailure{http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT"}
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, &authFailure{http.StatusUnauthorized, "unauthorized", "Token cannot be empty", "INVALID_AUTH_FORMAT"}
	}

	claims, err := jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		log := logrus.WithFields(logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}).WithError(err)
		if jwt.IsExpired(err) {
			log.Warn("AUTH FAILED: Token expired")
			return nil, &authFailure{http.StatusUnauthorized, "token_expired", "Access token has expired. Please log in again.", "TOKEN_EXPIRED"}
		}
		log.Warn("AUTH FAILED: Invalid token")
		return nil, &authFailure{http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN"}
	}

	return &UserContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Roles:  claims.Roles,
	}, nil
}

func abortAuth(c *gin.Context, f *authFailure) {
	c.JSON(f.status, gin.H{
		"error":   f.err,
		"message": f.message,
		"code":    f.code,
	})
	c.Abort()
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure := authenticate(c, jwtService)
		if failure != nil {
			abortAuth(c, failure)
			return
		}
		if user == nil {
			logrus.WithFields(logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}).Warn("AUTH FAILED: Missing authorization header")
			abortAuth(c, &authFailure{http.StatusUnauthorized, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER"})
			return
		}

		c.Set(UserContextKey, *user)
		c.Next()
	}
}

// OptionalAuth attaches the user context when a valid token is sent. A
// missing header passes through as anonymous; a bad token is still rejected.
func OptionalAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure := authenticate(c, jwtService)
		if failure != nil {
			abortAuth(c, failure)
			return
		}
		if user != nil {
			c.Set(UserContextKey, *user)
		}
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			c.Abort()
			return
		}

		hasRole := false
		for _, requiredRole := range roles {
			for _, userRole := range userCtx.Roles {
				if userRole == requiredRole {
					hasRole = true
					break
				}
			}
			if hasRole {
				break
			}
		}

		if !hasRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You don't have permission to access this resource",
				"code":    "INSUFFICIENT_PERMISSIONS",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}
