// Package middleware provides authentication middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

// RequireAuth returns a middleware that requires a logged-in session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(UserIDKey)

		if userID == nil {
			unauthorized(c)
			return
		}

		userIDInt, ok := userID.(int)
		if !ok {
			// JSON numbers round-trip through the session store as float64
			userIDFloat, ok := userID.(float64)
			if !ok {
				unauthorized(c)
				return
			}
			userIDInt = int(userIDFloat)
		}

		username, _ := session.Get(UsernameKey).(string)
		if username == "" {
			unauthorized(c)
			return
		}

		c.Set(UserIDKey, userIDInt)
		c.Set(UsernameKey, username)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}
