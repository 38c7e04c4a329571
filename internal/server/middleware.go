package server

import (
	"strings"

	userdomain "github.com/despiezo/marketplace/internal/user/domain"
	"github.com/gin-gonic/gin"
)

const contextUserKey = "current_user"

// AuthRequired resolves the bearer session token to a user and stores it on
// the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userRepo.FindBySessionToken(c.Request.Context(), s.db, token)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if user == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *userdomain.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := value.(*userdomain.User)
	return user
}
