// utils/auth.go
package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accountIDKey = "accountId"
	serviceKey   = "service"

	// ServiceRole marks tokens held by schedulers rather than accounts.
	ServiceRole = "service"
)

// GenerateToken issues an HS256 token whose subject is the business account.
func GenerateToken(secret string, accountID uuid.UUID, ttl time.Duration) (string, error) {
	return signToken(secret, jwt.MapClaims{"sub": accountID.String()}, ttl)
}

// GenerateServiceToken issues a token carrying the service role. It is not
// bound to any account.
func GenerateServiceToken(secret string, ttl time.Duration) (string, error) {
	return signToken(secret, jwt.MapClaims{"sub": uuid.Nil.String(), "role": ServiceRole}, ttl)
}

func signToken(secret string, claims jwt.MapClaims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret not set")
	}
	now := time.Now()
	claims["exp"] = now.Add(ttl).Unix()
	claims["iat"] = now.Unix()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Auth middleware
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "Authorization header required"})
			return
		}

		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:6]) == "BEARER" {
			tokenString = tokenString[7:]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(401, gin.H{"error": "Invalid token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "Invalid token claims"})
			return
		}
		accountID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "Invalid token subject"})
			return
		}

		claims, _ := token.Claims.(jwt.MapClaims)
		role, _ := claims["role"].(string)
		c.Set(accountIDKey, accountID)
		c.Set(serviceKey, role == ServiceRole)
		c.Next()
	}
}

// AccountID returns the business account authenticated by AuthMiddleware.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(accountIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// IsService reports whether the request carries a service role token.
func IsService(c *gin.Context) bool {
	return c.GetBool(serviceKey)
}
