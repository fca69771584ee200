// middleware/auth.go
package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware validates the Bearer token on HTTP routes and stores the
// claims in Locals. Hosts authenticate here; players and spectators never
// carry a JWT.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization header format"})
		}

		claims, err := parseToken(parts[1], secret)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals("userId", claims["user_id"])
		c.Locals("username", claims["username"])
		c.Locals("isAuthenticated", true)
		return c.Next()
	}
}

// WebSocketAuthMiddleware runs at upgrade time. A valid token marks the
// connection authenticated (required to create rooms); a missing or bad
// token still upgrades, since joining as a player needs only a PIN and a
// nickname. The token comes from the query string because browser WebSocket
// clients cannot set headers.
func WebSocketAuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("isAuthenticated", false)

		tokenString := c.Query("token")
		if tokenString == "" {
			if authHeader := c.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}
		if tokenString == "" {
			return c.Next()
		}

		claims, err := parseToken(tokenString, secret)
		if err != nil {
			return c.Next()
		}

		c.Locals("userId", claims["user_id"])
		c.Locals("username", claims["username"])
		c.Locals("isAuthenticated", true)
		return c.Next()
	}
}

func parseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(401, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fiber.NewError(401, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fiber.NewError(401, "Invalid token claims")
	}
	if exp, ok := claims["exp"].(float64); ok && time.Unix(int64(exp), 0).Before(time.Now()) {
		return nil, fiber.NewError(401, "Token expired")
	}
	return claims, nil
}

// GetUserID reads the authenticated user id from Locals.
func GetUserID(c *fiber.Ctx) (string, error) {
	userID := c.Locals("userId")
	if userID == nil {
		return "", fiber.NewError(401, "User not authenticated")
	}
	if id, ok := userID.(string); ok {
		return id, nil
	}
	return "", fiber.NewError(401, "Invalid user ID format")
}
