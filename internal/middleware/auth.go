package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/opendesk/chat-core/internal/cache"
)

// Claims carried by every session token. Tokens are issued by the auth
// collaborator; this service only validates them.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// ParseToken validates an HMAC-signed session token.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("token missing user or tenant")
	}
	return claims, nil
}

// NewAuthMiddleware validates the bearer token and the cached session
// flag. A missing flag is fine (the cache is only an accelerator); an
// explicitly revoked one rejects the request.
func NewAuthMiddleware(secret string, c *cache.Cache) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		header := ctx.Get(fiber.HeaderAuthorization)
		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if tokenStr == "" || tokenStr == header {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
		}

		claims, err := ParseToken(tokenStr, secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}

		if flag, ok := c.Get(ctx.UserContext(), c.SessionKey(claims.TenantID, claims.UserID)); ok && flag == "revoked" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session revoked"})
		}

		ctx.Locals("user_id", claims.UserID)
		ctx.Locals("tenant_id", claims.TenantID)
		return ctx.Next()
	}
}
