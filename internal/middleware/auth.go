package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kobopay/kobopay/internal/apikey"
	"github.com/kobopay/kobopay/internal/identity"
)

const (
	// AuthMethodJWT marks a request authenticated with a primary identity token.
	AuthMethodJWT = "jwt"
	// AuthMethodAPIKey marks a request authenticated with an API key.
	AuthMethodAPIKey = "api_key"
)

// Authenticate resolves the caller from the Authorization header. Bearer
// credentials with the API key prefix go through key verification and carry
// the key's capabilities; anything else is treated as an HS256 identity token
// and carries every capability. First-time identity callers are provisioned a
// user and wallet on the spot.
func Authenticate(jwtSecret []byte, users *identity.Service, keys *apikey.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		credential := strings.TrimSpace(authz[len("Bearer "):])

		if apikey.IsToken(credential) {
			key, err := keys.Verify(c.UserContext(), credential)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid api key")
			}
			user, err := users.Get(c.UserContext(), key.UserID)
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid api key")
			}
			c.Locals("user_id", user.ID)
			c.Locals("user_email", user.Email)
			c.Locals("capabilities", key.Capabilities)
			c.Locals("auth_method", AuthMethodAPIKey)
			return c.Next()
		}

		claims, err := parseIdentityToken(credential, jwtSecret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		sub, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		name, _ := claims["name"].(string)

		user, err := users.Ensure(c.UserContext(), identity.Identity{Subject: sub, Email: email, Name: name})
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_email", user.Email)
		c.Locals("capabilities", apikey.AllCapabilities)
		c.Locals("auth_method", AuthMethodJWT)
		return c.Next()
	}
}

// RequireCapability gates a route on the caller holding the capability.
func RequireCapability(required apikey.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		held, _ := c.Locals("capabilities").([]apikey.Capability)
		for _, h := range held {
			if h == required {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "api key lacks the "+string(required)+" capability")
	}
}

// RequireJWT restricts a route to primary-identity callers. API keys cannot
// manage API keys.
func RequireJWT() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if method, _ := c.Locals("auth_method").(string); method != AuthMethodJWT {
			return fiber.NewError(http.StatusForbidden, "endpoint requires a primary identity token")
		}
		return c.Next()
	}
}

func parseIdentityToken(credential string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(credential, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
