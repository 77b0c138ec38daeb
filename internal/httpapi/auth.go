package httpapi

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const localUserID = "userID"

// Protected accepts an HS256 token whose subject is the user id. The
// token comes from the Authorization header, the access_token cookie or,
// for websocket upgrades, the access_token query parameter.
func Protected(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization format")
			}
			token = strings.TrimSpace(parts[1])
		} else if cookie := c.Cookies("access_token"); cookie != "" {
			token = cookie
		} else {
			token = c.Query("access_token")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization required")
		}

		userID, err := ParseToken(token, secret)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// ParseToken validates the token and returns the user id in its subject.
func ParseToken(token string, secret []byte) (uint, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("token subject is not a user id")
	}
	return uint(id), nil
}

func currentUser(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}
