package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/canteenhq/campuseats/internal/audit"
	"github.com/canteenhq/campuseats/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func GenerateTokens(acct *models.Account, secret string) (string, string, error) {
	now := time.Now()

	// Access token (15 min)
	accessClaims := &Claims{
		Email: acct.Email,
		Name:  acct.Name,
		Role:  acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}

	// Refresh token (7 days)
	refreshClaims := &Claims{
		Email: acct.Email,
		Name:  acct.Name,
		Role:  acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(7 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}

	return access, refresh, nil
}

// ParseClaims validates a token string against the shared secret.
func ParseClaims(tokenStr, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Missing authorization header",
			})
		}

		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		if tokenStr == auth {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid authorization format",
			})
		}

		claims, err := ParseClaims(tokenStr, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid or expired token",
			})
		}

		c.Locals("account_id", claims.Subject)
		c.Locals("email", claims.Email)
		c.Locals("name", claims.Name)
		c.Locals("role", claims.Role)
		if claims.IssuedAt != nil {
			c.Locals("token_iat", claims.IssuedAt.Time)
		}
		return c.Next()
	}
}

// AccountGuard re-reads the token's account on every request, rejecting
// suspended accounts and tokens issued before a forced-logout cutoff. The
// loaded account is stored in locals for handlers.
func AccountGuard(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr, _ := c.Locals("account_id").(string)
		id, err := uuid.Parse(idStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid session",
			})
		}

		var acct models.Account
		if err := db.First(&acct, "id = ?", id).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Account no longer exists",
			})
		}

		if acct.Suspended() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   true,
				"message": "Account is suspended",
			})
		}

		if acct.TokensInvalidBefore != nil {
			iat, ok := c.Locals("token_iat").(time.Time)
			if !ok || iat.Before(*acct.TokensInvalidBefore) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   true,
					"message": "Session has been invalidated",
				})
			}
		}

		c.Locals("account", &acct)
		return c.Next()
	}
}

// AdminOnly gates the administrative surface. On success the resolved
// ActorContext is stored in locals under "actor".
func AdminOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := audit.AuthorizeActor(c, db)
		if err != nil {
			switch {
			case errors.Is(err, audit.ErrUnauthenticated):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   true,
					"message": "Authentication required",
				})
			case errors.Is(err, audit.ErrForbidden):
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
					"error":   true,
					"message": "Administrator privilege required",
				})
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   true,
					"message": "Authorization check failed",
				})
			}
		}
		c.Locals("actor", actor)
		return c.Next()
	}
}
