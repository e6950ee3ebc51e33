package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/vendalive/fulfillment/internal/models"
)

const actorKey = "actor"

// ActorFromToken validates the access token and extracts the acting
// seller/administrator. Identity management lives elsewhere; this service
// only consumes the claims.
func ActorFromToken(c echo.Context, jwtSecret []byte) (models.Actor, error) {
	tokenString := ""
	if cookie, err := c.Cookie("accessToken"); err == nil {
		tokenString = cookie.Value
	}
	if tokenString == "" {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		tokenString = strings.TrimPrefix(header, "Bearer ")
	}
	if tokenString == "" {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleSeller
	}

	return models.Actor{ID: uint(sub), Role: role}, nil
}

// RequireActor resolves the actor once per request and stashes it in the
// echo context.
func RequireActor(jwtSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := ActorFromToken(c, jwtSecret)
			if err != nil {
				return err
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// RequireAdmin gates the review and privileged-revert routes.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor := Actor(c)
		if !actor.IsAdmin() {
			return echo.NewHTTPError(http.StatusForbidden, "administrator role required")
		}
		return next(c)
	}
}

// Actor returns the actor resolved by RequireActor.
func Actor(c echo.Context) models.Actor {
	if a, ok := c.Get(actorKey).(models.Actor); ok {
		return a
	}
	return models.Actor{}
}
