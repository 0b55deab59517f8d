package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/contravention-api/internal/middleware"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorID names the caller in audit rows.
func actorID(c *gin.Context) string {
	return claimsFromContext(c).ActorID()
}

// ownerScope returns the employee an EMPLOYEE caller is confined to, or "" for other roles.
func ownerScope(c *gin.Context) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleEmployee {
		return "", nil
	}
	if claims.EmployeeID == "" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "token is not linked to an employee")
	}
	return claims.EmployeeID, nil
}

func bindJSON(c *gin.Context, dest interface{}, message string) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
	}
	return nil
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}

func parseQueryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

func parseQueryBool(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, key+" must be a boolean")
	}
	return val, nil
}
