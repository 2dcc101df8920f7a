// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"
)

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// TriggeredBy returns the caller identity for run bookkeeping, or nil.
func TriggeredBy(c *gin.Context) *int64 {
	id, ok := GetIdentityID(c)
	if !ok {
		return nil
	}
	return &id
}
