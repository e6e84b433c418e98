package handlers

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/errors"
)

// PermissionHandler exposes scope/permission introspection for the portal UI.
type PermissionHandler struct {
	permissions service.PermissionService
}

// NewPermissionHandler creates the handler.
func NewPermissionHandler(permissions service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// EffectivePermissions resolves ?scopes=read,write into the full permission
// set, sorted for stable output.
func (h *PermissionHandler) EffectivePermissions(c *gin.Context) {
	scopes := splitCSV(c.Query("scopes"))
	if len(scopes) == 0 {
		respondError(c, errors.ErrInvalidRequest("scopes query parameter is required"))
		return
	}

	effective := h.permissions.EffectivePermissions(scopes)
	out := make([]string, 0, len(effective))
	for perm := range effective {
		out = append(out, perm)
	}
	sort.Strings(out)

	c.JSON(http.StatusOK, gin.H{
		"scopes":      scopes,
		"permissions": out,
	})
}

// SuggestScopes returns the scopes covering ?required=a:b,c:d, smallest
// grant first.
func (h *PermissionHandler) SuggestScopes(c *gin.Context) {
	required := splitCSV(c.Query("required"))
	if len(required) == 0 {
		respondError(c, errors.ErrInvalidRequest("required query parameter is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"required":    required,
		"suggestions": h.permissions.SuggestScopes(required),
	})
}

// ScopeConflicts reports the scopes in ?scopes= already implied by another
// scope in the same list.
func (h *PermissionHandler) ScopeConflicts(c *gin.Context) {
	scopes := splitCSV(c.Query("scopes"))
	if len(scopes) == 0 {
		respondError(c, errors.ErrInvalidRequest("scopes query parameter is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scopes":    scopes,
		"redundant": h.permissions.CheckScopeConflicts(scopes),
	})
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
