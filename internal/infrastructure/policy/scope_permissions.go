// Package policy implements authorization for the developer portal: a static
// scope-inheritance graph resolved into effective permission sets. This graph
// is the single authoritative model; admin supremacy is expressed by the
// admin scope inheriting every other scope, not by a special-cased check.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/devportal/internal/domain/service"
	"github.com/turtacn/devportal/pkg/constants"
)

// Permission is one (resource, action) pair.
type Permission struct {
	Resource string
	Action   string
}

// String renders the canonical "resource:action" form.
func (p Permission) String() string { return p.Resource + ":" + p.Action }

// ParsePermission parses "resource:action". Callers must handle the error
// explicitly; there is no lenient fallback.
func ParsePermission(s string) (Permission, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Permission{}, fmt.Errorf("invalid permission %q: want \"resource:action\"", s)
	}
	return Permission{Resource: parts[0], Action: parts[1]}, nil
}

// scopeDefinition is one node of the scope graph: direct permissions plus
// the scopes it inherits.
type scopeDefinition struct {
	permissions []Permission
	inherits    []string
}

// scopeDefinitions is the static scope graph. Inheritance must stay acyclic.
var scopeDefinitions = map[string]scopeDefinition{
	string(constants.ScopeRead): {
		permissions: []Permission{
			{"user", "read"},
			{"api_key", "read"},
		},
	},
	string(constants.ScopeWrite): {
		permissions: []Permission{
			{"user", "write"},
			{"api_key", "write"},
		},
		inherits: []string{string(constants.ScopeRead)},
	},
	string(constants.ScopeAnalytics): {
		permissions: []Permission{
			{"analytics", "read"},
			{"analytics", "list"},
			{"analytics", "export"},
			{"api_key", "monitor"},
		},
		inherits: []string{string(constants.ScopeRead)},
	},
	string(constants.ScopePayments): {
		permissions: []Permission{
			{"payment", "read"},
			{"payment", "list"},
			{"payment", "create"},
			{"payment", "refund"},
		},
		inherits: []string{string(constants.ScopeRead)},
	},
	string(constants.ScopeKeys): {
		permissions: []Permission{
			{"api_key", "create"},
			{"api_key", "rotate"},
			{"api_key", "revoke"},
			{"api_key", "list"},
		},
		inherits: []string{string(constants.ScopeRead)},
	},
	string(constants.ScopeAdmin): {
		permissions: []Permission{
			{"admin", "all"},
			{"user", "delete"},
			{"rate_limit", "read"},
			{"rate_limit", "manage"},
		},
		inherits: []string{
			string(constants.ScopeRead),
			string(constants.ScopeWrite),
			string(constants.ScopeAnalytics),
			string(constants.ScopePayments),
			string(constants.ScopeKeys),
		},
	},
}

// IsKnownScope reports whether the scope is defined in the graph.
func IsKnownScope(scope string) bool {
	_, ok := scopeDefinitions[scope]
	return ok
}

// ScopePermissionEngine resolves scope sets against the static graph.
// Resolutions are memoized under a normalized (sorted, deduplicated) key, so
// ["read","write"] and ["write","read"] share one cache entry.
type ScopePermissionEngine struct {
	definitions map[string]scopeDefinition
	cache       *gocache.Cache
}

// NewScopePermissionEngine creates the engine over the built-in scope graph.
func NewScopePermissionEngine() *ScopePermissionEngine {
	return &ScopePermissionEngine{
		definitions: scopeDefinitions,
		cache:       gocache.New(time.Hour, 10*time.Minute),
	}
}

var _ service.PermissionService = (*ScopePermissionEngine)(nil)

// EffectivePermissions returns every "resource:action" string granted by the
// scopes, including everything reachable through inheritance. Unknown scopes
// contribute nothing.
func (e *ScopePermissionEngine) EffectivePermissions(scopes []string) map[string]struct{} {
	normalized := normalizeScopes(scopes)
	cacheKey := strings.Join(normalized, ",")

	if cached, ok := e.cache.Get(cacheKey); ok {
		return cached.(map[string]struct{})
	}

	effective := make(map[string]struct{})
	processed := make(map[string]struct{})
	for _, scope := range normalized {
		e.collect(scope, effective, processed)
	}

	e.cache.SetDefault(cacheKey, effective)
	return effective
}

// collect walks one scope depth-first, accumulating direct permissions from
// every visited node. The processed set makes revisits cheap and guards
// against accidental cycles.
func (e *ScopePermissionEngine) collect(scope string, effective, processed map[string]struct{}) {
	if _, done := processed[scope]; done {
		return
	}
	processed[scope] = struct{}{}

	def, ok := e.definitions[scope]
	if !ok {
		return
	}
	for _, perm := range def.permissions {
		effective[perm.String()] = struct{}{}
	}
	for _, parent := range def.inherits {
		e.collect(parent, effective, processed)
	}
}

// HasPermission reports whether the scopes grant resource:action.
func (e *ScopePermissionEngine) HasPermission(scopes []string, resource, permission string) bool {
	effective := e.EffectivePermissions(scopes)
	_, ok := effective[resource+":"+permission]
	return ok
}

// HasAnyPermission reports whether the scopes grant at least one of the
// required "resource:action" strings.
func (e *ScopePermissionEngine) HasAnyPermission(scopes []string, required []string) bool {
	effective := e.EffectivePermissions(scopes)
	for _, want := range required {
		if _, ok := effective[want]; ok {
			return true
		}
	}
	return false
}

// ResourcePermissions filters the effective set down to one resource,
// returning the granted actions sorted.
func (e *ScopePermissionEngine) ResourcePermissions(scopes []string, resource string) []string {
	effective := e.EffectivePermissions(scopes)
	prefix := resource + ":"

	actions := make([]string, 0)
	for perm := range effective {
		if strings.HasPrefix(perm, prefix) {
			actions = append(actions, strings.TrimPrefix(perm, prefix))
		}
	}
	sort.Strings(actions)
	return actions
}

// SuggestScopes returns every single scope whose effective set covers all
// required permissions, smallest effective set first. Ties break by name so
// the output is stable.
func (e *ScopePermissionEngine) SuggestScopes(required []string) []string {
	type candidate struct {
		scope string
		size  int
	}

	candidates := make([]candidate, 0)
	for scope := range e.definitions {
		effective := e.EffectivePermissions([]string{scope})
		covers := true
		for _, want := range required {
			if _, ok := effective[want]; !ok {
				covers = false
				break
			}
		}
		if covers {
			candidates = append(candidates, candidate{scope: scope, size: len(effective)})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].size != candidates[j].size {
			return candidates[i].size < candidates[j].size
		}
		return candidates[i].scope < candidates[j].scope
	})

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.scope)
	}
	return out
}

// CheckScopeConflicts returns the scopes already implied by another scope in
// the same list. Pairwise over the transitive inherits closure.
func (e *ScopePermissionEngine) CheckScopeConflicts(scopes []string) []string {
	normalized := normalizeScopes(scopes)

	conflicts := make([]string, 0)
	for _, candidate := range normalized {
		for _, other := range normalized {
			if candidate == other {
				continue
			}
			if e.inheritsTransitively(other, candidate) {
				conflicts = append(conflicts, candidate)
				break
			}
		}
	}
	return conflicts
}

// inheritsTransitively reports whether scope reaches target through its
// inherits chain.
func (e *ScopePermissionEngine) inheritsTransitively(scope, target string) bool {
	seen := make(map[string]struct{})
	stack := []string{scope}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[current]; ok {
			continue
		}
		seen[current] = struct{}{}

		def, ok := e.definitions[current]
		if !ok {
			continue
		}
		for _, parent := range def.inherits {
			if parent == target {
				return true
			}
			stack = append(stack, parent)
		}
	}
	return false
}

// KnownScopes returns every defined scope name, sorted.
func (e *ScopePermissionEngine) KnownScopes() []string {
	scopes := make([]string, 0, len(e.definitions))
	for scope := range e.definitions {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}

func normalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	normalized := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		normalized = append(normalized, scope)
	}
	sort.Strings(normalized)
	return normalized
}
