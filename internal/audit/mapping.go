package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP method and chi route pattern.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for a route (e.g. PATCH /notes/{id} -> update note).
// Action is a verb: get, list, create, update, delete, or the lowercase method for others.
// Resource is the first path segment in singular form (notes -> note).
func ParseRoute(method, pattern string) ActionResource {
	segments := strings.FieldsFunc(pattern, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	resource := segmentToResource(segments[0])
	hasParam := false
	for _, s := range segments[1:] {
		if strings.HasPrefix(s, "{") {
			hasParam = true
			break
		}
	}
	return ActionResource{Action: methodToAction(method, hasParam), Resource: resource}
}

// IsMutation reports whether the method changes state.
func IsMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func segmentToResource(segment string) string {
	s := strings.ToLower(segment)
	if strings.HasSuffix(s, "s") && len(s) > 1 {
		return s[:len(s)-1]
	}
	return s
}

func methodToAction(method string, hasParam bool) string {
	switch method {
	case http.MethodGet:
		if hasParam {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
