package server

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

type contextKey string

const paramsContextKey contextKey = "path_params"

// Params holds path parameters extracted by ParamRouter
type Params map[string]string

// GetPathParam retrieves a path parameter from the request context
func GetPathParam(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsContextKey).(Params)
	if params == nil {
		return ""
	}
	return params[name]
}

// ParamRouter is a tiny router supporting patterns with {param} segments
// and per-route method lists.
type ParamRouter struct {
	routes []route
}

type route struct {
	methods []string
	parts   []string
	handler http.HandlerFunc
}

// NewParamRouter creates a new ParamRouter instance
func NewParamRouter() *ParamRouter {
	return &ParamRouter{routes: make([]route, 0)}
}

// Handle registers a handler for a pattern like "/ws/audio/{meeting_id}".
// An empty method list accepts any method.
func (rtr *ParamRouter) Handle(pattern string, handler http.HandlerFunc, methods ...string) {
	pattern = strings.TrimSuffix(pattern, "/")
	rtr.routes = append(rtr.routes, route{methods: methods, parts: splitPath(pattern), handler: handler})
}

// ServeHTTP dispatches to the first route matching both path and method.
// A path match with no method match yields 405.
func (rtr *ParamRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	inParts := splitPath(strings.TrimSuffix(r.URL.Path, "/"))

	var allowed []string
	for _, rt := range rtr.routes {
		params, ok := rt.match(inParts)
		if !ok {
			continue
		}
		if len(rt.methods) > 0 && !slices.Contains(rt.methods, r.Method) {
			allowed = append(allowed, rt.methods...)
			continue
		}
		ctx := context.WithValue(r.Context(), paramsContextKey, params)
		rt.handler(w, r.WithContext(ctx))
		return
	}

	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	http.NotFound(w, r)
}

func (rt route) match(inParts []string) (Params, bool) {
	if len(rt.parts) != len(inParts) {
		return nil, false
	}
	params := make(Params)
	for i, pp := range rt.parts {
		if isParam(pp) {
			if inParts[i] == "" {
				return nil, false
			}
			params[strings.TrimSuffix(strings.TrimPrefix(pp, "{"), "}")] = inParts[i]
			continue
		}
		if pp != inParts[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	if p == "" || p == "/" {
		return []string{""}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	// keeps the leading empty element so patterns and paths align
	return strings.Split(p, "/")
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2
}
