package orchestrator

import (
	"fmt"
	"net/http"
	"strings"
)

// Mux is the minimal interface required to mount a View. It is satisfied
// by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts view under basePath joined with routePath and
// returns the registered pattern.
func RegisterRoutes(mux Mux, basePath, routePath string, view *View) (string, error) {
	if mux == nil {
		return "", fmt.Errorf("orchestrator: missing mux")
	}
	if view == nil {
		return "", fmt.Errorf("orchestrator: missing view")
	}
	pattern := MountPath(basePath, routePath)
	mux.Handle(pattern, view)
	return pattern, nil
}

// MountPath joins basePath and routePath into one absolute path.
func MountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	routePath = strings.TrimSpace(routePath)

	if routePath == "" {
		routePath = "/"
	}
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}

	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/") + routePath
}
