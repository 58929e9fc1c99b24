package handlers

import (
	"context"
	"time"

	"github.com/impa/website/internal/server/dto"
)

// Routes lists the top level routes reported for unknown paths.
var Routes = []string{"/", "/api", "/api/auth", "/api/projects", "/api/news", "/api/health"}

// InfoHandler serves the API description and liveness check.
type InfoHandler struct {
	Cfg *Config
	Now func() time.Time
}

func (h *InfoHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Info describes the API.
func (h *InfoHandler) Info(_ context.Context, _ *dto.EmptyRequest) (*dto.APIInfo, error) {
	return &dto.APIInfo{
		Message: "IMPA Backend API",
		Version: APIVersion,
		Endpoints: map[string]string{
			"auth":     "/api/auth",
			"projects": "/api/projects",
			"news":     "/api/news",
			"health":   "/api/health",
		},
		Frontend: h.Cfg.Frontend,
	}, nil
}

// Health reports the process is serving.
func (h *InfoHandler) Health(_ context.Context, _ *dto.EmptyRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{
		Status:    "OK",
		Message:   "IMPA Backend API is running",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		Version:   APIVersion,
	}, nil
}

// NotFound is the body returned for unknown API routes.
func (h *InfoHandler) NotFound() *dto.RouteNotFound {
	return &dto.RouteNotFound{
		Status:          "error",
		Message:         "Route not found",
		AvailableRoutes: Routes,
		Frontend:        h.Cfg.Frontend,
	}
}
