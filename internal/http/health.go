package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck is one named dependency probe. Check returns a non-nil error
// when the dependency is unusable. Degraded checks are reported but do not
// make the service unhealthy.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Degraded bool
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

type HealthController struct {
	checks  []HealthCheck
	version string
}

func NewHealthController(checks []HealthCheck, version string) *HealthController {
	return &HealthController{checks: checks, version: version}
}

func (h *HealthController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	status := "healthy"

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			checks[check.Name] = "error: " + err.Error()
			if !check.Degraded {
				status = "unhealthy"
			}
			continue
		}
		checks[check.Name] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
