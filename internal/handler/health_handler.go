// internal/handler/health_handler.go
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"efi-access/internal/config"
	"efi-access/internal/logging"
	"efi-access/internal/service"
	"efi-access/pkg/efi"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	nicService *service.NICService
	config     *config.Config
	logger     *logging.ServiceLogger
	startTime  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(nicService *service.NICService, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		nicService: nicService,
		config:     config,
		logger:     logging.NewServiceLogger(logger, "health-handler"),
		startTime:  time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports the emulated firmware and NIC state. Any firmware
// contract violation makes the service unhealthy.
// @Summary Health check
// @Description Reports firmware and NIC health
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	info, err := h.nicService.Firmware()
	if err != nil {
		h.logger.Error("Firmware health check failed", zap.Error(err))
		health.Status = "unhealthy"
		health.Checks["firmware"] = CheckResult{Status: "unhealthy", Message: err.Error()}
	} else {
		check := CheckResult{
			Status:  "healthy",
			Message: "Phase " + info.Phase,
			Data: map[string]interface{}{
				"calls":      info.Firmware.Calls,
				"violations": len(info.Firmware.Violations),
			},
		}
		if n := len(info.Firmware.Violations); n > 0 {
			health.Status = "unhealthy"
			check.Status = "unhealthy"
			check.Message = fmt.Sprintf("%d firmware contract violations", n)
		}
		health.Checks["firmware"] = check
	}

	mode, err := h.nicService.Mode()
	switch {
	case err == nil:
		health.Checks["nic"] = CheckResult{
			Status:  "healthy",
			Message: "Interface " + mode.State,
			Data: map[string]interface{}{
				"current_address": mode.CurrentAddress,
				"media_present":   mode.MediaPresent,
			},
		}
	case errors.Is(err, efi.ErrBootServicesExited):
		health.Checks["nic"] = CheckResult{Status: "unavailable", Message: "Boot services exited"}
	default:
		health.Status = "unhealthy"
		health.Checks["nic"] = CheckResult{Status: "unhealthy", Message: err.Error()}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// LivenessCheck reports that the process is serving requests
// @Summary Liveness check
// @Description Reports that the process is serving requests
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
