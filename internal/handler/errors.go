// internal/handler/errors.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"efi-access/internal/firmware/sim"
	"efi-access/internal/middleware"
	"efi-access/internal/service"
	"efi-access/internal/utils"
	"efi-access/pkg/efi"
)

// classify maps an error to its HTTP status, error code and firmware status
// name
func classify(err error) (int, string, string) {
	var argErr *efi.ArgumentError

	switch {
	case errors.Is(err, efi.ErrBootServicesExited):
		return http.StatusConflict, "BOOT_SERVICES_EXITED", ""
	case errors.Is(err, efi.ErrExitInProgress):
		return http.StatusConflict, "EXIT_IN_PROGRESS", ""
	case errors.Is(err, efi.ErrNotInitialized):
		return http.StatusConflict, "NOT_INITIALIZED", ""
	case errors.As(err, &argErr), errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_ARGUMENT", ""
	case errors.Is(err, sim.ErrNotRunning):
		return http.StatusConflict, "NOT_RUNNING", ""
	case errors.Is(err, sim.ErrShortFrame):
		return http.StatusBadRequest, "SHORT_FRAME", ""
	case errors.Is(err, sim.ErrQueueFull):
		return http.StatusServiceUnavailable, "QUEUE_FULL", ""
	}

	if status, ok := efi.StatusOf(err); ok {
		return http.StatusBadGateway, "FIRMWARE_ERROR", status.String()
	}
	return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", ""
}

// respondError sends err in the standard envelope
func respondError(c *gin.Context, message string, err error) {
	statusCode, code, efiStatus := classify(err)
	if efiStatus != "" {
		c.Set(middleware.EFIStatusKey, efiStatus)
	}
	utils.ErrorResponseWithCode(c, statusCode, code, efiStatus, message, err)
}

// bindOptionalJSON binds the body when one was sent
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}
