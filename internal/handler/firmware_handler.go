// internal/handler/firmware_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"efi-access/internal/logging"
	"efi-access/internal/service"
	"efi-access/internal/utils"
)

// FirmwareHandler exposes the emulated firmware
type FirmwareHandler struct {
	nicService *service.NICService
	logger     *logging.ServiceLogger
}

// NewFirmwareHandler creates a new firmware handler
func NewFirmwareHandler(nicService *service.NICService, logger *zap.Logger) *FirmwareHandler {
	return &FirmwareHandler{
		nicService: nicService,
		logger:     logging.NewServiceLogger(logger, "firmware-handler"),
	}
}

// RegisterRoutes registers firmware routes
func (h *FirmwareHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/firmware", h.GetFirmware)
	router.POST("/firmware/exit", h.ExitBootServices)
}

// GetFirmware returns the phase, console transcript and call bookkeeping
// @Summary Get firmware state
// @Description Returns the phase, console transcript, call counts and contract violations
// @Tags Firmware
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.FirmwareInfo} "Firmware state retrieved"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /firmware [get]
func (h *FirmwareHandler) GetFirmware(c *gin.Context) {
	info, err := h.nicService.Firmware()
	if err != nil {
		respondError(c, "Failed to read firmware state", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Firmware state retrieved", info)
}

// ExitBootServices ends the boot phase. It can succeed only once.
// @Summary Exit boot services
// @Description Runs the exit hooks and ends the boot phase; succeeds only once
// @Tags Firmware
// @Produce json
// @Success 200 {object} utils.APIResponse "Boot services exited"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /firmware/exit [post]
func (h *FirmwareHandler) ExitBootServices(c *gin.Context) {
	if err := h.nicService.ExitBootServices(); err != nil {
		h.logger.Error("Failed to exit boot services", zap.Error(err))
		respondError(c, "Failed to exit boot services", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Boot services exited", gin.H{
		"phase": h.nicService.Phase().String(),
	})
}
