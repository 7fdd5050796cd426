// internal/handler/nic_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"efi-access/internal/logging"
	"efi-access/internal/model"
	"efi-access/internal/service"
	"efi-access/internal/utils"
)

// NICHandler handles Simple Network requests
type NICHandler struct {
	nicService *service.NICService
	logger     *logging.ServiceLogger
}

// NewNICHandler creates a new NIC handler
func NewNICHandler(nicService *service.NICService, logger *zap.Logger) *NICHandler {
	return &NICHandler{
		nicService: nicService,
		logger:     logging.NewServiceLogger(logger, "nic-handler"),
	}
}

// RegisterRoutes registers NIC routes
func (h *NICHandler) RegisterRoutes(router *gin.RouterGroup) {
	nic := router.Group("/nic")
	{
		nic.GET("/mode", h.GetMode)
		nic.GET("/stats", h.GetStatistics)
		nic.DELETE("/stats", h.ResetStatistics)
		nic.GET("/status", h.GetStatus)

		nic.POST("/start", h.Start)
		nic.POST("/stop", h.Stop)
		nic.POST("/initialize", h.Initialize)
		nic.POST("/reset", h.Reset)
		nic.POST("/shutdown", h.Shutdown)

		nic.PUT("/filters", h.SetFilters)
		nic.PUT("/station-address", h.SetStationAddress)
		nic.POST("/mcast-mac", h.McastMAC)
		nic.GET("/nvram", h.ReadNVRAM)
		nic.PUT("/nvram", h.WriteNVRAM)

		nic.POST("/transmit", h.Transmit)
		nic.POST("/receive", h.Receive)
		nic.POST("/inject", h.Inject)
	}
}

// GetMode returns the interface mode
// @Summary Get interface mode
// @Description Returns a snapshot of the Simple Network mode structure
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse{data=snp.ModeInfo} "Mode retrieved successfully"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/mode [get]
func (h *NICHandler) GetMode(c *gin.Context) {
	mode, err := h.nicService.Mode()
	if err != nil {
		respondError(c, "Failed to read mode", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Mode retrieved successfully", mode)
}

// GetStatistics returns the interface counters
// @Summary Get interface statistics
// @Description Collects the interface counters; counters the firmware does not support are null
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse{data=map[string]int} "Statistics retrieved successfully"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/stats [get]
func (h *NICHandler) GetStatistics(c *gin.Context) {
	stats, err := h.nicService.Statistics()
	if err != nil {
		respondError(c, "Failed to collect statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Statistics retrieved successfully", stats)
}

// ResetStatistics zeroes the interface counters
// @Summary Reset interface statistics
// @Description Zeroes the interface counters
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse "Statistics reset"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/stats [delete]
func (h *NICHandler) ResetStatistics(c *gin.Context) {
	if err := h.nicService.ResetStatistics(); err != nil {
		respondError(c, "Failed to reset statistics", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Statistics reset", nil)
}

// GetStatus polls the interrupt status and recycled transmit buffers
// @Summary Get interrupt status
// @Description Polls the interrupt status and the recycled transmit buffer
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.StatusResponse} "Status retrieved successfully"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/status [get]
func (h *NICHandler) GetStatus(c *gin.Context) {
	status, err := h.nicService.Status()
	if err != nil {
		respondError(c, "Failed to read status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Status retrieved successfully", status)
}

// Start starts the interface
// @Summary Start interface
// @Description Moves the interface from Stopped to Started
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse "Interface start completed"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/start [post]
func (h *NICHandler) Start(c *gin.Context) {
	h.transition(c, "start", h.nicService.Start)
}

// Stop stops the interface
// @Summary Stop interface
// @Description Moves the interface from Started to Stopped
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse "Interface stop completed"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/stop [post]
func (h *NICHandler) Stop(c *gin.Context) {
	h.transition(c, "stop", h.nicService.Stop)
}

// Shutdown shuts the interface down
// @Summary Shut down interface
// @Description Moves the interface from Initialized to Started
// @Tags NIC
// @Produce json
// @Success 200 {object} utils.APIResponse "Interface shutdown completed"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/shutdown [post]
func (h *NICHandler) Shutdown(c *gin.Context) {
	h.transition(c, "shutdown", h.nicService.Shutdown)
}

// Initialize initializes the interface
// @Summary Initialize interface
// @Description Allocates transmit and receive buffers and moves the interface to Initialized
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.InitializeRequest false "Extra buffer sizes"
// @Success 200 {object} utils.APIResponse "Interface initialize completed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/initialize [post]
func (h *NICHandler) Initialize(c *gin.Context) {
	var req model.InitializeRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	h.transition(c, "initialize", func() error {
		return h.nicService.Initialize(&req)
	})
}

// Reset resets the interface
// @Summary Reset interface
// @Description Resets the network adapter
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.ResetRequest false "Reset options"
// @Success 200 {object} utils.APIResponse "Interface reset completed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/reset [post]
func (h *NICHandler) Reset(c *gin.Context) {
	var req model.ResetRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	h.transition(c, "reset", func() error {
		return h.nicService.Reset(&req)
	})
}

func (h *NICHandler) transition(c *gin.Context, name string, fn func() error) {
	if err := fn(); err != nil {
		h.logger.Warn("NIC transition failed", zap.String("operation", name), zap.Error(err))
		respondError(c, "Failed to "+name+" interface", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Interface "+name+" completed", nil)
}

// SetFilters changes the receive filters
// @Summary Set receive filters
// @Description Enables or disables receive filters and replaces the multicast filter list
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.FilterRequest true "Filter change"
// @Success 200 {object} utils.APIResponse "Receive filters updated"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/filters [put]
func (h *NICHandler) SetFilters(c *gin.Context) {
	var req model.FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	if err := h.nicService.SetFilters(&req); err != nil {
		respondError(c, "Failed to set receive filters", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Receive filters updated", nil)
}

// SetStationAddress changes or resets the station address
// @Summary Set station address
// @Description Changes the current station address or resets it to the permanent address
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.StationAddressRequest true "Station address change"
// @Success 200 {object} utils.APIResponse "Station address updated"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/station-address [put]
func (h *NICHandler) SetStationAddress(c *gin.Context) {
	var req model.StationAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	if err := h.nicService.SetStationAddress(&req); err != nil {
		respondError(c, "Failed to set station address", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Station address updated", nil)
}

// McastMAC maps a multicast IP address to a hardware address
// @Summary Map multicast address
// @Description Maps a multicast IPv4 or IPv6 address to a hardware address
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.McastRequest true "Multicast IP address"
// @Success 200 {object} utils.APIResponse{data=model.McastResponse} "Multicast address mapped"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/mcast-mac [post]
func (h *NICHandler) McastMAC(c *gin.Context) {
	var req model.McastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	resp, err := h.nicService.McastMAC(&req)
	if err != nil {
		respondError(c, "Failed to map multicast address", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Multicast address mapped", resp)
}

// ReadNVRAM reads NVRAM; offset and length come from the query string
// @Summary Read NVRAM
// @Description Reads length bytes of NVRAM starting at offset
// @Tags NIC
// @Produce json
// @Param offset query int false "Byte offset" default(0)
// @Param length query int true "Number of bytes"
// @Success 200 {object} utils.APIResponse{data=model.NVDataResponse} "NVRAM read"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/nvram [get]
func (h *NICHandler) ReadNVRAM(c *gin.Context) {
	offset, err := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 32)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid offset", err)
		return
	}
	length, err := strconv.Atoi(c.Query("length"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid length", err)
		return
	}

	resp, err := h.nicService.ReadNV(uint(offset), length)
	if err != nil {
		respondError(c, "Failed to read NVRAM", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "NVRAM read", resp)
}

// WriteNVRAM writes NVRAM
// @Summary Write NVRAM
// @Description Writes data to NVRAM starting at offset
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.NVDataRequest true "NVRAM write"
// @Success 200 {object} utils.APIResponse "NVRAM written"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/nvram [put]
func (h *NICHandler) WriteNVRAM(c *gin.Context) {
	var req model.NVDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	if err := h.nicService.WriteNV(&req); err != nil {
		respondError(c, "Failed to write NVRAM", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "NVRAM written", nil)
}

// Transmit queues a frame
// @Summary Transmit frame
// @Description Queues a frame for transmission; with a header size the firmware fills in the media header
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.TransmitRequest true "Frame to transmit"
// @Success 202 {object} utils.APIResponse{data=model.TransmitResponse} "Frame queued"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 503 {object} utils.APIResponse "Transmit queue full"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/transmit [post]
func (h *NICHandler) Transmit(c *gin.Context) {
	var req model.TransmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	resp, err := h.nicService.Transmit(&req)
	if err != nil {
		respondError(c, "Failed to transmit frame", err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Frame queued", resp)
}

// Receive reads one frame
// @Summary Receive frame
// @Description Reads one frame from the receive queue
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.ReceiveRequest false "Receive buffer size"
// @Success 200 {object} utils.APIResponse{data=model.ReceivedFrame} "Frame received"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/receive [post]
func (h *NICHandler) Receive(c *gin.Context) {
	var req model.ReceiveRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	frame, err := h.nicService.Receive(&req)
	if err != nil {
		respondError(c, "Failed to receive frame", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Frame received", frame)
}

// Inject delivers a frame from the emulated wire
// @Summary Inject frame
// @Description Delivers a frame from the emulated wire to the receive queue
// @Tags NIC
// @Accept json
// @Produce json
// @Param request body model.InjectRequest true "Raw frame"
// @Success 202 {object} utils.APIResponse "Frame injected"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 409 {object} utils.APIResponse "Boot services exited or interface not initialized"
// @Failure 502 {object} utils.APIResponse "Firmware returned an error status"
// @Router /nic/inject [post]
func (h *NICHandler) Inject(c *gin.Context) {
	var req model.InjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ValidationErrorResponse(c, err)
		return
	}
	if err := h.nicService.Inject(&req); err != nil {
		respondError(c, "Failed to inject frame", err)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Frame injected", nil)
}
