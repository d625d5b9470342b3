package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go-ticker/internal/common"
	"go-ticker/internal/service"
	"go-ticker/internal/util"
)

type Handler struct {
	service *service.Service
	logger  *util.Logger
}

func NewHandler(svc *service.Service, logger *util.Logger) *Handler {
	if logger == nil {
		logger = util.NewNopLogger()
	}
	return &Handler{
		service: svc,
		logger:  logger.With("api"),
	}
}

// Live always answers while the process serves HTTP.
// GET /livez
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready answers 503 until the scheduler is streaming.
// GET /readyz
func (h *Handler) Ready(c *gin.Context) {
	if !h.service.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "phase": h.service.Phase()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "phase": h.service.Phase()})
}

// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Health())
}

// GetSnapshot returns the current candles for ?timeframe=.
// GET /api/v1/snapshot
func (h *Handler) GetSnapshot(c *gin.Context) {
	snap, err := h.service.Snapshot(c.Query("timeframe"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type positionRequest struct {
	Position string `json:"position"`
}

// GET /api/v1/position
func (h *Handler) GetPosition(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"position": h.service.Position()})
}

// SetPosition changes the open position, which selects the walk bias.
// PUT /api/v1/position
func (h *Handler) SetPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendErrorResponse(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.service.SetPosition(req.Position)
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": p})
}

func (h *Handler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidTimeframe), errors.Is(err, common.ErrInvalidPosition):
		sendErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrClosed):
		sendErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error(err, common.ErrCodeStoreQueryFailed, common.ErrMsgStoreQueryFailed, "Request failed", "path", c.Request.URL.Path)
		sendErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}

func sendErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}
