package api

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/aqimon/internal/device"
	"codeberg.org/mutker/aqimon/internal/errors"
	"codeberg.org/mutker/aqimon/internal/logger"
	"codeberg.org/mutker/aqimon/internal/reading"
	"github.com/gin-gonic/gin"
)

// Service is the read-only view of the poller the handlers need.
type Service interface {
	Status() device.StatusSnapshot
	LastReading() (reading.Reading, bool)
	Readings(ctx context.Context, w reading.Window) ([]reading.Reading, error)
	Latest(ctx context.Context) (reading.Reading, bool, error)
}

type Handler struct {
	svc    Service
	logger logger.Logger
	now    func() time.Time
}

// NewHandler constructs a handler that depends on the Service interface.
func NewHandler(svc Service, log logger.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: log,
		now:    time.Now,
	}
}

// GetStatus returns the published scheduler status. It never waits on a
// running poll cycle.
func (h *Handler) GetStatus(c *gin.Context) {
	var last *reading.Reading
	if r, ok := h.svc.LastReading(); ok {
		last = &r
	}

	c.JSON(http.StatusOK, newStatusResponse(h.svc.Status(), last))
}

// GetSensorData returns the readings of a named window in ascending order.
func (h *Handler) GetSensorData(c *gin.Context) {
	window, err := reading.ParseWindow(c.Query("window"), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Msg: "invalid window: " + c.Query("window")})
		return
	}

	readings, err := h.svc.Readings(c.Request.Context(), window)
	if err != nil {
		h.internalError(c, err)
		return
	}

	resp := make([]ReadingResponse, 0, len(readings))
	for _, r := range readings {
		resp = append(resp, newReadingResponse(r))
	}

	c.JSON(http.StatusOK, resp)
}

// GetLatest returns the most recent persisted reading.
func (h *Handler) GetLatest(c *gin.Context) {
	r, ok, err := h.svc.Latest(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Msg: "no readings yet"})
		return
	}

	c.JSON(http.StatusOK, newReadingResponse(r))
}

func (*Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		h.logger.ErrorWithCode(appErr).Str("path", c.FullPath()).Msg("Request failed")
	} else {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Msg: "internal error"})
}
