package handlers

import (
	"errors"
	"net/http"

	"reflow_oven/internal/controller"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK           = "ok"
	statusStarted      = "started"
	statusStopped      = "stopped"
	statusFaultCleared = "fault_cleared"

	errStartRun        = "failed to start run"
	errStopRun         = "failed to stop oven"
	errClearFault      = "failed to clear fault"
	errGetState        = "failed to load state"
	errGetSeries       = "failed to load series"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandError maps a refused operator command to a client error; anything
// else is an internal failure.
func (h *Handler) commandError(c *gin.Context, userMsg, logKey string, err error) {
	switch {
	case errors.Is(err, profile.ErrUnknownProfile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrNotRunning),
		errors.Is(err, service.ErrNotFaulted),
		errors.Is(err, controller.ErrFaultActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err)
	}
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// Request DTO for starting a run.
type startRequest struct {
	Profile string `json:"profile" binding:"required"`
}

// StartRunRequest is an exported model for Swagger docs of the start payload.
type StartRunRequest struct {
	// Name of a configured reflow profile
	Profile string `json:"profile" example:"Sn63Pb37"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Start a reflow run
// @Description  Cools the oven down to the start temperature, then follows the profile
// @Tags         oven
// @Accept       json
// @Produce      json
// @Param        body  body   StartRunRequest  true  "Profile to run"
// @Success      200   {object}  map[string]interface{}  "status, profile, state"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/oven/start [post]
// @Security     BearerAuth
func (h *Handler) startRun(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := h.services.Oven.Start(ctx, req.Profile); err != nil {
		h.commandError(c, errStartRun, "oven_start_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStarted, gin.H{"profile": req.Profile})
}

// @Summary      Stop the oven
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/stop [post]
// @Security     BearerAuth
func (h *Handler) stopRun(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Oven.Stop(ctx); err != nil {
		h.commandError(c, errStopRun, "oven_stop_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Clear a latched fault
// @Description  Refused while the board still reports a fault
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/fault/clear [post]
// @Security     BearerAuth
func (h *Handler) clearFault(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Oven.ClearFault(ctx); err != nil {
		h.commandError(c, errClearFault, "oven_clear_fault_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusFaultCleared, gin.H{})
}

// @Summary      Get oven state
// @Tags         oven
// @Produce      json
// @Success      200  {object}  models.OvenState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "oven_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Get run series
// @Description  Measured temperature and the profile overlay of the current run
// @Tags         oven
// @Produce      json
// @Success      200  {object}  models.RunSeries
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/oven/series [get]
// @Security     BearerAuth
func (h *Handler) getSeries(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := h.services.Monitoring.GetSeries(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSeries, "oven_get_series_failed", err)
		return
	}
	c.JSON(http.StatusOK, s)
}
