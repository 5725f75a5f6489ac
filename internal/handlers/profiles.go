package handlers

import (
	"errors"
	"net/http"

	"reflow_oven/internal/profile"

	"github.com/gin-gonic/gin"
)

// @Summary      List profiles
// @Tags         profiles
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, profiles"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/profiles [get]
// @Security     BearerAuth
func (h *Handler) listProfiles(c *gin.Context) {
	profiles := h.services.Profiles.List()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(profiles),
		"profiles": profiles,
	})
}

// @Summary      Get a profile
// @Description  Includes the target curve sampled every second
// @Tags         profiles
// @Produce      json
// @Param        name  path   string  true  "Profile name"  example(Sn63Pb37)
// @Success      200   {object}  models.ProfileInfo
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/profiles/{name} [get]
// @Security     BearerAuth
func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.services.Profiles.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, profile.ErrUnknownProfile) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load profile", "profile_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
