package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reflow_oven/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"
	errLimitInvalid = "invalid 'limit'; use a non-negative integer"
	errListLogs     = "failed to load logs"
)

// journalTimeLayouts are tried in order; the last one is date-only.
var journalTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// journalParams are the raw query parameters of GET /logs.
type journalParams struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Type  string `form:"type"`
	Limit string `form:"limit"`
}

// parseJournalTime parses s in UTC. endOfDay turns a bare date into the last
// instant of that day.
func parseJournalTime(s string, endOfDay bool) (time.Time, bool) {
	for i, layout := range journalTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if endOfDay && i == len(journalTimeLayouts)-1 {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// filter validates the parameters; the string is the client error, if any.
func (p journalParams) filter() (service.LogFilter, string) {
	f := service.LogFilter{Type: strings.TrimSpace(p.Type)}

	if p.From != "" {
		t, ok := parseJournalTime(p.From, false)
		if !ok {
			return f, errFromInvalid
		}
		f.From = t
	}
	if p.To != "" {
		t, ok := parseJournalTime(p.To, true)
		if !ok {
			return f, errToInvalid
		}
		f.To = t
	}
	if p.Limit != "" {
		n, err := strconv.Atoi(p.Limit)
		if err != nil || n < 0 {
			return f, errLimitInvalid
		}
		f.Limit = n
	}
	return f, ""
}

// @Summary      List control journal
// @Description  Journal entries oldest first. A date-only 'to' covers that whole day. 'limit' keeps the newest N entries (capped at 1000).
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-08-01)
// @Param        to     query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type   query   string  false  "Event type"  Enums(START,STOP,COOLDOWN,PROFILE_LOADED,FAULT,FAULT_CLEARED,ANOMALY,COMPLETE,ERROR)
// @Param        limit  query   int     false  "Newest N entries"
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	var params journalParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, problem := params.filter()
	if problem != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": problem})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
	case errors.Is(err, service.ErrInvalidTimeRange),
		errors.Is(err, service.ErrUnknownEventType),
		errors.Is(err, service.ErrInvalidLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errListLogs, "logs_list_failed", err,
			"from", f.From, "to", f.To, "type", f.Type)
	}
}
