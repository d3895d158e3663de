package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rsandoval/gridwatch/internal/domain/audit"
	"github.com/rsandoval/gridwatch/internal/domain/device"
	"github.com/rsandoval/gridwatch/internal/domain/incident"
)

type handler struct {
	services Services
	logger   *slog.Logger
}

// fail maps domain errors onto HTTP status codes.
func (h *handler) fail(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, audit.ErrInvalidKey),
		errors.Is(err, audit.ErrInvalidQuality),
		errors.Is(err, audit.ErrInvalidInput),
		errors.Is(err, device.ErrInvalidInput),
		errors.Is(err, incident.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, audit.ErrChecklistNotFound),
		errors.Is(err, audit.ErrNotSaved),
		errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, incident.ErrIncidentNotFound),
		errors.Is(err, incident.ErrDeviceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, audit.ErrNotOpen),
		errors.Is(err, audit.ErrFlushInProgress),
		errors.Is(err, device.ErrDuplicateCode):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		h.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *handler) openChecklist(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	supervisor := req.Supervisor
	if supervisor == "" {
		supervisor, _ = OperatorFromContext(c)
	}

	result, err := h.services.Audit.Open(c.Request.Context(), req.domain(), supervisor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) discardChecklist(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.services.Audit.Discard(req.domain())
	c.Status(http.StatusNoContent)
}

func (h *handler) flushChecklist(c *gin.Context) {
	var req flushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.services.Audit.Flush(c.Request.Context(), req.domain(), req.Zone)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) completeChecklist(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.services.Audit.Complete(c.Request.Context(), req.domain()); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) listChecklists(c *gin.Context) {
	centralID := c.Query("central_id")
	if centralID == "" {
		h.badRequest(c, errors.New("central_id is required"))
		return
	}

	checklists, err := h.services.Audit.Recent(c.Request.Context(), centralID, 20)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checklists": checklists})
}

func (h *handler) effectiveScope(c *gin.Context) {
	var q scopeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	rows, err := h.services.Audit.Snapshot(c.Request.Context(), q.domain(), q.Zone)
	if err != nil {
		h.fail(c, err)
		return
	}
	counts, err := h.services.Incidents.OpenCounts(c.Request.Context(), q.CentralID)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]scopeRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, scopeRow{
			Device:        row.Device,
			Judgment:      row.Judgment,
			OpenIncidents: counts[row.Device.ID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (h *handler) exportChecklist(c *gin.Context) {
	var q scopeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	filename := fmt.Sprintf("checklist-%s-%s-%s.xlsx", q.Date, q.CentralID, q.Shift)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	if err := h.services.Exporter.WriteChecklist(c.Request.Context(), c.Writer, q.domain(), q.Zone); err != nil {
		h.fail(c, err)
		return
	}
}

func (h *handler) setOperational(c *gin.Context) {
	var req operationalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	judgment, err := h.services.Audit.SetOperational(req.domain(), c.Param("deviceID"), *req.Operational)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"judgment": judgment})
}

func (h *handler) setQuality(c *gin.Context) {
	var req qualityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	judgment, err := h.services.Audit.SetQuality(req.domain(), c.Param("deviceID"), audit.Quality(req.Quality))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"judgment": judgment})
}

func (h *handler) toggleDevice(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	var quality *audit.Quality
	if req.Quality != nil {
		q := audit.Quality(*req.Quality)
		quality = &q
	}

	judgment, err := h.services.Audit.ImmediateSet(
		c.Request.Context(), req.domain(), c.Param("deviceID"), *req.Operational, quality)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"judgment": judgment})
}

func (h *handler) listDevices(c *gin.Context) {
	var q deviceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	devices, err := h.services.Devices.ListActive(c.Request.Context(), device.Filter{
		CentralID: q.CentralID,
		Zone:      q.Zone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func (h *handler) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	dev, err := h.services.Devices.Register(c.Request.Context(), device.RegisterRequest{
		Code:      req.Code,
		CentralID: req.CentralID,
		Zone:      req.Zone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dev)
}

func (h *handler) reportIncident(c *gin.Context) {
	var req reportIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	inc, err := h.services.Incidents.Report(c.Request.Context(), incident.ReportRequest{
		DeviceID:    req.DeviceID,
		Category:    incident.Category(req.Category),
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inc)
}

func (h *handler) listIncidents(c *gin.Context) {
	var q listIncidentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return
	}

	opts := incident.ListOptions{
		DeviceID:        q.DeviceID,
		IncludeResolved: q.IncludeResolved,
		Limit:           q.Limit,
		Offset:          q.Offset,
	}
	if q.From != "" {
		from, _ := time.Parse(audit.DateLayout, q.From)
		opts.From = &from
	}
	if q.To != "" {
		to, _ := time.Parse(audit.DateLayout, q.To)
		to = to.AddDate(0, 0, 1)
		opts.To = &to
	}

	incidents, err := h.services.Incidents.List(c.Request.Context(), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}

func (h *handler) resolveIncident(c *gin.Context) {
	if err := h.services.Incidents.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) deleteIncident(c *gin.Context) {
	if err := h.services.Incidents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
