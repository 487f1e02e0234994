package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Riboost-Studio/receipt-print-agent/internal/model"
	"github.com/Riboost-Studio/receipt-print-agent/internal/normalizer"
	"github.com/Riboost-Studio/receipt-print-agent/internal/printer/raster"
	"github.com/Riboost-Studio/receipt-print-agent/internal/queue"
	"github.com/Riboost-Studio/receipt-print-agent/internal/receipt"
	"github.com/Riboost-Studio/receipt-print-agent/internal/services"
	"github.com/Riboost-Studio/receipt-print-agent/internal/utils"
)

// Screenshotter captures receipt HTML as PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context, html string, width int) ([]byte, error)
}

// Handler serves the local API.
type Handler struct {
	Agent *services.Agent

	// Screenshots renders PNG previews; nil disables them.
	Screenshots Screenshotter
}

func NewHandler(agent *services.Agent) *Handler {
	h := &Handler{Agent: agent}
	if ok, path := utils.CheckChrome(); ok {
		h.Screenshots = raster.ChromeRasterizer{ExecPath: path}
	}
	return h
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"version":  h.Agent.Config.AppVersion,
		"deviceId": h.Agent.Config.DeviceID,
		"socket":   h.Agent.Socket.Connected(),
		"printer":  h.Agent.Adapter.State(),
		"pending":  h.Agent.Queue.Len(),
	})
}

// GetJobs returns the pending, printing and recently finished jobs.
func (h *Handler) GetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, h.Agent.Queue.Snapshot())
}

func (h *Handler) findJob(id string) (model.PrintJob, bool) {
	if job, ok := h.Agent.Queue.Find(id); ok {
		return job, true
	}
	job, err := h.Agent.Store.Get(id)
	return job, err == nil
}

func (h *Handler) GetJob(c *gin.Context) {
	job, ok := h.findJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "print job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// CreateJob accepts a raw order document in any of the upstream shapes.
func (h *Handler) CreateJob(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.Agent.Intake.Submit(body, model.SourceAPI)
	var malformed *normalizer.MalformedJobError
	switch {
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, queue.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "jobId": job.JobID})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	if queued, ok := h.Agent.Queue.Find(job.JobID); ok {
		job = queued
	}
	c.JSON(http.StatusCreated, job)
}

// PreviewJob renders a job's receipt as text, HTML or (with Chrome) PNG.
func (h *Handler) PreviewJob(c *gin.Context) {
	job, ok := h.findJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "print job not found"})
		return
	}
	page, err := receipt.Preview(receipt.Format(job.Payload))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch c.DefaultQuery("format", "html") {
	case "text":
		c.String(http.StatusOK, page.String())

	case "html":
		html, err := page.HTML(h.paperWidth())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))

	case "png":
		if h.Screenshots == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "PNG preview needs Chrome"})
			return
		}
		html, err := page.HTML(h.paperWidth())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		png, err := h.Screenshots.Screenshot(c.Request.Context(), html, h.paperWidth())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "image/png", png)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be text, html or png"})
	}
}

func (h *Handler) paperWidth() int {
	if w := h.Agent.Printer.PaperWidth; w > 0 {
		return w
	}
	return raster.DefaultPaperWidth
}

func (h *Handler) ReprintJob(c *gin.Context) {
	job, err := h.Agent.Reprint(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "print job not found"})
		return
	case errors.Is(err, queue.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// Sweep runs an unprinted-order sweep now and reports what it found.
func (h *Handler) Sweep(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	result, err := h.Agent.Sweeper.Sweep(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetPrinter(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"printer": h.Agent.Printer,
		"status":  h.Agent.Adapter.Status(),
	})
}

func (h *Handler) TestPrint(c *gin.Context) {
	if err := h.Agent.Adapter.TestPrint(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "printed"})
}

func (h *Handler) GetAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, h.Agent.Alerts.List())
}
