// Package http serves the read-only debug view of a running system.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/AgentOS/microkernel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/kernel"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/registry"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/fs"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/server/pm"
	"github.com/GriffinCanCode/AgentOS/microkernel/internal/shared/id"
)

// Source is what the handlers inspect.
type Source interface {
	BootID() id.BootID
	Threads() []kernel.ThreadInfo
	Services() []registry.Binding
	Spaces() []kernel.SpaceInfo
	Processes() []pm.Process
	Files() []fs.FileInfo
	Metrics() *monitoring.Metrics
}

// Handlers holds the debug API handlers.
type Handlers struct {
	src Source
}

// NewHandlers creates handlers over src.
func NewHandlers(src Source) *Handlers {
	return &Handlers{src: src}
}

// Register adds every route to r.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/threads", h.ListThreads)
	r.GET("/threads/:tid", h.GetThread)
	r.GET("/services", h.ListServices)
	r.GET("/spaces", h.ListSpaces)
	r.GET("/processes", h.ListProcesses)
	r.GET("/files", h.ListFiles)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.src.Metrics().Registry, promhttp.HandlerOpts{})))
	r.GET("/metrics/json", h.MetricsSnapshot)
}

// Health reports liveness and a summary of the system.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"boot":      h.src.BootID(),
		"threads":   len(h.src.Threads()),
		"services":  len(h.src.Services()),
		"processes": len(h.src.Processes()),
	})
}

// ListThreads lists every thread.
func (h *Handlers) ListThreads(c *gin.Context) {
	threads := h.src.Threads()
	c.JSON(http.StatusOK, gin.H{"threads": threads, "count": len(threads)})
}

// GetThread returns one thread.
func (h *Handlers) GetThread(c *gin.Context) {
	tid, err := strconv.ParseUint(c.Param("tid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tid"})
		return
	}
	for _, th := range h.src.Threads() {
		if uint64(th.Tid) == tid {
			c.JSON(http.StatusOK, th)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
}

// ListServices lists registered services.
func (h *Handlers) ListServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": h.src.Services()})
}

// ListSpaces lists live address spaces.
func (h *Handlers) ListSpaces(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"spaces": h.src.Spaces()})
}

// ListProcesses lists the process table.
func (h *Handlers) ListProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"processes": h.src.Processes()})
}

// ListFiles lists the filesystem.
func (h *Handlers) ListFiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": h.src.Files()})
}

// MetricsSnapshot returns the JSON counters.
func (h *Handlers) MetricsSnapshot(c *gin.Context) {
	m := h.src.Metrics()
	m.UpdateUptime()
	c.JSON(http.StatusOK, m.GetSnapshot())
}
